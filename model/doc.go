// Package model contains the value types shared by the oversight services:
// turn bookkeeping (`turn`), checkpoints with their kinds, modes and
// outcomes (`checkpoint`) and approval requests/responses (`approval`).
//
// The types are plain JSON-serialisable structs; all behaviour lives in the
// service packages so that the persisted shape stays stable.
package model
