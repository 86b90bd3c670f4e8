// Package policy decides whether a checkpoint of a given kind must interrupt
// the agent under the current execution mode. Rules are kept in a table, one
// decision function per kind, so adding a kind is a single entry.
package policy
