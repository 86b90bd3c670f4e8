// Package messaging defines the queue contract used by the notification
// outbox and a fan-out Hub used to stream approval events to live
// subscribers. Implementations live in the memory and fs sub-packages.
package messaging
