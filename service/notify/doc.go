// Package notify delivers approval requests over out-of-band channels.
//
// Notifiers are best-effort senders: a failing channel is logged and never
// prevents delivery on the others or affects the approval request itself.
// The Dispatcher sends inline; the Outbox queues one delivery per channel on
// a messaging.Queue and retries failures in the background.
package notify
