// Package idgen wraps the UUID generator and the approval token source so that
// both can be stubbed in tests. It lives under `internal` because callers
// should treat identifiers and tokens as opaque strings.
package idgen
