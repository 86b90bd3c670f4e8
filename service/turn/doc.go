// Package turn implements the persisted agent turn counter. The counter is
// monotonic across sessions and restarts, samples context-window usage and
// derives a usage trend used to estimate how many turns remain before the
// context is exhausted.
package turn
