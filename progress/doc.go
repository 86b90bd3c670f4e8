// Package progress keeps the aggregated counters of one agent run: turns
// taken and checkpoints fired, grouped by how they were answered.
package progress
