// Package checkpoint implements the checkpoint manager: it asks the policy
// whether a checkpoint must fire, materialises checkpoints, enforces that at
// most one is outstanding and archives resolved ones. Its state is persisted
// after every change so a crash leaves a recoverable pending checkpoint.
package checkpoint
