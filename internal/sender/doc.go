// Package sender is the congratulation-sender core.
//
// It accepts control commands (start/stop/configure) for independent per-chat
// recurring jobs and one-shot generation commands, via two bounded FIFO
// queues. A single supervisor cycle drains at most one command per queue per
// cycle; each active chat runs its own cancellable runner goroutine that
// rotates through the configured name list with a per-chat delay.
//
// Lifecycle guarantees:
//   - Start is idempotent; at most one runner per chat.
//   - Stop cancels the runner and returns only after it has fully unwound,
//     so no dispatch can race registry removal.
//   - A runner whose registry entry vanished without cancellation exits on
//     its next wake (orphaned exit).
package sender
