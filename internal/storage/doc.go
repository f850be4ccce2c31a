// Package storage provides a minimal persistence layer used by the bot.
//
// It currently supports:
//   - Dispatch history appends (every delivered congratulation)
//   - Cron-scheduled retention pruning
//
// Job state (registry entries, queues) is deliberately NOT persisted; on
// restart all chats start clean.
package storage
