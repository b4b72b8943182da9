// Package notifier delivers status messages to the configured chat.
//
// Delivery is synchronous and fire-and-forget: a failed send is logged (and
// journaled when storage is enabled) but never retried. The next poll
// iteration produces a fresh message anyway.
//
// # Deduplication
//
// When enabled, a message whose text equals the last successfully delivered
// text is suppressed. Repeated "no change" and identical failure messages
// therefore reach the chat once.
//
// # History
//
// The service keeps a small in-memory history of delivered messages for the
// /status command.
package notifier
