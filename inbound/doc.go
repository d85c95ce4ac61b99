// Package inbound routes provider webhooks to handlers by provider and event.
//
// Deliveries carrying an idempotency key use claim/complete/fail semantics:
// a completed key is deduplicated for the key TTL while a failed one stays
// retryable.
package inbound
