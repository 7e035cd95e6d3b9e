// Package resource resolves named JSON resources through the on-disk cache.
// Cache.Get prefers the local entry and only reaches the network on a miss
// or a forced refresh; a fetched payload is validated as JSON and durably
// written before it is returned. Registry holds the explicit name → locator
// mapping and Sync walks it the way the CLI driver needs.
//
// The package does no locking. Callers that resolve the same name from
// several goroutines must serialize those calls themselves.
package resource
