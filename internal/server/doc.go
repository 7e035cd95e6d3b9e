// Package server hosts the optional Fiber HTTP surface that exposes registered
// resources. Every request resolves through the same cache core the CLI uses,
// so a resource is fetched at most once until a client asks for ?refresh=true.
// The core does no locking; handlers serialize resolutions per resource name.
package server
