// Package cache provides the key-value stores exercised by the harness: a
// Redis store, an in-process memory store and a store that rejects every
// write, used to produce cache failure events.
package cache
