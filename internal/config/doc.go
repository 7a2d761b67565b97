// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the harness settings (bulk limits, collaborator drivers, probe
// endpoints) while keeping configuration details separate from the
// generators that consume them.
package config
