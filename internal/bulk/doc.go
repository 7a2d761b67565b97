// Package bulk produces synthetic load for an external monitoring agent.
//
// A Generator fans a requested count out across one of six event
// categories (queries, cache, jobs, mail, notifications, exceptions) or all
// of them in a fixed order. Every side effect goes through a collaborator
// interface supplied at construction, so the package itself holds no state
// between calls and Generate is safe to call concurrently.
package bulk
