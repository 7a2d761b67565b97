// Package api serves the Nightwatch test endpoints under
// /api/nightwatch-test. Each endpoint exists to produce an event a
// monitoring agent should capture: a request, an outgoing HTTP call, a
// batch of bulk events, a queued job or a reported exception.
package api
