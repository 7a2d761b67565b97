// Package task manages background job queuing, processing, and lifecycle.
// It plays the role of the host queue the harness exercises: jobs are
// submitted, executed on a worker pool, released back to the queue with a
// delay, or failed and handed to a failure handler. The harness owns no
// persistence, so task state lives in an in-memory store.
package task
