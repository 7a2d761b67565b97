// Package mail builds and delivers the harness mail messages. Messages are
// sent synchronously through a Transport or handed to the task runner as a
// queued-mail task.
package mail
