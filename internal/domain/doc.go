// Package domain contains the host-owned entities the harness touches:
// users it notifies and the notifications it writes. The harness never owns
// these records; it only reads or appends to them.
package domain
