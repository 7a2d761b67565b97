package bulk

import (
	"fmt"
	"time"
)

// SyntheticError is the error forwarded to the reporter by the exception
// producer.
type SyntheticError struct {
	Index int
	At    time.Time
}

// Error implements the error interface
func (e *SyntheticError) Error() string {
	return fmt.Sprintf("Bulk exception #%d - %s", e.Index, e.At.Format(time.DateTime))
}

func raise(i int, at time.Time) error {
	return &SyntheticError{Index: i, At: at}
}
