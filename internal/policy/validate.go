// Package policy validates CEL-lite policy expressions before they are
// persisted, so a broken expression never makes it into the policy table.
package policy

import (
	"errors"

	cellite "github.com/SourceRegistry/cel-lite"
)

// Validate compiles expr against the default resource limits and discards
// the resulting program; it exists purely to surface compile errors at
// write time instead of at evaluation time.
func Validate(expr string) error {
	if expr == "" {
		return errors.New("expr must not be empty")
	}
	_, err := cellite.Compile(expr, cellite.DefaultOptions())
	return err
}
