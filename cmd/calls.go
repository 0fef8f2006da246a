package cmd

import (
	"errors"

	"github.com/tiangong-ai/greenlit/internal/research"
)

// emit prints a single-capability outcome. Planned calls and no-source
// answers print the outcome itself; successes print the decoded payload.
func emit(e *env, out research.Outcome, payload any) error {
	if out.NoSource {
		if err := e.formatter.Result(out); err != nil {
			return err
		}
		return &ExitError{Code: 2, Err: errors.New(out.Remediation)}
	}
	if out.Planned {
		return e.formatter.Result(out)
	}
	return e.formatter.Result(payload)
}
