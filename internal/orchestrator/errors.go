package orchestrator

import (
	"errors"
	"fmt"

	"wfsync/internal/billing"
)

var (
	ErrAgentNotFound = errors.New("orchestrator: agent not found")
	ErrForbidden     = errors.New("orchestrator: agent does not belong to requester")
)

// AccessDeniedError wraps a non-Allowed billing.AccessResult so the HTTP
// layer can map it to the §7 taxonomy's {error, reason} body.
type AccessDeniedError struct {
	Reason billing.AccessResult
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("orchestrator: access denied: %s", e.Reason)
}

// UpstreamError wraps a failure from the agent runtime (or embedding
// provider) reached while serving a turn; the orchestrator never charges
// tokens for a turn that fails this way.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("orchestrator: upstream: %s", e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }
