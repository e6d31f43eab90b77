package engine

import "fmt"

// ProposalError reports a structurally invalid policy proposal. It is the
// only turn-blocking error a player sees: it is raised before any backend
// call is made.
type ProposalError struct {
	Field  string
	Reason string
}

func (e *ProposalError) Error() string {
	return fmt.Sprintf("invalid proposal: %s %s", e.Field, e.Reason)
}
