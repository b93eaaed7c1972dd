package graph

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, one per row of the error table: each is surfaced to
// the caller verbatim except ExecutionFailed, which the engine recovers from.
var (
	ErrDuplicatePortName  = errors.New("graph: duplicate port name")
	ErrUnknownPortName    = errors.New("graph: unknown port name")
	ErrHubNotEditable     = errors.New("graph: hub is not editable")
	ErrDuplicateBlockName = errors.New("graph: duplicate block name")
	ErrBlockNotFound      = errors.New("graph: block not found")
	ErrCyclicGraph        = errors.New("graph: cyclic graph")
	ErrInvalidEndpoint    = errors.New("graph: invalid connection endpoint")
	ErrDanglingConnection = errors.New("graph: dangling connection reference")
	ErrExecutionFailed    = errors.New("graph: execution failed")
)

// isExecutionFailed reports whether err is (or wraps) ErrExecutionFailed —
// the one error kind the engine recovers from rather than aborting the run.
func isExecutionFailed(err error) bool {
	return errors.Is(err, ErrExecutionFailed)
}

// newExecutionFailedError wraps a collaborator failure (sandbox or LLM
// provider) as ErrExecutionFailed, keeping the original error reachable via
// errors.Is/errors.Unwrap.
func newExecutionFailedError(block string, cause error) error {
	return fmt.Errorf("%w: block %s: %w", ErrExecutionFailed, block, cause)
}
