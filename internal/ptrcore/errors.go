package ptrcore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind enumerates the fatal error categories the pipeline can surface. Most
// loop-local problems (a missing value, an address outside the pool) are
// handled defensively within a stage and never become a Kind; these are
// reserved for conditions that abort the run.
type Kind int

const (
	InvalidSystem Kind = iota
	BatchLimitExceeded
	InvalidBatchIndex
	InternalInvariantViolation
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case InvalidSystem:
		return "invalid_system"
	case BatchLimitExceeded:
		return "batch_limit_exceeded"
	case InvalidBatchIndex:
		return "invalid_batch_index"
	case InternalInvariantViolation:
		return "internal_invariant_violation"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Stage names the pipeline phase an Error originated in, for diagnostics and
// for the event sink's stage-transition reporting.
type Stage string

const (
	StagePreprocess    Stage = "preprocess"
	StageStaticDetect   Stage = "static"
	StageDynamicDetect  Stage = "dynamic"
	StagePrecompute     Stage = "precompute"
	StageScan           Stage = "scan"
	StageGenerate       Stage = "generate"
)

// Error is the error type the preprocessor (nodepool) and the orchestrator
// return; the catalog, runconfig and ingest packages return plain errors.
// It carries enough context (kind, stage, run id) for a host
// aggregating logs from several concurrent runs to make sense of a failure
// without needing to parse a message string.
type Error struct {
	Kind    Kind
	Stage   Stage
	RunID   uuid.UUID
	Message string
	cause   error
}

func NewError(kind Kind, stage Stage, runID uuid.UUID, message string) *Error {
	return &Error{Kind: kind, Stage: stage, RunID: runID, Message: message}
}

func WrapError(kind Kind, stage Stage, runID uuid.UUID, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, RunID: runID, Message: cause.Error(), cause: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(e.Kind.String())
	b.WriteString("]")
	if e.Stage != "" {
		fmt.Fprintf(&b, " stage=%s", e.Stage)
	}
	if e.RunID != uuid.Nil {
		fmt.Fprintf(&b, " run=%s", e.RunID)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }
