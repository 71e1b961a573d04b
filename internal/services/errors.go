package services

import (
	"errors"
	"fmt"
	"strings"
)

// Batch-level and lookup errors. Ingestion and mapping errors surface as
// HTTP 400; per-participant errors during a batch are recovered locally and
// only ever appear inside the batch result list.
var (
	ErrUnknownField           = errors.New("unknown field")
	ErrNoEligibleParticipants = errors.New("no eligible participants")
	ErrCodeSpaceExhausted     = errors.New("code space exhausted")
	ErrAlreadyIssued          = errors.New("certificate already issued")
	ErrNotFound               = errors.New("not found")
)

// IncompleteMappingError blocks generation while any extracted placeholder
// is still unmapped.
type IncompleteMappingError struct {
	Missing []string
}

func (e *IncompleteMappingError) Error() string {
	return fmt.Sprintf("incomplete placeholder mapping, missing: %s", strings.Join(e.Missing, ", "))
}
