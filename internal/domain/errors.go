package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
)

// DataValidationError reports a missing or invalid required field.
// It is raised before any matrix computation or solve.
type DataValidationError struct {
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *DataValidationError) Error() string {
	var b strings.Builder
	b.WriteString("data validation: ")
	b.WriteString(e.Entity)
	if e.ID != "" {
		fmt.Fprintf(&b, " %q", e.ID)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	return b.String()
}

// InfeasibleInstanceError names the entity that makes an instance unsolvable.
type InfeasibleInstanceError struct {
	EntityKind string
	EntityID   string
	Constraint string
	// VehicleID is set when one specific pairing fails.
	VehicleID string
	Hints     []string
}

func (e *InfeasibleInstanceError) Error() string {
	msg := fmt.Sprintf("infeasible instance: %s %q: %s", e.EntityKind, e.EntityID, e.Constraint)
	if e.VehicleID != "" {
		msg += fmt.Sprintf(" (vehicle %q)", e.VehicleID)
	}
	if len(e.Hints) > 0 {
		msg += "; " + strings.Join(e.Hints, "; ")
	}
	return msg
}

// SolverTimeoutError is non-fatal: it accompanies the best solution found
// when the time limit ends the search before optimality is proven.
type SolverTimeoutError struct {
	TimeLimit time.Duration
	Gap       float64
}

func (e *SolverTimeoutError) Error() string {
	if e.Gap < 0 {
		return fmt.Sprintf("solver timeout after %s: gap unknown", e.TimeLimit)
	}
	return fmt.Sprintf("solver timeout after %s: gap %.4f", e.TimeLimit, e.Gap)
}

// ProviderUnavailableError is returned by routing providers once the retry
// budget is spent. The matrix service recovers from it with a fallback mode.
type ProviderUnavailableError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// CacheCorruptionError reports an unreadable or malformed matrix cache.
type CacheCorruptionError struct {
	Source string
	Err    error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("matrix cache %s is corrupt: %v", e.Source, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }
