// Package strategy implements the three ways a workload is pushed through a store:
// sequential blocking calls, a bounded worker pool, and futures joined in completion order.
//
// Every strategy runs a write phase followed by a delete phase over the same items, so a
// successful run leaves the collection as it found it. A phase is complete only after
// every receipt has been observed.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"go-docbench/internal/workload"
	"go-docbench/pkg/docstore"
)

const (
	NameSequential  = "sequential"
	NamePooled      = "pooled"
	NameCooperative = "cooperative"

	PhaseWrite  = "write"
	PhaseDelete = "delete"

	// DefaultPoolWidth is the worker count of the pooled strategy unless configured.
	DefaultPoolWidth = 10
)

type (

	// Strategy runs one full write+delete cycle of a workload against a store.
	Strategy interface {
		Name() string
		Run(ctx context.Context, store docstore.Store, collection string, w workload.Workload) error
	}

	// TrialError reports a remote call failure that aborted a run
	TrialError struct {
		Strategy  string
		Phase     string
		Completed int // Calls of the failed phase that succeeded before the failure was observed
		Err       error
	}

	// MeasurementError reports a phase that ended with missing or unacknowledged receipts
	MeasurementError struct {
		Strategy  string
		Phase     string
		Submitted int
		Observed  int
	}
)

func (e *TrialError) Error() string {
	return fmt.Sprintf("%s %s phase failed after %d calls: %v", e.Strategy, e.Phase, e.Completed, e.Err)
}

func (e *TrialError) Unwrap() error {
	return e.Err
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("%s %s phase observed %d of %d receipts", e.Strategy, e.Phase, e.Observed, e.Submitted)
}

// IsTrialError checks if the error is a TrialError
func IsTrialError(err error) bool {
	var te *TrialError
	return errors.As(err, &te)
}

// IsMeasurementError checks if the error is a MeasurementError
func IsMeasurementError(err error) bool {
	var me *MeasurementError
	return errors.As(err, &me)
}

// GetTrialError extracts a TrialError from the error chain
func GetTrialError(err error) (*TrialError, bool) {
	var te *TrialError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// New returns the strategy called name. poolWidth only applies to the pooled strategy.
func New(name string, poolWidth int) (Strategy, error) {
	switch name {
	case NameSequential:
		return Sequential{}, nil
	case NamePooled:
		return NewPooled(poolWidth)
	case NameCooperative:
		return Cooperative{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Names lists the available strategies in report order.
func Names() []string {
	return []string{NameSequential, NamePooled, NameCooperative}
}

// observe reads the acknowledgment of every receipt. Unacknowledged receipts do not count.
func observe[R docstore.Receipt](receipts []R) int {
	observed := 0
	for _, r := range receipts {
		if docstore.Acknowledged(r) {
			observed++
		}
	}
	return observed
}
