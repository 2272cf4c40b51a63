package report

import (
	"context"
	"errors"

	"github.com/talgya/surnamesim/internal/engine"
)

// Multi fans a snapshot out to every reporter in order. All reporters run
// even when one fails; the errors are joined.
type Multi []engine.Reporter

// Report implements engine.Reporter.
func (m Multi) Report(ctx context.Context, snap engine.Snapshot) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
