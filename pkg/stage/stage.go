// Package stage defines the response contract and run_log bookkeeping shared
// by every pipeline stage endpoint.
package stage

import (
	"context"
	"fmt"

	"github.com/elonfeng/toolrank/internal/store"
)

// Result is the shape operators and monitors alert on:
// { success, total, updated, skipped, errors[] }.
type Result struct {
	Success bool     `json:"success"`
	Total   int      `json:"total"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// Errorf appends one recorded per-item error.
func (r *Result) Errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Func is one pipeline stage body. A non-nil error means the stage failed
// before its item iteration started; per-item failures live in the Result.
type Func func(ctx context.Context) (*Result, error)

// Run executes one stage with run_log bookkeeping: the source is marked
// running first and always marked finished with final counters, whatever
// the stage body did.
func Run(ctx context.Context, s store.Store, sourceKey string, fn Func) *Result {
	runID, err := s.StartRun(ctx, sourceKey)
	if err != nil {
		return &Result{Success: false, Errors: []string{err.Error()}}
	}

	res, err := fn(ctx)
	status := store.RunComplete
	if err != nil {
		status = store.RunFailed
		if res == nil {
			res = &Result{}
		}
		res.Success = false
		res.Errorf("%s: %v", sourceKey, err)
	} else {
		if res == nil {
			res = &Result{}
		}
		res.Success = true
	}

	if ferr := s.FinishRun(ctx, runID, status, res.Total, res.Updated, res.Skipped, res.Errors); ferr != nil {
		res.Errorf("finish run: %v", ferr)
	}
	return res
}
