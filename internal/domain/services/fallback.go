// Package services implements the trusted remote-script acquisition
// pipeline: geo classification and verified script execution.
package services

import (
	"context"
	"errors"
	"fmt"
)

// Attempt is one provider in an ordered fallback chain.
type Attempt[T any] struct {
	Name string
	Do   func(ctx context.Context) (T, error)
}

// FirstSuccess runs attempts in order and returns the first success. When
// every attempt fails, the aggregate error names each attempt. The same
// combinator serves the geo classifier's IP-mode ladder, the trusted
// runner's hash-source fallback and the orchestrator's mirror fallback.
func FirstSuccess[T any](ctx context.Context, attempts []Attempt[T]) (T, error) {
	var zero T

	if len(attempts) == 0 {
		return zero, errors.New("no attempts configured")
	}

	var errs []error
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := a.Do(ctx)
		if err == nil {
			return v, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
	}

	return zero, errors.Join(errs...)
}
