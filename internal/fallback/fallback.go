// Package fallback retries an extractor call across an ordered list of
// client identities until one is accepted.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"socialdownloader/internal/core/domain"
)

// Strategy is one named bag of extra extractor arguments. The runner never
// inspects Args.
type Strategy struct {
	Name string
	Args []string
}

// AttemptError captures one strategy failure.
type AttemptError struct {
	Strategy string
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

// AllStrategiesExhaustedError is returned when no strategy succeeded. It
// unwraps to both domain.ErrAllStrategiesExhausted and the last attempt's
// error.
type AllStrategiesExhaustedError struct {
	Attempts []AttemptError
}

func (e *AllStrategiesExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return domain.ErrAllStrategiesExhausted.Error()
	}
	names := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		names[i] = a.Strategy
	}
	return fmt.Sprintf(
		"%v (%s): %v",
		domain.ErrAllStrategiesExhausted,
		strings.Join(names, ", "),
		e.Last(),
	)
}

// Last returns the error of the final attempt.
func (e *AllStrategiesExhaustedError) Last() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[len(e.Attempts)-1].Err
}

func (e *AllStrategiesExhaustedError) Unwrap() []error {
	if last := e.Last(); last != nil {
		return []error{domain.ErrAllStrategiesExhausted, last}
	}
	return []error{domain.ErrAllStrategiesExhausted}
}

// Runner carries the shared settings of every fallback chain. The zero
// value is usable.
type Runner struct {
	// Pacer, when set, is waited on before every attempt after the first.
	Pacer  *rate.Limiter
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r == nil || r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) wait(ctx context.Context) error {
	if r == nil || r.Pacer == nil {
		return nil
	}
	return r.Pacer.Wait(ctx)
}

// Run tries attempt with each strategy in order and returns the first
// success. An empty list runs attempt once with the zero Strategy. Context
// cancellation ends the chain with the context's error.
func Run[T any](
	ctx context.Context,
	r *Runner,
	strategies []Strategy,
	attempt func(context.Context, Strategy) (T, error),
) (T, error) {
	var zero T
	if len(strategies) == 0 {
		return attempt(ctx, Strategy{Name: "default"})
	}

	log := r.logger()
	failed := &AllStrategiesExhaustedError{}
	for i, s := range strategies {
		if i > 0 {
			if err := r.wait(ctx); err != nil {
				return zero, fmt.Errorf("waiting for next strategy: %w", err)
			}
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		log.Debug("trying strategy", "strategy", s.Name, "attempt", i+1)
		v, err := attempt(ctx, s)
		if err == nil {
			if i > 0 {
				log.Info("strategy succeeded after fallback", "strategy", s.Name, "attempt", i+1)
			}
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, err
		}
		log.Warn("strategy failed", "strategy", s.Name, "err", err.Error())
		failed.Attempts = append(failed.Attempts, AttemptError{Strategy: s.Name, Err: err})
	}
	return zero, failed
}
