package fallback

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"socialdownloader/internal/core/domain"
)

func quietRunner() *Runner {
	return &Runner{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func strategies(names ...string) []Strategy {
	out := make([]Strategy, len(names))
	for i, n := range names {
		out[i] = Strategy{Name: n, Args: []string{"--user-agent", n}}
	}
	return out
}

func TestRunStopsAtFirstSuccess(t *testing.T) {
	var tried []string
	got, err := Run(context.Background(), quietRunner(), strategies("a", "b", "c"),
		func(_ context.Context, s Strategy) (string, error) {
			tried = append(tried, s.Name)
			if s.Name == "b" {
				return "ok-" + s.Args[1], nil
			}
			return "", errors.New("blocked")
		})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got != "ok-b" {
		t.Fatalf("Run() = %q, want %q", got, "ok-b")
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(tried, want) {
		t.Fatalf("tried = %v, want %v", tried, want)
	}
}

func TestRunAllFail(t *testing.T) {
	last := &domain.ExtractionError{ExitCode: 1, Reason: domain.ErrRateLimited}
	calls := 0
	_, err := Run(context.Background(), quietRunner(), strategies("a", "b"),
		func(_ context.Context, s Strategy) (int, error) {
			calls++
			if s.Name == "b" {
				return 0, last
			}
			return 0, domain.ErrParseFailed
		})
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	var exhausted *AllStrategiesExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("Run() error = %T, want *AllStrategiesExhaustedError", err)
	}
	if len(exhausted.Attempts) != 2 || exhausted.Attempts[0].Strategy != "a" {
		t.Fatalf("Attempts = %+v", exhausted.Attempts)
	}
	if !errors.Is(err, domain.ErrAllStrategiesExhausted) {
		t.Fatalf("errors.Is(err, ErrAllStrategiesExhausted) = false")
	}
	if !errors.Is(err, domain.ErrRateLimited) || exhausted.Last() != last {
		t.Fatalf("Run() error does not carry the last error: %v", err)
	}
}

func TestRunEmptyStrategies(t *testing.T) {
	got, err := Run(context.Background(), nil, nil,
		func(_ context.Context, s Strategy) (string, error) {
			if s.Args != nil {
				t.Fatalf("default strategy args = %v, want nil", s.Args)
			}
			return s.Name, nil
		})
	if err != nil || got != "default" {
		t.Fatalf("Run() = %q, %v, want default, nil", got, err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Run(ctx, quietRunner(), strategies("a", "b", "c"),
		func(ctx context.Context, s Strategy) (int, error) {
			calls++
			cancel()
			return 0, ctx.Err()
		})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want %v", err, context.Canceled)
	}
	if errors.Is(err, domain.ErrAllStrategiesExhausted) {
		t.Fatalf("cancelled chain reported as exhausted")
	}
}

func TestRunPacesAttempts(t *testing.T) {
	r := quietRunner()
	r.Pacer = rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
	var stamps []time.Time
	_, _ = Run(context.Background(), r, strategies("a", "b", "c"),
		func(_ context.Context, _ Strategy) (int, error) {
			stamps = append(stamps, time.Now())
			return 0, errors.New("no")
		})
	if len(stamps) != 3 {
		t.Fatalf("attempts = %d, want 3", len(stamps))
	}
	if d := stamps[2].Sub(stamps[1]); d < 10*time.Millisecond {
		t.Fatalf("attempts 2 and 3 were %v apart, want paced", d)
	}
}
