package capability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"caseline/internal/ledger"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPolicy(limit int) RetryPolicy {
	return RetryPolicy{Limit: limit, InitialInterval: time.Millisecond}
}

func TestInvokeWithRetry_TransientFailureThenSuccess(t *testing.T) {
	attempts := 0
	check := &Func{CapName: "flaky_check", Fn: func(_ context.Context, _ Request) (*Result, error) {
		attempts++
		if attempts < 3 {
			return nil, &Failure{Capability: "flaky_check", Kind: FailRateLimited, Msg: "throttled"}
		}
		return &Result{Findings: []ledger.Finding{{Subject: "x", Claim: "ok", Class: ledger.Inferred}}}, nil
	}}

	res, err := InvokeWithRetry(context.Background(), check, Request{Subject: "x"}, fastPolicy(3), discard())
	if err != nil {
		t.Fatalf("InvokeWithRetry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(res.Findings) != 1 {
		t.Errorf("findings = %d, want 1", len(res.Findings))
	}
}

func TestInvokeWithRetry_PermanentFailureNotRetried(t *testing.T) {
	for _, kind := range []FailureKind{FailNoResults, FailRefused} {
		t.Run(string(kind), func(t *testing.T) {
			attempts := 0
			check := &Func{CapName: "one_shot", Fn: func(_ context.Context, _ Request) (*Result, error) {
				attempts++
				return nil, &Failure{Capability: "one_shot", Kind: kind, Msg: "nope"}
			}}

			_, err := InvokeWithRetry(context.Background(), check, Request{Subject: "x"}, fastPolicy(5), discard())
			f := AsFailure(err)
			if f == nil || f.Kind != kind {
				t.Fatalf("expected %s failure, got %v", kind, err)
			}
			if attempts != 1 {
				t.Errorf("attempts = %d, want 1", attempts)
			}
		})
	}
}

func TestInvokeWithRetry_ExhaustionReturnsLastError(t *testing.T) {
	attempts := 0
	check := &Func{CapName: "always_down", Fn: func(_ context.Context, _ Request) (*Result, error) {
		attempts++
		return nil, &Failure{Capability: "always_down", Kind: FailError, Msg: "backend unreachable"}
	}}

	_, err := InvokeWithRetry(context.Background(), check, Request{Subject: "x"}, fastPolicy(2), discard())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	// 1 initial attempt + 2 retries.
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	f := AsFailure(err)
	if f == nil || f.Kind != FailError {
		t.Errorf("expected the last ERROR failure, got %v", err)
	}
}

func TestInvokeWithRetry_ContextCancelStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	check := &Func{CapName: "slow_check", Fn: func(_ context.Context, _ Request) (*Result, error) {
		cancel()
		return nil, &Failure{Capability: "slow_check", Kind: FailError, Msg: "transient"}
	}}

	_, err := InvokeWithRetry(ctx, check, Request{Subject: "x"}, RetryPolicy{Limit: 10, InitialInterval: 50 * time.Millisecond}, discard())
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if r.Lookup("missing") != nil {
		t.Error("Lookup on empty registry must return nil")
	}
	r.Register(&Func{CapName: "b_check"})
	r.Register(&Func{CapName: "a_check"})
	if r.Lookup("a_check") == nil {
		t.Error("registered capability not found")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "a_check" || names[1] != "b_check" {
		t.Errorf("Names = %v, want sorted [a_check b_check]", names)
	}
}

func TestFailure_Retryable(t *testing.T) {
	retryable := map[FailureKind]bool{
		FailRateLimited: true,
		FailError:       true,
		FailNoResults:   false,
		FailRefused:     false,
	}
	for kind, want := range retryable {
		f := &Failure{Capability: "c", Kind: kind, Msg: "m"}
		if f.Retryable() != want {
			t.Errorf("%s Retryable = %v, want %v", kind, !want, want)
		}
	}
	var err error = &Failure{Capability: "c", Kind: FailError, Msg: "m"}
	wrapped := errors.Join(errors.New("outer"), err)
	if AsFailure(wrapped) == nil {
		t.Error("AsFailure must unwrap a joined failure")
	}
	if AsFailure(errors.New("plain")) != nil {
		t.Error("AsFailure on a plain error must return nil")
	}
}
