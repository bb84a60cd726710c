package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus/internal/platform/config"
)

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{
		"":      ":8080",
		" 9000": ":9000",
		":7000": ":7000",
	}
	for input, want := range cases {
		if got := normalizeAddr(input); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", input, got, want)
		}
	}
}

type countingRelay struct {
	calls int
	err   error
}

func (r *countingRelay) RunOnce(context.Context) error {
	r.calls++
	return r.err
}

func TestWorkerKeepsPollingAfterRelayFailure(t *testing.T) {
	failing := &countingRelay{err: errors.New("broker down")}
	healthy := &countingRelay{}
	app := &WorkerApp{
		relays: []relay{
			{name: "election", runner: failing},
			{name: "student", runner: healthy},
		},
		pollInterval: 5 * time.Millisecond,
		logger:       newLogger(config.Config{ServiceName: "campus"}, "worker"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if failing.calls < 2 || healthy.calls < 2 {
		t.Fatalf("expected repeated cycles, got failing=%d healthy=%d", failing.calls, healthy.calls)
	}
}

func TestStoresCloseRunsInReverseOrder(t *testing.T) {
	var order []string
	st := stores{closers: []func() error{
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("boom") },
	}}
	if err := st.close(); err == nil {
		t.Fatalf("expected joined error")
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("unexpected close order %v", order)
	}
}
