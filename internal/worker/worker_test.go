package worker

import (
	"context"
	"testing"
	"time"
)

type fakeRunner struct {
	calls   int
	results []bool
}

func (f *fakeRunner) RunOnce(ctx context.Context) (bool, error) {
	idx := f.calls
	f.calls++

	if idx < len(f.results) {
		return f.results[idx], nil
	}

	return false, nil
}

func TestRunStopsOnContextCancel(t *testing.T) {
	runner := &fakeRunner{results: []bool{true, true, true}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := Run(ctx, runner, Config{SleepInterval: time.Millisecond})
	if err == nil {
		t.Fatal("expected context cancellation error")
	}

	if runner.calls == 0 {
		t.Fatal("expected RunOnce to be called at least once")
	}
}

func TestRunOnceDelegatesToRunner(t *testing.T) {
	runner := &fakeRunner{results: []bool{true}}

	ok, err := RunOnce(context.Background(), runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !ok {
		t.Fatal("expected true")
	}
}
