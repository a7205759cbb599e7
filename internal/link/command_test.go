package link

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCommandRejoiner_Empty(t *testing.T) {
	for _, argv := range [][]string{nil, {}, {""}} {
		if _, err := NewCommandRejoiner(CommandConfig{Command: argv}); !errors.Is(err, ErrEmptyCommand) {
			t.Errorf("NewCommandRejoiner(%q) error = %v, want ErrEmptyCommand", argv, err)
		}
	}
}

func TestCommandRejoiner_RunsCommandAndCallsAfter(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "rejoined")
	after := make(chan struct{}, 1)

	r, err := NewCommandRejoiner(CommandConfig{
		Command: []string{"sh", "-c", "echo reconnecting; touch " + marker},
		After:   func() { after <- struct{}{} },
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewCommandRejoiner() error = %v", err)
	}

	if err := r.Rejoin(context.Background()); err != nil {
		t.Fatalf("Rejoin() error = %v", err)
	}

	select {
	case <-after:
	case <-time.After(5 * time.Second):
		t.Fatal("After was not called")
	}

	if _, err := os.Stat(marker); err != nil {
		t.Errorf("command did not run: %v", err)
	}
	if r.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1", r.Runs())
	}
}

func TestCommandRejoiner_SingleFlight(t *testing.T) {
	release := filepath.Join(t.TempDir(), "release")
	after := make(chan struct{}, 4)

	r, err := NewCommandRejoiner(CommandConfig{
		Command: []string{"sh", "-c", "while [ ! -f " + release + " ]; do sleep 0.01; done"},
		After:   func() { after <- struct{}{} },
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewCommandRejoiner() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := r.Rejoin(context.Background()); err != nil {
			t.Fatalf("Rejoin() error = %v", err)
		}
	}

	if err := os.WriteFile(release, nil, 0600); err != nil {
		t.Fatalf("write release: %v", err)
	}

	select {
	case <-after:
	case <-time.After(5 * time.Second):
		t.Fatal("After was not called")
	}

	if r.Runs() != 1 {
		t.Errorf("Runs() = %d, want 1 while a run was in flight", r.Runs())
	}
}

func TestCommandRejoiner_FailureStillCallsAfter(t *testing.T) {
	after := make(chan struct{}, 1)

	r, err := NewCommandRejoiner(CommandConfig{
		Command: []string{"sh", "-c", "exit 3"},
		Timeout: time.Second,
		After:   func() { after <- struct{}{} },
		Logger:  discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewCommandRejoiner() error = %v", err)
	}

	_ = r.Rejoin(context.Background())

	select {
	case <-after:
	case <-time.After(5 * time.Second):
		t.Fatal("After was not called after a failed run")
	}
}
