package link

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"
)

const defaultRejoinTimeout = 30 * time.Second

// ErrEmptyCommand is returned by NewCommandRejoiner without a command.
var ErrEmptyCommand = errors.New("link: rejoin command is empty")

// CommandConfig configures a CommandRejoiner.
type CommandConfig struct {
	// Command is the program and its arguments, for example
	// ["wpa_cli", "-i", "wlan0", "reconnect"].
	Command []string

	// Timeout bounds one run (default: 30s).
	Timeout time.Duration

	// After is called when a run finishes, successful or not. Typically
	// it triggers an immediate link re-probe.
	After func()

	// Logger for structured logging. Uses slog.Default() if nil.
	Logger *slog.Logger
}

// CommandRejoiner asks the host to rejoin the network by running an
// external command. At most one run is in flight; Rejoin never blocks.
type CommandRejoiner struct {
	cfg     CommandConfig
	running atomic.Bool
	runs    atomic.Uint64
}

// NewCommandRejoiner validates cfg.
func NewCommandRejoiner(cfg CommandConfig) (*CommandRejoiner, error) {
	if len(cfg.Command) == 0 || cfg.Command[0] == "" {
		return nil, ErrEmptyCommand
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRejoinTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CommandRejoiner{cfg: cfg}, nil
}

// Rejoin starts the command in the background unless a run is already in
// progress.
func (r *CommandRejoiner) Rejoin(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		r.cfg.Logger.Debug("rejoin command already running")
		return nil
	}
	go r.run(ctx)
	return nil
}

// Runs returns how many times the command has been started.
func (r *CommandRejoiner) Runs() uint64 {
	return r.runs.Load()
}

func (r *CommandRejoiner) run(ctx context.Context) {
	defer r.running.Store(false)
	r.runs.Add(1)

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	name := r.cfg.Command[0]
	r.cfg.Logger.Info("running rejoin command", "command", name, "args", r.cfg.Command[1:])

	cmd := exec.CommandContext(runCtx, name, r.cfg.Command[1:]...) //nolint:gosec // Command comes from the station's own config
	out, err := cmd.CombinedOutput()
	r.logOutput(name, out)

	if err != nil {
		r.cfg.Logger.Warn("rejoin command failed", "command", name, "error", fmt.Errorf("%s: %w", name, err))
	} else {
		r.cfg.Logger.Info("rejoin command finished", "command", name)
	}

	if r.cfg.After != nil && ctx.Err() == nil {
		r.cfg.After()
	}
}

// logOutput logs each output line at debug level.
func (r *CommandRejoiner) logOutput(name string, out []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			r.cfg.Logger.Debug("rejoin command output", "command", name, "output", line)
		}
	}
}
