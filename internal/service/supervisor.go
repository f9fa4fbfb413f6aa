// Package service also implements the Service Supervisor (C11, spec
// §4.11): a restart-on-crash loop around the long-running process, plus
// the Prometheus metrics and scheduled GC sweep that round out the
// ambient operational stack. Grounded on
// original_source/agent_platform.py's AgentPlatform.start_service for
// the exact restart semantics (max_restarts=5, base_delay=5s, linear
// backoff, notify-then-give-up) and on the teacher's
// internal/restart/sentinel.go for the JSON sentinel file used to
// persist the last crash for post-mortem inspection.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/earchibald/brainbridge/internal/restart"
)

// MaxRestarts and BaseRestartDelay are agent_platform.py's start_service
// numbers verbatim: 5 attempts, a 5-second base delay multiplied
// linearly by the crash count. The fifth crash gives up without a delay,
// so the delays actually slept are 5s, 10s, 15s and 20s.
const (
	MaxRestarts      = 5
	BaseRestartDelay = 5 * time.Second
)

// Notifier is the minimal collaborator the supervisor needs to report
// crashes and permanent failure — satisfied by internal/notify.Client.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Run is the long-running service body; it should block until ctx is
// canceled and return nil on a clean stop, or a non-nil error on crash.
type Run func(ctx context.Context) error

// Supervisor restarts Run on failure, up to MaxRestarts times, with the
// base_delay*restart_count linear backoff from agent_platform.py, and
// exits cleanly without restarting on context cancellation (mirroring
// that function's explicit KeyboardInterrupt early-break).
type Supervisor struct {
	Name     string
	Run      Run
	Notifier Notifier
	StateDir string // where the crash sentinel is written; empty disables it
	Metrics  *Metrics
	Logger   *slog.Logger
}

// NewSupervisor builds a Supervisor with sane defaults.
func NewSupervisor(name string, run Run, notifier Notifier, stateDir string, metrics *Metrics, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{Name: name, Run: run, Notifier: notifier, StateDir: stateDir, Metrics: metrics, Logger: logger.With("component", "supervisor")}
}

// Serve runs the supervised loop until ctx is canceled, the body
// returns cleanly, or MaxRestarts is exceeded (in which case it
// notifies and returns a non-nil error, matching start_service's
// final `raise`).
func (s *Supervisor) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	restartCount := 0
	for restartCount < MaxRestarts {
		err := s.Run(ctx)

		if err == nil {
			s.Logger.Info("service stopped gracefully", "name", s.Name)
			return nil
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			s.Logger.Info("service interrupted", "name", s.Name)
			return nil
		}

		restartCount++
		delay := BaseRestartDelay * time.Duration(restartCount)
		s.Logger.Error("service crashed", "name", s.Name, "attempt", restartCount, "max_restarts", MaxRestarts, "error", err)
		if s.Metrics != nil {
			s.Metrics.RestartsTotal.Inc()
		}
		s.writeCrashSentinel(err)
		s.notify(ctx, fmt.Sprintf("⚠️ %s crashed (restart %d/%d): %v", s.Name, restartCount, MaxRestarts, err))

		if restartCount >= MaxRestarts {
			s.Logger.Error("service exceeded max restarts, giving up", "name", s.Name)
			s.notify(ctx, fmt.Sprintf("❌ %s failed permanently after %d restart attempts", s.Name, MaxRestarts))
			return fmt.Errorf("%s: exceeded %d restarts: %w", s.Name, MaxRestarts, err)
		}

		s.Logger.Info("restarting", "name", s.Name, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func (s *Supervisor) notify(ctx context.Context, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, s.Name, message); err != nil {
		s.Logger.Warn("failed to send crash notification", "error", err)
	}
}

// writeCrashSentinel persists the crash to StateDir via
// restart.WriteSentinel (a direct, non-atomic file write), so a later `doctor`-style inspection
// can see the last failure without grepping logs.
func (s *Supervisor) writeCrashSentinel(crashErr error) {
	if s.StateDir == "" {
		return
	}
	msg := crashErr.Error()
	if err := restart.WriteSentinel(s.StateDir, restart.SentinelPayload{
		Kind:    restart.KindRestart,
		Status:  restart.StatusError,
		Ts:      time.Now().Unix(),
		Message: &msg,
	}); err != nil {
		s.Logger.Warn("failed to write crash sentinel", "error", err)
	}
}
