// Package host implements the process shutdown primitive: a grace-period
// countdown with coarse operator notices, ending in process exit. The
// countdown is driven by the owner's tick loop, not by timers.
package host

import (
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"shutdownd/internal/timefmt"
	"shutdownd/pkg/logx"
)

type Mode int

const (
	ModeShutdown Mode = iota
	ModeRestart
)

func (m Mode) String() string {
	if m == ModeRestart {
		return "restart"
	}
	return "shutdown"
}

// Exit codes reported to the supervisor. RestartExitCode tells a wrapper
// script (or systemd unit with Restart=on-success plus SuccessExitStatus)
// to bring the process back up.
const (
	ShutdownExitCode = 0
	ErrorExitCode    = 1
	RestartExitCode  = 2
)

// noticeMarks are the countdown thresholds at which a notice is broadcast,
// descending. A notice fires when the remaining time crosses a mark.
var noticeMarks = []time.Duration{
	12 * time.Hour,
	6 * time.Hour,
	3 * time.Hour,
	time.Hour,
	30 * time.Minute,
	15 * time.Minute,
	10 * time.Minute,
	5 * time.Minute,
	time.Minute,
	30 * time.Second,
	10 * time.Second,
	5 * time.Second,
	4 * time.Second,
	3 * time.Second,
	2 * time.Second,
	time.Second,
}

type Broadcaster interface {
	Broadcast(message string)
}

// World owns the pending shutdown state. Update must be called from the same
// goroutine as RequestShutdown/CancelPendingShutdown.
type World struct {
	log   logx.Logger
	bcast Broadcaster

	// injectable for tests
	exit   func(code int)
	notify func(unsetEnv bool, state string) (bool, error)

	pending   bool
	mode      Mode
	exitCode  int
	remaining time.Duration
}

func New(bcast Broadcaster, log logx.Logger) *World {
	return &World{
		log:    log,
		bcast:  bcast,
		exit:   os.Exit,
		notify: daemon.SdNotify,
	}
}

// RequestShutdown arms (or re-arms) the countdown. A non-positive grace
// executes immediately.
func (w *World) RequestShutdown(grace time.Duration, mode Mode, exitCode int) {
	w.mode = mode
	w.exitCode = exitCode
	if grace <= 0 {
		w.pending = true
		w.execute()
		return
	}
	w.pending = true
	w.remaining = grace
	w.log.Info("shutdown requested",
		logx.String("mode", mode.String()),
		logx.Duration("grace", grace),
		logx.Int("exit_code", exitCode))
}

// CancelPendingShutdown disarms the countdown. Safe to call when nothing is
// pending.
func (w *World) CancelPendingShutdown() {
	if !w.pending {
		return
	}
	w.pending = false
	w.remaining = 0
	w.log.Info("pending shutdown cancelled", logx.String("mode", w.mode.String()))
	if w.bcast != nil {
		w.bcast.Broadcast("[SERVER]: Scheduled " + w.mode.String() + " cancelled.")
	}
}

// ShutdownPending reports whether a countdown is armed.
func (w *World) ShutdownPending() bool { return w.pending }

// ShutdownRemaining returns the time left on the countdown.
func (w *World) ShutdownRemaining() time.Duration { return w.remaining }

// Update advances the countdown, broadcasting a notice whenever the
// remaining time crosses one of the coarse marks, and executes the shutdown
// once the countdown reaches zero.
func (w *World) Update(elapsed time.Duration) {
	if !w.pending || elapsed <= 0 {
		return
	}
	prev := w.remaining
	w.remaining -= elapsed

	if w.remaining <= 0 {
		w.execute()
		return
	}

	for _, mark := range noticeMarks {
		if prev > mark && w.remaining <= mark {
			msg := "[SERVER]: " + modeTitle(w.mode) + " in " + timefmt.Human(mark)
			w.log.Info("countdown notice", logx.Duration("remaining", mark))
			if w.bcast != nil {
				w.bcast.Broadcast(msg)
			}
			break
		}
	}
}

func (w *World) execute() {
	w.pending = false
	w.remaining = 0
	w.log.Info("executing shutdown",
		logx.String("mode", w.mode.String()),
		logx.Int("exit_code", w.exitCode))

	// Tell the service manager we are leaving on purpose.
	if _, err := w.notify(false, daemon.SdNotifyStopping); err != nil {
		w.log.Debug("sd_notify failed", logx.Err(err))
	}
	w.exit(w.exitCode)
}

func modeTitle(m Mode) string {
	if m == ModeRestart {
		return "Server restart"
	}
	return "Server shutdown"
}
