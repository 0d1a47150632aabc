package restart

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"shutdownd/internal/config"
	"shutdownd/internal/host"
	"shutdownd/internal/ticksched"
	"shutdownd/internal/timefmt"
	"shutdownd/pkg/logx"
)

const (
	maxWeekdayMask  = 127
	minIntervalDays = 1
	maxIntervalDays = 365

	// A configured lead time above maxLeadTime is treated as a config typo
	// and coerced to fallbackLeadTime instead of failing the whole module.
	maxLeadTime      = 24 * time.Hour
	fallbackLeadTime = time.Hour

	// Delay used when the announcement window has already closed: the
	// announcement fires on the next tick instead of in the past.
	minAnnounceDelay = time.Second
)

// Broadcaster delivers a text notice to all connected sessions.
type Broadcaster interface {
	Broadcast(message string)
}

// EventStarter begins auxiliary recurring events and resolves their
// descriptions for logging.
type EventStarter interface {
	StartEvent(id uint32) error
	Description(id uint32) string
}

// Host is the process shutdown primitive. The orchestrator only decides when
// and with what grace period to invoke it.
type Host interface {
	RequestShutdown(grace time.Duration, mode host.Mode, exitCode int)
	CancelPendingShutdown()
}

// HistoryRecorder persists an audit trail of computed schedules and
// requested restarts. All calls are best-effort.
type HistoryRecorder interface {
	RecordSchedule(ctx context.Context, next time.Time, lead time.Duration) error
	RecordRestart(ctx context.Context, at time.Time, grace time.Duration) error
}

// Rule is the validated recurrence rule, derived once per Initialize.
type Rule struct {
	WeekdayMask  uint8
	IntervalDays int
	Hour         int
	Minute       int
	Second       int
}

// ScheduleState is the derived schedule for the current initialization.
type ScheduleState struct {
	Enabled        bool
	NextOccurrence time.Time
	PreAnnounceAt  time.Time
	EffectiveLead  time.Duration
}

// announcement carries everything the armed pre-announce callback needs, so
// the callback's dependencies stay visible instead of hiding in closure
// captures.
type announcement struct {
	Lead   time.Duration
	Format string
}

// Deps are the collaborators the orchestrator drives. Broadcast and Host are
// required; Events and History may be nil.
type Deps struct {
	Broadcast Broadcaster
	Events    EventStarter
	Host      Host
	History   HistoryRecorder
}

// Orchestrator owns the restart schedule: it validates configuration,
// computes the next occurrence and arms the pre-announce action against its
// tick-driven scheduler. Initialize and Tick must run on the same goroutine
// (or be externally serialized); there is no internal locking.
type Orchestrator struct {
	log   logx.Logger
	deps  Deps
	sched *ticksched.Scheduler

	now func() time.Time

	state ScheduleState
}

func New(deps Deps, log logx.Logger) *Orchestrator {
	return &Orchestrator{
		log:   log,
		deps:  deps,
		sched: ticksched.New(),
		now:   time.Now,
	}
}

// State returns a snapshot of the derived schedule.
func (o *Orchestrator) State() ScheduleState { return o.state }

// Enabled reports whether the last Initialize armed a schedule.
func (o *Orchestrator) Enabled() bool { return o.state.Enabled }

// Tick advances the deferred scheduler by the elapsed wall time. No-op while
// the module is disabled.
func (o *Orchestrator) Tick(elapsed time.Duration) {
	if !o.state.Enabled {
		return
	}
	o.sched.Advance(elapsed)
}

// Initialize validates cfg, computes the schedule and arms the pre-announce
// action. It is idempotent: every call first cancels all previously armed
// actions and any pending host shutdown, then rebuilds the schedule from
// scratch. Every failure path leaves the module disabled with nothing armed.
func (o *Orchestrator) Initialize(cfg config.ShutdownConfig) {
	o.sched.CancelAll()
	if o.deps.Host != nil {
		o.deps.Host.CancelPendingShutdown()
	}
	o.state = ScheduleState{}

	if !cfg.Enabled {
		o.log.Info("auto restart disabled")
		return
	}

	rule, err := parseRule(cfg)
	if err != nil {
		o.log.Error("auto restart config rejected", logx.Err(err))
		return
	}

	lead := time.Duration(cfg.PreAnnounce.Seconds) * time.Second
	if lead > maxLeadTime {
		o.log.Warn("pre-announce lead exceeds one day, using one hour",
			logx.Duration("configured", lead), logx.Duration("coerced", fallbackLeadTime))
		lead = fallbackLeadTime
	}

	now := o.now()
	next := NextOccurrence(now, rule.WeekdayMask, rule.IntervalDays, rule.Hour, rule.Minute, rule.Second)
	untilRestart := next.Sub(now)
	if untilRestart < usableSlack {
		o.log.Warn("next restart is nearly immediate", logx.Duration("remaining", untilRestart))
	}

	effectiveLead := lead
	announceDelay := untilRestart - lead
	if untilRestart < lead {
		// window too tight: announce now with whatever time is actually left
		announceDelay = minAnnounceDelay
		effectiveLead = untilRestart
	}

	o.state = ScheduleState{
		Enabled:        true,
		NextOccurrence: next,
		PreAnnounceAt:  now.Add(announceDelay),
		EffectiveLead:  effectiveLead,
	}

	o.log.Info("next restart scheduled",
		logx.Time("at", next),
		logx.Duration("remaining", untilRestart))
	o.log.Info("pre-announce scheduled",
		logx.Time("at", o.state.PreAnnounceAt),
		logx.Duration("remaining", announceDelay),
		logx.Duration("lead", effectiveLead))

	o.recordSchedule(next, effectiveLead)
	o.startConfiguredEvents(cfg.StartEvents)

	ann := announcement{Lead: effectiveLead, Format: cfg.PreAnnounce.Message}
	o.sched.Schedule(announceDelay, func() { o.fireAnnounce(ann) })
}

// fireAnnounce broadcasts the restart notice and hands the actual restart to
// the host with the effective lead as its grace period. There is no second
// deferred action: the host owns the countdown from here.
func (o *Orchestrator) fireAnnounce(ann announcement) {
	msg := fmt.Sprintf(ann.Format, timefmt.Human(ann.Lead))
	o.log.Info("announcing restart", logx.String("message", msg), logx.Duration("grace", ann.Lead))

	if o.deps.Broadcast != nil {
		o.deps.Broadcast.Broadcast(msg)
	}
	if o.deps.Host != nil {
		o.deps.Host.RequestShutdown(ann.Lead, host.ModeRestart, host.RestartExitCode)
	}
	if o.deps.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := o.deps.History.RecordRestart(ctx, o.now(), ann.Lead); err != nil {
			o.log.Warn("restart history write failed", logx.Err(err))
		}
	}
}

func (o *Orchestrator) recordSchedule(next time.Time, lead time.Duration) {
	if o.deps.History == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.deps.History.RecordSchedule(ctx, next, lead); err != nil {
		o.log.Warn("schedule history write failed", logx.Err(err))
	}
}

// startConfiguredEvents starts each event id in the space-delimited list,
// best-effort, skipping empty tokens.
func (o *Orchestrator) startConfiguredEvents(list string) {
	if o.deps.Events == nil {
		return
	}
	for _, token := range strings.Split(list, " ") {
		if token == "" {
			continue
		}
		id64, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			o.log.Warn("skipping malformed event id", logx.String("token", token))
			continue
		}
		id := uint32(id64)
		if err := o.deps.Events.StartEvent(id); err != nil {
			o.log.Warn("event start failed", logx.Uint("event", uint(id)), logx.Err(err))
			continue
		}
		o.log.Info("started event",
			logx.Uint("event", uint(id)),
			logx.String("description", o.deps.Events.Description(id)))
	}
}

func parseRule(cfg config.ShutdownConfig) (Rule, error) {
	hour, minute, second, err := parseTimeOfDay(cfg.Time)
	if err != nil {
		return Rule{}, err
	}
	if cfg.WeekdayMask < 0 || cfg.WeekdayMask > maxWeekdayMask {
		return Rule{}, fmt.Errorf("weekday_mask %d out of range [0,%d]", cfg.WeekdayMask, maxWeekdayMask)
	}
	if cfg.EveryDays < minIntervalDays || cfg.EveryDays > maxIntervalDays {
		return Rule{}, fmt.Errorf("every_days %d out of range [%d,%d]", cfg.EveryDays, minIntervalDays, maxIntervalDays)
	}
	if cfg.PreAnnounce.Seconds < 0 {
		return Rule{}, fmt.Errorf("pre_announce.seconds %d must not be negative", cfg.PreAnnounce.Seconds)
	}
	if strings.Count(cfg.PreAnnounce.Message, "%s") != 1 {
		return Rule{}, fmt.Errorf("pre_announce.message %q must contain exactly one %%s", cfg.PreAnnounce.Message)
	}
	return Rule{
		WeekdayMask:  uint8(cfg.WeekdayMask),
		IntervalDays: cfg.EveryDays,
		Hour:         hour,
		Minute:       minute,
		Second:       second,
	}, nil
}

func parseTimeOfDay(s string) (hour, minute, second int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("time %q is not HH:MM:SS", s)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		v, perr := strconv.ParseUint(p, 10, 8)
		if perr != nil {
			return 0, 0, 0, fmt.Errorf("time %q is not HH:MM:SS", s)
		}
		vals[i] = int(v)
	}
	if vals[0] > 23 || vals[1] > 59 || vals[2] > 59 {
		return 0, 0, 0, fmt.Errorf("time %q has out-of-range components", s)
	}
	return vals[0], vals[1], vals[2], nil
}

// PendingActions reports how many deferred actions are currently armed.
func (o *Orchestrator) PendingActions() int { return o.sched.Pending() }
