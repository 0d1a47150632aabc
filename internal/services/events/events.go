// Package events runs auxiliary recurring in-game events. Events are
// declared in config with an optional cron schedule; StartEvent begins an
// event and, when it has a schedule, keeps re-firing it via robfig/cron.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"shutdownd/pkg/logx"
)

type Def struct {
	ID          uint32
	Description string
	Schedule    string // cron spec or "@every <duration>"; empty = start only
}

type Config struct {
	Timezone string
	Defs     []Def
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron

	defs    map[uint32]Def
	running map[uint32]cron.EntryID
}

func New(cfg Config, log logx.Logger) *Service {
	defs := make(map[uint32]Def, len(cfg.Defs))
	for _, d := range cfg.Defs {
		defs[d.ID] = d
	}
	return &Service{
		log:     log,
		loc:     loadLocation(cfg.Timezone, log),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		defs:    defs,
		running: map[uint32]cron.EntryID{},
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	s.c.Start()
	s.log.Info("event service started", logx.String("tz", s.loc.String()), logx.Int("defs", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return
	}
	stop := s.c.Stop()
	s.c = nil
	s.running = map[uint32]cron.EntryID{}
	select {
	case <-stop.Done():
	case <-ctx.Done():
	}
	s.log.Info("event service stopped")
}

// Apply replaces the event definitions on a config reload. Events that are
// already running keep the schedule they were started with; a timezone
// change takes effect on the next Start.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := make(map[uint32]Def, len(cfg.Defs))
	for _, d := range cfg.Defs {
		defs[d.ID] = d
	}
	s.defs = defs
	s.log.Info("event definitions applied", logx.Int("defs", len(defs)))
}

// StartEvent begins the event with the given id. Starting an already running
// event is a no-op. Unknown ids and bad schedules are errors.
func (s *Service) StartEvent(id uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[id]
	if !ok {
		return fmt.Errorf("unknown event %d", id)
	}
	if _, active := s.running[id]; active {
		return nil
	}
	if s.c == nil {
		return fmt.Errorf("event service not started")
	}

	s.fireLocked(def)
	if strings.TrimSpace(def.Schedule) == "" {
		// one-shot event: fired once, nothing to keep running
		s.running[id] = 0
		return nil
	}

	entryID, err := s.c.AddFunc(def.Schedule, func() { s.fire(def) })
	if err != nil {
		return fmt.Errorf("event %d schedule %q: %w", id, def.Schedule, err)
	}
	s.running[id] = entryID
	return nil
}

// StopEvent removes a recurring event from the cron runner.
func (s *Service) StopEvent(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entryID, ok := s.running[id]
	if !ok {
		return
	}
	delete(s.running, id)
	if s.c != nil && entryID != 0 {
		s.c.Remove(entryID)
	}
}

// StopAll stops every running event while leaving the service itself up.
func (s *Service) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entryID := range s.running {
		delete(s.running, id)
		if s.c != nil && entryID != 0 {
			s.c.Remove(entryID)
		}
	}
}

// Description resolves an event id for logging.
func (s *Service) Description(id uint32) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if def, ok := s.defs[id]; ok && def.Description != "" {
		return def.Description
	}
	return fmt.Sprintf("event %d", id)
}

// IsRunning reports whether StartEvent has been called for id.
func (s *Service) IsRunning(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[id]
	return ok
}

func (s *Service) fire(def Def) {
	s.mu.Lock()
	s.fireLocked(def)
	s.mu.Unlock()
}

func (s *Service) fireLocked(def Def) {
	s.log.Info("event fired", logx.Uint("event", uint(def.ID)), logx.String("description", def.Description))
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}
