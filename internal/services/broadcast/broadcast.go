// Package broadcast fans out server notices to every connected session.
//
// Delivery is asynchronous: Broadcast enqueues, a worker drains the queue
// under a rate limiter. When the worker is not running (tests, early
// startup) delivery happens inline so notices are never silently lost.
package broadcast

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"shutdownd/pkg/logx"
)

// Session is a connected client able to receive text notices.
type Session interface {
	Send(message string) error
}

type Config struct {
	RatePerSec int
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	limiter *rate.Limiter

	nextID   uint64
	sessions map[uint64]Session

	queue     chan string
	stopCh    chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfg Config, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	return &Service{
		cfg:      cfg,
		log:      log,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		sessions: map[uint64]Session{},
		queue:    make(chan string, 64),
	}
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

// Enabled reports whether the delivery worker is running.
func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil
}

// Attach registers a session and returns its handle for Detach.
func (s *Service) Attach(sess Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.sessions[id] = sess
	return id
}

func (s *Service) Detach(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Broadcast queues message for delivery to all sessions. Falls back to
// inline delivery when the worker is not running.
func (s *Service) Broadcast(message string) {
	s.mu.Lock()
	running := s.stopCh != nil
	s.mu.Unlock()

	if !running {
		s.deliver(context.Background(), message)
		return
	}
	select {
	case s.queue <- message:
	default:
		s.log.Warn("broadcast queue full, dropping notice", logx.String("message", message))
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.runCancel = context.WithCancel(ctx)

	stopCh := s.stopCh
	runCtx := s.runCtx

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(runCtx, stopCh)
	}()
	s.log.Info("broadcast service started", logx.Int("rps", s.cfg.RatePerSec))
}

func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	cancel := s.runCancel
	s.stopCh = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	close(stopCh)
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("broadcast service stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		// stop continues in background
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case msg := <-s.queue:
			s.mu.Lock()
			lim := s.limiter
			s.mu.Unlock()
			if err := lim.Wait(ctx); err != nil {
				return
			}
			s.deliver(ctx, msg)
		}
	}
}

func (s *Service) deliver(ctx context.Context, message string) {
	s.mu.Lock()
	targets := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	failed := 0
	for _, sess := range targets {
		if ctx.Err() != nil {
			return
		}
		if err := sess.Send(message); err != nil {
			failed++
		}
	}
	if failed > 0 {
		s.log.Warn("broadcast delivered with failures",
			logx.Int("sessions", len(targets)), logx.Int("failed", failed))
	} else {
		s.log.Debug("broadcast delivered", logx.Int("sessions", len(targets)))
	}
}
