// Package scheduler drives the poll-match-book loop. A Scheduler owns
// its timer and transitions between Idle and Running only through
// Start and Stop; the processing flag in the store is mirrored by
// subscribing to the store's put events.
package scheduler

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/fanyu-assistant/internal/booking"
	"github.com/example/fanyu-assistant/internal/fanyu"
	"github.com/example/fanyu-assistant/internal/kv"
	"github.com/example/fanyu-assistant/internal/notify"
)

// RemoteAPI is the slice of the platform client the loop needs.
type RemoteAPI interface {
	Login(ctx context.Context, username, password string) (fanyu.User, error)
	FetchUserCards(ctx context.Context) ([]booking.Card, error)
	FetchCourses(ctx context.Context, storeID, date string) ([]booking.Course, error)
	BookCourse(ctx context.Context, coursePlanID, cardID string) (json.RawMessage, error)
}

type RunState int

const (
	StateIdle RunState = iota
	StateRunning
)

func (s RunState) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

type Scheduler struct {
	state    *booking.State
	client   RemoteAPI
	notifier notify.Notifier
	log      *zap.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex // guards runState, cancel, done
	runState RunState
	cancel   context.CancelFunc
	done     chan struct{}

	cycleMu sync.Mutex // overlap guard: one cycle at a time
}

func New(state *booking.State, client RemoteAPI, notifier notify.Notifier, log *zap.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		state:    state,
		client:   client,
		notifier: notifier,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

func (s *Scheduler) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runState
}

// Attach subscribes to the store's put events so the timer always
// mirrors the processing flag, and starts immediately if the flag is
// already set. ctx bounds all cycle work.
func (s *Scheduler) Attach(ctx context.Context, store *kv.Store) error {
	store.Subscribe(func(key string, value json.RawMessage) {
		if key != booking.KeyProcessing {
			return
		}
		var on bool
		if err := json.Unmarshal(value, &on); err != nil {
			s.log.Error("invalid processing flag value", zap.Error(err))
			return
		}
		if on {
			s.Start(ctx)
		} else {
			s.Stop()
		}
	})

	on, err := s.state.Processing(ctx)
	if err != nil {
		return err
	}
	if on {
		s.Start(ctx)
	}
	return nil
}

// WatchFlag re-reads the processing flag on an interval and applies
// it. Store events only cover in-process writes; this picks up flag
// changes made by the management CLI against the same database file.
func (s *Scheduler) WatchFlag(ctx context.Context, every time.Duration) {
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				on, err := s.state.Processing(ctx)
				if err != nil {
					s.log.Error("read processing flag failed", zap.Error(err))
					continue
				}
				if on {
					s.Start(ctx)
				} else {
					s.Stop()
				}
			}
		}
	}()
}

// Start transitions Idle -> Running: one immediate cycle, then a cycle
// per tick. No-op when already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runState == StateRunning {
		return
	}
	s.runState = StateRunning
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.log.Info("starting book request processing", zap.Duration("interval", s.interval))
	go s.loop(runCtx, ctx, s.done)
}

// Stop transitions Running -> Idle. The timer stops before its next
// fire; an in-flight cycle completes but is not rescheduled. Stop does
// not wait for that cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runState != StateRunning {
		return
	}
	s.runState = StateIdle
	s.cancel()
	s.log.Info("stopped book request processing")
}

// Wait blocks until the loop goroutine has exited. Used on shutdown.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// loop runs until runCtx is cancelled. Cycle work is bound to the
// daemon context so Stop does not abort an in-flight cycle.
func (s *Scheduler) loop(runCtx, workCtx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.RunCycle(workCtx)
	for {
		select {
		case <-runCtx.Done():
			return
		case <-workCtx.Done():
			return
		case <-t.C:
			s.RunCycle(workCtx)
		}
	}
}

// RunCycle executes one poll-match-book pass. A tick arriving while
// the previous cycle is still in flight is skipped: overlapping cycles
// would race on the booked list's read-then-append.
func (s *Scheduler) RunCycle(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		s.log.Warn("previous cycle still in flight, skipping tick")
		return
	}
	defer s.cycleMu.Unlock()
	s.cycle(ctx)
}

func (s *Scheduler) cycle(ctx context.Context) {
	s.log.Debug("start to process book requests")

	on, err := s.state.Processing(ctx)
	if err != nil {
		s.log.Error("read processing flag failed", zap.Error(err))
		return
	}
	if !on {
		return
	}

	account, err := s.state.Account(ctx)
	if err != nil {
		s.log.Error("read account failed", zap.Error(err))
		return
	}
	if !account.Complete() {
		s.log.Debug("account incomplete, skipping cycle")
		return
	}

	requests, err := s.state.Requests(ctx)
	if err != nil {
		s.log.Error("read book requests failed", zap.Error(err))
		return
	}
	var enabled []booking.BookRequest
	for _, r := range requests {
		if r.Enable {
			enabled = append(enabled, r)
		}
	}
	if len(enabled) == 0 {
		return
	}

	booked, err := s.state.Booked(ctx)
	if err != nil {
		s.log.Error("read booked courses failed", zap.Error(err))
		return
	}
	bookedIDs := make(map[string]bool, len(booked))
	for _, b := range booked {
		bookedIDs[b.ID] = true
	}

	if _, err := s.client.Login(ctx, account.Username, account.Password); err != nil {
		s.log.Error("login failed", zap.Error(err))
		return
	}

	cards, err := s.client.FetchUserCards(ctx)
	if err != nil {
		s.log.Error("fetch user cards failed", zap.Error(err))
		return
	}
	card, ok := booking.FirstUsable(cards)
	if !ok {
		s.log.Info("no usable card, skipping cycle")
		return
	}

	// Per-cycle schedule cache. Failed stores are cached too, so every
	// store is fetched at most once per cycle.
	courseCache := make(map[string][]booking.Course)
	for _, req := range enabled {
		s.log.Debug("processing book request",
			zap.String("requestId", req.ID), zap.String("storeId", req.StoreID))

		courses, cached := courseCache[req.StoreID]
		if !cached {
			courses, err = s.fetchJoinable(ctx, req.StoreID)
			if err != nil {
				s.log.Error("fetch courses failed",
					zap.String("storeId", req.StoreID), zap.Error(err))
			}
			courseCache[req.StoreID] = courses
		}

		for _, course := range courses {
			if bookedIDs[course.ID] || !booking.Match(course, req) {
				continue
			}

			s.notifier.CourseMatched(course, req)

			result, err := s.client.BookCourse(ctx, course.ID, card.ID)
			if err != nil {
				s.log.Error("book course failed",
					zap.String("courseId", course.ID), zap.Error(err))
				continue
			}
			bookedIDs[course.ID] = true
			s.log.Info("booked course",
				zap.String("courseId", course.ID),
				zap.String("course", course.Course.Name),
				zap.String("date", course.Date),
				zap.String("time", course.StartTime),
				zap.ByteString("result", result))

			record := booking.BookedCourse{Course: course, BookedAt: s.now()}
			if err := s.state.AppendBooked(ctx, record); err != nil {
				s.log.Error("persist booked course failed",
					zap.String("courseId", course.ID), zap.Error(err))
			}
		}
	}
}

// fetchJoinable loads a store's schedule for the current ISO week and
// the start of the following week, keeping only joinable courses.
func (s *Scheduler) fetchJoinable(ctx context.Context, storeID string) ([]booking.Course, error) {
	var all []booking.Course
	for _, date := range weekStarts(s.now()) {
		courses, err := s.client.FetchCourses(ctx, storeID, date)
		if err != nil {
			return nil, err
		}
		all = append(all, courses...)
	}
	joinable := all[:0]
	for _, c := range all {
		if c.CanJoin {
			joinable = append(joinable, c)
		}
	}
	return joinable, nil
}

// weekStarts returns the Mondays of the current and the next ISO week
// as platform date strings. Fetching both catches courses published
// across the week boundary.
func weekStarts(now time.Time) [2]string {
	monday := now.AddDate(0, 0, 1-booking.ISOWeekday(now.Weekday()))
	return [2]string{
		monday.Format("2006-01-02"),
		monday.AddDate(0, 0, 7).Format("2006-01-02"),
	}
}
