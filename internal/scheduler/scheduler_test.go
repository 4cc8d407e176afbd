package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/fanyu-assistant/internal/booking"
	"github.com/example/fanyu-assistant/internal/crypto"
	"github.com/example/fanyu-assistant/internal/fanyu"
	"github.com/example/fanyu-assistant/internal/kv"
	"github.com/example/fanyu-assistant/internal/notify"
)

// testNow is a Monday morning; weekStarts(testNow) yields 2024-06-03
// and 2024-06-10.
var testNow = time.Date(2024, 6, 3, 8, 0, 0, 0, time.Local)

type fakeAPI struct {
	mu         sync.Mutex
	loginCalls int
	cardCalls  int
	fetchCalls map[string]int
	bookCalls  []string

	loginErr error
	cards    []booking.Card
	courses  map[string][]booking.Course // served for the current week page
	fetchErr map[string]error
	bookErr  map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		fetchCalls: make(map[string]int),
		courses:    make(map[string][]booking.Course),
		fetchErr:   make(map[string]error),
		bookErr:    make(map[string]error),
		cards:      []booking.Card{{ID: "card-1", CanUse: true}},
	}
}

func (f *fakeAPI) Login(ctx context.Context, username, password string) (fanyu.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return fanyu.User{}, f.loginErr
	}
	return fanyu.User{Token: "tok"}, nil
}

func (f *fakeAPI) FetchUserCards(ctx context.Context) ([]booking.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cardCalls++
	return f.cards, nil
}

func (f *fakeAPI) FetchCourses(ctx context.Context, storeID, date string) ([]booking.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls[storeID]++
	if err := f.fetchErr[storeID]; err != nil {
		return nil, err
	}
	if date != "2024-06-03" {
		return nil, nil // next week's page is empty in these tests
	}
	return f.courses[storeID], nil
}

func (f *fakeAPI) BookCourse(ctx context.Context, coursePlanID, cardID string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookCalls = append(f.bookCalls, coursePlanID)
	if err := f.bookErr[coursePlanID]; err != nil {
		return nil, err
	}
	return json.RawMessage(`{"id":"book-1"}`), nil
}

func (f *fakeAPI) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.loginCalls + f.cardCalls + len(f.bookCalls)
	for _, c := range f.fetchCalls {
		n += c
	}
	return n
}

func (f *fakeAPI) booked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bookCalls...)
}

func newTestScheduler(t *testing.T, api RemoteAPI) (*Scheduler, *booking.State, *kv.Store) {
	t.Helper()
	store, err := kv.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	aead, err := crypto.New([]byte(strings.Repeat("k", 32)))
	if err != nil {
		t.Fatalf("new aead: %v", err)
	}
	state := booking.NewState(store, aead)
	if err := state.Init(context.Background()); err != nil {
		t.Fatalf("init state: %v", err)
	}

	log := zap.NewNop()
	s := New(state, api, notify.Log{Logger: log}, log, time.Second)
	s.now = func() time.Time { return testNow }
	return s, state, store
}

func mondayCourse(id, storeID, startTime string) booking.Course {
	return booking.Course{
		ID:        id,
		StoreID:   storeID,
		Date:      "2024-06-03",
		StartTime: startTime,
		CanJoin:   true,
		Course:    booking.NamedRef{Name: "Yin Yoga"},
		Store:     booking.NamedRef{Name: "Downtown"},
	}
}

func mondayRequest(id, storeID string) booking.BookRequest {
	return booking.BookRequest{
		ID:        id,
		StoreID:   storeID,
		Days:      []int{1},
		TimeRange: [2]booking.TimeOfDay{{Hour: 18}, {Hour: 20}},
		Enable:    true,
	}
}

func configure(t *testing.T, state *booking.State, requests ...booking.BookRequest) {
	t.Helper()
	ctx := context.Background()
	if err := state.SaveAccount(ctx, booking.Account{Username: "alice", Password: "secret"}); err != nil {
		t.Fatalf("save account: %v", err)
	}
	if err := state.SaveRequests(ctx, requests); err != nil {
		t.Fatalf("save requests: %v", err)
	}
	if err := state.SetProcessing(ctx, true); err != nil {
		t.Fatalf("set processing: %v", err)
	}
}

func TestCycleSkipsWhenProcessingOff(t *testing.T) {
	api := newFakeAPI()
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))
	if err := state.SetProcessing(context.Background(), false); err != nil {
		t.Fatalf("set processing: %v", err)
	}

	s.RunCycle(context.Background())

	if n := api.totalCalls(); n != 0 {
		t.Fatalf("expected zero network calls with processing off, got %d", n)
	}
}

func TestCycleSkipsWithoutRequests(t *testing.T) {
	api := newFakeAPI()
	s, state, _ := newTestScheduler(t, api)
	configure(t, state) // empty request list

	s.RunCycle(context.Background())

	if n := api.totalCalls(); n != 0 {
		t.Fatalf("expected zero network calls with no requests, got %d", n)
	}

	// only disabled requests is equivalent
	disabled := mondayRequest("r1", "S1")
	disabled.Enable = false
	if err := state.SaveRequests(context.Background(), []booking.BookRequest{disabled}); err != nil {
		t.Fatalf("save requests: %v", err)
	}
	s.RunCycle(context.Background())
	if n := api.totalCalls(); n != 0 {
		t.Fatalf("expected zero network calls with only disabled requests, got %d", n)
	}
}

func TestCycleSkipsWithIncompleteAccount(t *testing.T) {
	api := newFakeAPI()
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))
	if err := state.SaveAccount(context.Background(), booking.Account{Username: "alice"}); err != nil {
		t.Fatalf("save account: %v", err)
	}

	s.RunCycle(context.Background())

	if n := api.totalCalls(); n != 0 {
		t.Fatalf("expected zero network calls with incomplete account, got %d", n)
	}
}

func TestCycleBooksMatchingCourse(t *testing.T) {
	api := newFakeAPI()
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))

	s.RunCycle(context.Background())

	if got := api.booked(); len(got) != 1 || got[0] != "C1" {
		t.Fatalf("book calls = %v, want [C1]", got)
	}
	booked, err := state.Booked(context.Background())
	if err != nil {
		t.Fatalf("booked: %v", err)
	}
	if len(booked) != 1 || booked[0].ID != "C1" {
		t.Fatalf("persisted booked list = %+v", booked)
	}
	if !booked[0].BookedAt.Equal(testNow) {
		t.Fatalf("bookedAt = %v, want %v", booked[0].BookedAt, testNow)
	}
}

func TestCycleIgnoresNonMatchingAndUnjoinable(t *testing.T) {
	api := newFakeAPI()
	early := mondayCourse("C-early", "S1", "07:00")
	full := mondayCourse("C-full", "S1", "19:00")
	full.CanJoin = false
	api.courses["S1"] = []booking.Course{early, full}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))

	s.RunCycle(context.Background())

	if got := api.booked(); len(got) != 0 {
		t.Fatalf("book calls = %v, want none", got)
	}
}

func TestCycleSkipsAlreadyBooked(t *testing.T) {
	api := newFakeAPI()
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))
	if err := state.AppendBooked(context.Background(), booking.BookedCourse{
		Course:   mondayCourse("C1", "S1", "19:00"),
		BookedAt: testNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("append booked: %v", err)
	}

	s.RunCycle(context.Background())

	if got := api.booked(); len(got) != 0 {
		t.Fatalf("book calls = %v, want none for already booked course", got)
	}
}

func TestCycleIdempotentAcrossRuns(t *testing.T) {
	api := newFakeAPI()
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))

	s.RunCycle(context.Background())
	s.RunCycle(context.Background())

	if got := api.booked(); len(got) != 1 {
		t.Fatalf("book calls across two cycles = %v, want exactly one", got)
	}
	booked, err := state.Booked(context.Background())
	if err != nil {
		t.Fatalf("booked: %v", err)
	}
	if len(booked) != 1 {
		t.Fatalf("persisted booked list = %+v, want one entry", booked)
	}
}

func TestFetchOncePerStorePerCycle(t *testing.T) {
	api := newFakeAPI()
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	// two requests against the same store
	configure(t, state, mondayRequest("r1", "S1"), mondayRequest("r2", "S1"))

	s.RunCycle(context.Background())

	// one schedule resolution per store: two week pages, fetched once
	if got := api.fetchCalls["S1"]; got != 2 {
		t.Fatalf("fetch calls for S1 = %d, want 2 (current + next week, cached for the second request)", got)
	}
}

func TestFetchFailureScopedToStore(t *testing.T) {
	api := newFakeAPI()
	api.fetchErr["S1"] = errors.New("store offline")
	api.courses["S2"] = []booking.Course{mondayCourse("C2", "S2", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state,
		mondayRequest("r1", "S1"),
		mondayRequest("r2", "S1"), // second request on the failing store
		mondayRequest("r3", "S2"))

	s.RunCycle(context.Background())

	if got := api.fetchCalls["S1"]; got != 1 {
		t.Fatalf("fetch calls for failing store = %d, want 1 (failure cached for the cycle)", got)
	}
	if got := api.booked(); len(got) != 1 || got[0] != "C2" {
		t.Fatalf("book calls = %v, want [C2] from the healthy store", got)
	}
}

func TestBookingFailureDoesNotBlockSiblings(t *testing.T) {
	api := newFakeAPI()
	api.courses["S1"] = []booking.Course{
		mondayCourse("C1", "S1", "18:30"),
		mondayCourse("C2", "S1", "19:00"),
	}
	api.bookErr["C1"] = errors.New("course full")
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))

	s.RunCycle(context.Background())

	if got := api.booked(); len(got) != 2 || got[0] != "C1" || got[1] != "C2" {
		t.Fatalf("book calls = %v, want [C1 C2]", got)
	}
	booked, err := state.Booked(context.Background())
	if err != nil {
		t.Fatalf("booked: %v", err)
	}
	if len(booked) != 1 || booked[0].ID != "C2" {
		t.Fatalf("persisted booked list = %+v, want only C2", booked)
	}
}

func TestLoginFailureAbortsCycle(t *testing.T) {
	api := newFakeAPI()
	api.loginErr = errors.New("bad credentials")
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))

	s.RunCycle(context.Background())

	if api.cardCalls != 0 || len(api.booked()) != 0 {
		t.Fatalf("expected no calls past login, got cards=%d books=%v", api.cardCalls, api.booked())
	}
}

func TestNoUsableCardAbortsCycle(t *testing.T) {
	api := newFakeAPI()
	api.cards = []booking.Card{{ID: "card-1", CanUse: false}}
	api.courses["S1"] = []booking.Course{mondayCourse("C1", "S1", "19:00")}
	s, state, _ := newTestScheduler(t, api)
	configure(t, state, mondayRequest("r1", "S1"))

	s.RunCycle(context.Background())

	if n := len(api.fetchCalls); n != 0 {
		t.Fatalf("expected no schedule fetches without a usable card, got %d stores", n)
	}
}

func TestAttachMirrorsProcessingFlag(t *testing.T) {
	api := newFakeAPI()
	s, state, store := newTestScheduler(t, api)
	// incomplete account keeps the immediate cycle harmless
	ctx := context.Background()

	if err := s.Attach(ctx, store); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatal("expected idle before flag is set")
	}

	if err := state.SetProcessing(ctx, true); err != nil {
		t.Fatalf("set processing: %v", err)
	}
	if s.State() != StateRunning {
		t.Fatal("expected running after flag set")
	}

	if err := state.SetProcessing(ctx, false); err != nil {
		t.Fatalf("clear processing: %v", err)
	}
	if s.State() != StateIdle {
		t.Fatal("expected idle after flag cleared")
	}
	s.Wait()
}

func TestStartIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	s, _, _ := newTestScheduler(t, api)
	ctx := context.Background()

	s.Start(ctx)
	s.Start(ctx)
	if s.State() != StateRunning {
		t.Fatal("expected running")
	}
	s.Stop()
	s.Stop()
	if s.State() != StateIdle {
		t.Fatal("expected idle")
	}
	s.Wait()
}

func TestWeekStarts(t *testing.T) {
	tests := []struct {
		now   time.Time
		first string
		next  string
	}{
		{time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC), "2024-06-03", "2024-06-10"},  // Monday
		{time.Date(2024, 6, 5, 23, 0, 0, 0, time.UTC), "2024-06-03", "2024-06-10"}, // Wednesday
		{time.Date(2024, 6, 9, 1, 0, 0, 0, time.UTC), "2024-06-03", "2024-06-10"},  // Sunday
		{time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), "2024-06-10", "2024-06-17"}, // next Monday
	}
	for _, tt := range tests {
		got := weekStarts(tt.now)
		if got[0] != tt.first || got[1] != tt.next {
			t.Errorf("weekStarts(%s) = %v, want [%s %s]", tt.now.Format("2006-01-02"), got, tt.first, tt.next)
		}
	}
}
