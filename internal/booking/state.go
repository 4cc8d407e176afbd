package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/fanyu-assistant/internal/crypto"
	"github.com/example/fanyu-assistant/internal/kv"
)

// Store keys. Fixed names shared with the configuration surface.
const (
	KeyAccount       = "account"
	KeyBookRequests  = "bookRequests"
	KeyProcessing    = "isBookRequestProcessing"
	KeyBookedCourses = "bookedCourses"
)

// State is the typed view over the key/value store. The account
// password is encrypted at rest; everything else is plain JSON.
type State struct {
	store *kv.Store
	aead  *crypto.AEAD
}

func NewState(store *kv.Store, aead *crypto.AEAD) *State {
	return &State{store: store, aead: aead}
}

// Init writes first-run defaults for any missing key. Existing values
// are left untouched.
func (s *State) Init(ctx context.Context) error {
	keys, err := s.store.Keys(ctx)
	if err != nil {
		return err
	}
	present := make(map[string]bool, len(keys))
	for _, k := range keys {
		present[k] = true
	}
	defaults := []struct {
		key   string
		value any
	}{
		{KeyAccount, Account{}},
		{KeyBookRequests, []BookRequest{}},
		{KeyProcessing, false},
		{KeyBookedCourses, []BookedCourse{}},
	}
	for _, d := range defaults {
		if present[d.key] {
			continue
		}
		if err := s.store.Put(ctx, d.key, d.value); err != nil {
			return err
		}
	}
	return nil
}

func (s *State) Account(ctx context.Context) (Account, error) {
	a, err := kv.GetJSON[Account](ctx, s.store, KeyAccount)
	if errors.Is(err, kv.ErrNotFound) {
		return Account{}, nil
	}
	if err != nil {
		return Account{}, err
	}
	if a.Password != "" {
		pw, err := s.aead.DecryptString(a.Password)
		if err != nil {
			return Account{}, fmt.Errorf("decrypt account password: %w", err)
		}
		a.Password = pw
	}
	return a, nil
}

func (s *State) SaveAccount(ctx context.Context, a Account) error {
	if a.Password != "" {
		enc, err := s.aead.EncryptToString(a.Password)
		if err != nil {
			return fmt.Errorf("encrypt account password: %w", err)
		}
		a.Password = enc
	}
	return s.store.Put(ctx, KeyAccount, a)
}

func (s *State) Requests(ctx context.Context) ([]BookRequest, error) {
	rs, err := kv.GetJSON[[]BookRequest](ctx, s.store, KeyBookRequests)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	return rs, err
}

func (s *State) SaveRequests(ctx context.Context, rs []BookRequest) error {
	if rs == nil {
		rs = []BookRequest{}
	}
	return s.store.Put(ctx, KeyBookRequests, rs)
}

func (s *State) Processing(ctx context.Context) (bool, error) {
	on, err := kv.GetJSON[bool](ctx, s.store, KeyProcessing)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	return on, err
}

func (s *State) SetProcessing(ctx context.Context, on bool) error {
	return s.store.Put(ctx, KeyProcessing, on)
}

func (s *State) Booked(ctx context.Context) ([]BookedCourse, error) {
	bs, err := kv.GetJSON[[]BookedCourse](ctx, s.store, KeyBookedCourses)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	return bs, err
}

// AppendBooked persists a new booked record immediately so a crash
// mid-cycle cannot lose a confirmed booking.
func (s *State) AppendBooked(ctx context.Context, b BookedCourse) error {
	bs, err := s.Booked(ctx)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, KeyBookedCourses, append(bs, b))
}
