// Package auth protects the local web UI with a single locally set
// password. The bcrypt hash lives in the key/value store; logged-in
// browsers carry a securecookie session.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/fanyu-assistant/internal/kv"
)

// KeyUIPasswordHash is the store key holding the web UI password hash.
// Not one of the core booking keys; owned by this package.
const KeyUIPasswordHash = "uiPasswordHash"

const cookieName = "fanyu_session"

var ErrNoPassword = errors.New("web UI password not set")

type Store struct {
	sc *securecookie.SecureCookie
	kv *kv.Store
}

func NewStore(store *kv.Store, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int((14 * 24 * time.Hour).Seconds()))
	return &Store{sc: sc, kv: store}
}

func (s *Store) SetPassword(ctx context.Context, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, KeyUIPasswordHash, string(hash))
}

func (s *Store) Authenticate(ctx context.Context, password string) error {
	hash, err := kv.GetJSON[string](ctx, s.kv, KeyUIPasswordHash)
	if errors.Is(err, kv.ErrNotFound) {
		return ErrNoPassword
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return errors.New("invalid password")
	}
	return nil
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request) error {
	encoded, err := s.sc.Encode(cookieName, map[string]any{"ok": true, "v": 1})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int((14 * 24 * time.Hour).Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) HasSession(r *http.Request) bool {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return false
	}
	val := map[string]any{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return false
	}
	ok, _ := val["ok"].(bool)
	return ok
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.HasSession(r) {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
