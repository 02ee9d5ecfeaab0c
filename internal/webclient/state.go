package webclient

import (
	"strconv"
	"sync"
)

// Session is the client-side view of the signed-in user.
type Session struct {
	UserID uint
	Email  string
	Token  string
}

// AuthState tracks whether the client is signed in and notifies subscribers on change.
type AuthState struct {
	storage TokenStorage

	mu          sync.Mutex
	nextID      int
	subscribers map[int]func(Session, bool)
}

// NewAuthState creates an AuthState backed by storage.
func NewAuthState(storage TokenStorage) *AuthState {
	return &AuthState{storage: storage, subscribers: map[int]func(Session, bool){}}
}

// Current returns the stored session. Incomplete sessions count as anonymous.
func (a *AuthState) Current() (Session, bool) {
	token, err := a.storage.Get(AuthTokenKey)
	if err != nil || token == "" {
		return Session{}, false
	}
	rawID, err := a.storage.Get(AuthUserIDKey)
	if err != nil || rawID == "" {
		return Session{}, false
	}
	email, err := a.storage.Get(AuthUserEmailKey)
	if err != nil || email == "" {
		return Session{}, false
	}
	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil {
		return Session{}, false
	}
	return Session{UserID: uint(id), Email: email, Token: token}, true
}

// Token returns the stored bearer token or "".
func (a *AuthState) Token() string {
	token, _ := a.storage.Get(AuthTokenKey)
	return token
}

// MarkAuthenticated stores the session and notifies subscribers.
func (a *AuthState) MarkAuthenticated(token string, userID uint, email string) error {
	if err := a.storage.Set(AuthTokenKey, token); err != nil {
		return err
	}
	if err := a.storage.Set(AuthUserIDKey, strconv.FormatUint(uint64(userID), 10)); err != nil {
		return err
	}
	if err := a.storage.Set(AuthUserEmailKey, email); err != nil {
		return err
	}
	a.notify()
	return nil
}

// MarkLoggedOut clears the session and notifies subscribers.
func (a *AuthState) MarkLoggedOut() error {
	for _, key := range []string{AuthTokenKey, AuthUserIDKey, AuthUserEmailKey} {
		if err := a.storage.Remove(key); err != nil {
			return err
		}
	}
	a.notify()
	return nil
}

// Subscribe registers fn to be called after each change. The returned func unsubscribes.
func (a *AuthState) Subscribe(fn func(Session, bool)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

func (a *AuthState) notify() {
	session, ok := a.Current()

	a.mu.Lock()
	subs := make([]func(Session, bool), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(session, ok)
	}
}
