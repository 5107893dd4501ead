package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumberlens/backend-lumber/internal/repo"
)

type fakeStore struct {
	mu              sync.Mutex
	usersByEmail    map[string]repo.User
	usersByID       map[uuid.UUID]repo.User
	sessionsByToken map[string]repo.Session
	sessionsByID    map[uuid.UUID]repo.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail:    make(map[string]repo.User),
		usersByID:       make(map[uuid.UUID]repo.User),
		sessionsByToken: make(map[string]repo.Session),
		sessionsByID:    make(map[uuid.UUID]repo.Session),
	}
}

func (f *fakeStore) addUser(u repo.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usersByEmail[u.Email] = u
	f.usersByID[u.ID] = u
}

func (f *fakeStore) CreateUser(_ context.Context, name, email, passwordHash string) (repo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.usersByEmail[email]; ok {
		return repo.User{}, repo.ErrDuplicate
	}
	now := time.Now()
	u := repo.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.usersByEmail[email] = u
	f.usersByID[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (repo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usersByEmail[email]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (repo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.usersByID[id]
	if !ok {
		return repo.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateSession(_ context.Context, userID uuid.UUID, tokenHash, userAgent, ip string, expiresAt time.Time) (repo.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := repo.Session{
		ID:           uuid.New(),
		UserID:       userID,
		RefreshToken: tokenHash,
		ExpiresAt:    expiresAt,
		CreatedAt:    time.Now(),
	}
	if userAgent != "" {
		s.UserAgent = &userAgent
	}
	if ip != "" {
		s.IP = &ip
	}
	f.sessionsByToken[tokenHash] = s
	f.sessionsByID[s.ID] = s
	return s, nil
}

func (f *fakeStore) GetSessionByToken(_ context.Context, tokenHash string) (repo.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessionsByToken[tokenHash]
	if !ok {
		return repo.Session{}, repo.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) RotateSessionToken(_ context.Context, sessionID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessionsByID[sessionID]
	if !ok {
		return repo.ErrNotFound
	}
	delete(f.sessionsByToken, s.RefreshToken)
	s.RefreshToken = tokenHash
	s.ExpiresAt = expiresAt
	f.sessionsByID[sessionID] = s
	f.sessionsByToken[tokenHash] = s
	return nil
}

func (f *fakeStore) DeleteSessionByToken(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessionsByToken[tokenHash]; ok {
		delete(f.sessionsByID, s.ID)
		delete(f.sessionsByToken, tokenHash)
	}
	return nil
}

func (f *fakeStore) DeleteSessionsByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for token, s := range f.sessionsByToken {
		if s.UserID == userID {
			delete(f.sessionsByToken, token)
			delete(f.sessionsByID, s.ID)
		}
	}
	return nil
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
