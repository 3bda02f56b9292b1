package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/token"
)

type stubUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
	err    error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	copy := cloneUser(user)
	copy.ID = r.nextID
	r.users[copy.ID] = copy
	return cloneUser(copy), nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) SetRefreshToken(_ context.Context, id int64, tok string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.RefreshToken = tok
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

type stubTokenCache struct {
	mu      sync.Mutex
	entries map[int64]string
	getErr  error
	setErr  error
}

func newStubTokenCache() *stubTokenCache {
	return &stubTokenCache{entries: make(map[int64]string)}
}

func (c *stubTokenCache) Get(_ context.Context, userID int64) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.entries[userID]
	return v, ok, nil
}

func (c *stubTokenCache) Set(_ context.Context, userID int64, tok string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[userID] = tok
	return nil
}

func (c *stubTokenCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

// expire drops the cache entry, as a TTL expiry would.
func (c *stubTokenCache) expire(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

var errStoreDown = errors.New("store unreachable")

type fixture struct {
	repo   *stubUserRepo
	cache  *stubTokenCache
	codec  *token.Codec
	tokens *TokenService
	users  *UserService
}

func newFixture() *fixture {
	repo := newStubUserRepo()
	cache := newStubTokenCache()
	codec, err := token.NewCodec("secret", time.Minute, time.Hour)
	if err != nil {
		panic(err)
	}
	tokens := NewTokenService(codec, cache, repo, time.Hour, zerolog.Nop())
	users := NewUserService(repo, NewBcryptHasher(bcrypt.MinCost), tokens, zerolog.Nop())
	return &fixture{repo: repo, cache: cache, codec: codec, tokens: tokens, users: users}
}

func (f *fixture) register(email, password string) *domain.User {
	u, err := f.users.Register(context.Background(), domain.RegisterPayload{Email: email, Password: password})
	if err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) promote(id int64) {
	f.repo.mu.Lock()
	defer f.repo.mu.Unlock()
	f.repo.users[id].Role = domain.RoleAdmin
}
