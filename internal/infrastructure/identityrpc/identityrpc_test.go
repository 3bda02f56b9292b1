package identityrpc

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-system/internal/core/domain"
	"github.com/99minutos/identity-system/internal/core/service"
	"github.com/99minutos/identity-system/internal/core/token"
	redisdb "github.com/99minutos/identity-system/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-system/internal/infrastructure/db/sqlstore"
	"github.com/99minutos/identity-system/internal/rpc"
)

const queueName = "rpc:identity:test"

type env struct {
	client *Client
	users  *service.UserService
	codec  *token.Codec
	redis  *miniredis.Miniredis
}

// newEnv wires the identity service the way cmd/identity does, with sqlite,
// miniredis and the in-memory broker standing in for external services.
func newEnv(t *testing.T) *env {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	store, err := sqlstore.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: mr.Addr()})
	require.NoError(t, err)

	codec, err := token.NewCodec("e2e-secret", 5*time.Minute, time.Hour)
	require.NoError(t, err)

	tokens := service.NewTokenService(codec, redisdb.NewTokenCache(rdb), store, time.Hour, zerolog.Nop())
	users := service.NewUserService(store, service.NewBcryptHasher(bcrypt.MinCost), tokens, zerolog.Nop())

	router := rpc.NewRouter(zerolog.Nop())
	RegisterHandlers(router, users)

	broker := rpc.NewMemoryBroker()
	server := rpc.NewServer(broker, queueName, router, zerolog.Nop(), rpc.WithServerPollWait(50*time.Millisecond))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Run(ctx)
	}()

	rc := rpc.NewClient(broker, queueName, zerolog.Nop(), rpc.WithPollWait(50*time.Millisecond))
	rc.Start(ctx)

	t.Cleanup(func() {
		rc.Close()
		cancel()
		<-done
		_ = rdb.Close()
		_ = store.Close()
	})

	return &env{client: NewClient(rc, 5*time.Second), users: users, codec: codec, redis: mr}
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, status, domain.StatusOf(err), "error: %v", err)
}

func TestRegisterAllCommands(t *testing.T) {
	router := rpc.NewRouter(zerolog.Nop())
	RegisterHandlers(router, &service.UserService{})
	for _, tag := range domain.Commands {
		require.True(t, router.Has(tag), "missing handler for %s", tag)
	}
}

func TestSessionLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	registered, err := e.client.Register(ctx, domain.RegisterPayload{
		Email:    "ana@example.com",
		Password: "secret1",
		Profile:  domain.Profile{FirstName: "Ana"},
	})
	require.NoError(t, err)
	require.NotZero(t, registered.ID)
	require.Equal(t, domain.RoleUser, registered.Role)
	require.Equal(t, domain.DefaultCountry, registered.Country)
	require.Empty(t, registered.PasswordHash)

	pair, err := e.client.Login(ctx, domain.LoginPayload{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := e.codec.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.ID, claims.UserID)

	renewed, err := e.client.Refresh(ctx, domain.RefreshPayload{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)
	renewedClaims, err := e.codec.VerifyAccess(renewed.AccessToken)
	require.NoError(t, err)
	require.Equal(t, claims.UserID, renewedClaims.UserID)

	profile, err := e.client.GetProfile(ctx, claims.Actor())
	require.NoError(t, err)
	require.Equal(t, "Ana", profile.FirstName)
}

func TestErrorsKeepTheirStatusAcrossTheBroker(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.client.Register(ctx, domain.RegisterPayload{Email: "dup@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = e.client.Register(ctx, domain.RegisterPayload{Email: "dup@example.com", Password: "other12"})
	requireStatus(t, err, http.StatusConflict)
	require.ErrorIs(t, err, domain.ErrUserExists)

	_, err = e.client.Register(ctx, domain.RegisterPayload{Email: "short@example.com", Password: "123"})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = e.client.Register(ctx, domain.RegisterPayload{Email: "not-an-email", Password: "secret1"})
	requireStatus(t, err, http.StatusBadRequest)

	_, err = e.client.Login(ctx, domain.LoginPayload{Email: "dup@example.com", Password: "wrong-password"})
	requireStatus(t, err, http.StatusUnauthorized)
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = e.client.Refresh(ctx, domain.RefreshPayload{RefreshToken: "garbage"})
	requireStatus(t, err, http.StatusUnauthorized)
}

func TestRefreshSurvivesCacheLoss(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.client.Register(ctx, domain.RegisterPayload{Email: "cache@example.com", Password: "secret1"})
	require.NoError(t, err)
	pair, err := e.client.Login(ctx, domain.LoginPayload{Email: "cache@example.com", Password: "secret1"})
	require.NoError(t, err)

	e.redis.FlushAll()

	_, err = e.client.Refresh(ctx, domain.RefreshPayload{RefreshToken: pair.RefreshToken})
	require.NoError(t, err)

	claims, err := e.codec.Decode(pair.RefreshToken)
	require.NoError(t, err)
	got, err := e.redis.Get("token:" + itoa(claims.UserID))
	require.NoError(t, err, "store hit repopulates the cache")
	require.Equal(t, pair.RefreshToken, got)
}

func TestSecondLoginSupersedesRefreshToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.client.Register(ctx, domain.RegisterPayload{Email: "twice@example.com", Password: "secret1"})
	require.NoError(t, err)
	first, err := e.client.Login(ctx, domain.LoginPayload{Email: "twice@example.com", Password: "secret1"})
	require.NoError(t, err)
	second, err := e.client.Login(ctx, domain.LoginPayload{Email: "twice@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = e.client.Refresh(ctx, domain.RefreshPayload{RefreshToken: first.RefreshToken})
	requireStatus(t, err, http.StatusUnauthorized)

	_, err = e.client.Refresh(ctx, domain.RefreshPayload{RefreshToken: second.RefreshToken})
	require.NoError(t, err)
}

func TestAdministration(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	admin, err := e.users.EnsureAdmin(ctx, "root@example.com", "rootpass")
	require.NoError(t, err)
	user, err := e.client.Register(ctx, domain.RegisterPayload{Email: "plain@example.com", Password: "secret1"})
	require.NoError(t, err)

	userActor := domain.Actor{UserID: user.ID, Email: user.Email}
	adminActor := domain.Actor{UserID: admin.ID, Email: admin.Email}

	_, err = e.client.ListUsers(ctx, userActor)
	requireStatus(t, err, http.StatusForbidden)

	all, err := e.client.ListUsers(ctx, adminActor)
	require.NoError(t, err)
	require.Len(t, all, 2)

	role := domain.RoleAdmin
	_, err = e.client.UpdateUser(ctx, userActor, domain.UserUpdate{Role: &role})
	requireStatus(t, err, http.StatusForbidden)

	email := "new@example.com"
	_, err = e.client.UpdateUser(ctx, userActor, domain.UserUpdate{Email: &email})
	requireStatus(t, err, http.StatusBadRequest)

	city := "Hanoi"
	updated, err := e.client.UpdateUser(ctx, userActor, domain.UserUpdate{City: &city})
	require.NoError(t, err)
	require.Equal(t, "Hanoi", updated.City)

	deleted, err := e.client.DeleteUser(ctx, userActor)
	require.NoError(t, err)
	require.Equal(t, user.ID, deleted.ID)

	_, err = e.client.GetProfile(ctx, userActor)
	requireStatus(t, err, http.StatusNotFound)
	_, err = e.client.DeleteUser(ctx, userActor)
	requireStatus(t, err, http.StatusNotFound)
}

func TestConcurrentUpdatesForOneUserAllApply(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user, err := e.client.Register(ctx, domain.RegisterPayload{Email: "busy@example.com", Password: "secret1"})
	require.NoError(t, err)
	actor := domain.Actor{UserID: user.ID, Email: user.Email}

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		phone := "+84-" + itoa(int64(i))
		go func() {
			_, err := e.client.UpdateUser(ctx, actor, domain.UserUpdate{Phone: &phone})
			errs <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-errs)
	}

	profile, err := e.client.GetProfile(ctx, actor)
	require.NoError(t, err)
	require.Contains(t, profile.Phone, "+84-")
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
