package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/identity-system/internal/core/domain"
)

func strPtr(s string) *string { return &s }

func actorOf(u *domain.User) domain.Actor {
	return domain.Actor{UserID: u.ID, Email: u.Email}
}

func TestUserService_Register_Success(t *testing.T) {
	f := newFixture()

	user, err := f.users.Register(context.Background(), domain.RegisterPayload{
		Email:    "alice@x.com",
		Password: "secret1",
		Profile:  domain.Profile{FirstName: "Alice", City: "Hanoi"},
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("expected store-assigned id")
	}
	if user.PasswordHash == "secret1" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret1")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if user.Role != domain.RoleUser || !user.IsActive {
		t.Fatalf("unexpected defaults: role=%s active=%v", user.Role, user.IsActive)
	}
	if user.Country != domain.DefaultCountry || user.PostalCode != domain.DefaultPostalCode {
		t.Fatalf("unexpected address defaults: %s/%s", user.Country, user.PostalCode)
	}
	if user.FirstName != "Alice" || user.City != "Hanoi" {
		t.Fatalf("profile not applied: %+v", user)
	}
}

func TestUserService_Register_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cases := []struct {
		name string
		in   domain.RegisterPayload
		want error
	}{
		{"missing email", domain.RegisterPayload{Password: "secret1"}, domain.ErrEmailRequired},
		{"missing password", domain.RegisterPayload{Email: "a@x.com"}, domain.ErrPasswordRequired},
		{"short password", domain.RegisterPayload{Email: "a@x.com", Password: "12345"}, domain.ErrPasswordTooShort},
	}
	for _, tc := range cases {
		if _, err := f.users.Register(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestUserService_Register_DuplicateIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.register("bob@x.com", "secret1")

	// Duplicate detection wins regardless of password validity.
	for _, pwd := range []string{"secret2", "", "123"} {
		if _, err := f.users.Register(ctx, domain.RegisterPayload{Email: "bob@x.com", Password: pwd}); !errors.Is(err, domain.ErrUserExists) {
			t.Fatalf("password %q: expected ErrUserExists, got %v", pwd, err)
		}
	}
}

func TestUserService_Register_StoreRaceIsConflict(t *testing.T) {
	f := newFixture()
	// The store rejects the insert even though the pre-check saw no user.
	racing := &racingRepo{stubUserRepo: f.repo}
	svc := NewUserService(racing, NewBcryptHasher(bcrypt.MinCost), f.tokens, f.users.log)

	if _, err := svc.Register(context.Background(), domain.RegisterPayload{Email: "c@x.com", Password: "secret1"}); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

type racingRepo struct {
	*stubUserRepo
}

func (r *racingRepo) Create(context.Context, *domain.User) (*domain.User, error) {
	return nil, domain.ErrUserExists
}

func TestUserService_Login(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.register("carol@x.com", "s3cret!")

	pair, err := f.users.Login(ctx, domain.LoginPayload{Email: "carol@x.com", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	claims, err := f.tokens.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleUser {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := f.users.Login(ctx, domain.LoginPayload{Email: "carol@x.com", Password: "wrong"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("bad password: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.users.Login(ctx, domain.LoginPayload{Email: "ghost@x.com", Password: "whatever"}); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserService_Login_InactiveAccount(t *testing.T) {
	f := newFixture()
	user := f.register("dave@x.com", "secret1")
	f.repo.users[user.ID].IsActive = false

	if _, err := f.users.Login(context.Background(), domain.LoginPayload{Email: "dave@x.com", Password: "secret1"}); !errors.Is(err, domain.ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

// register → login → refresh yields an access token for the same subject.
func TestUserService_LoginThenRefresh(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.register("alice@x.com", "secret1")

	pair, err := f.users.Login(ctx, domain.LoginPayload{Email: "alice@x.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	refreshed, err := f.users.Refresh(ctx, domain.RefreshPayload{RefreshToken: pair.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	original, _ := f.tokens.VerifyAccess(pair.AccessToken)
	renewed, err := f.tokens.VerifyAccess(refreshed.AccessToken)
	if err != nil {
		t.Fatalf("renewed token invalid: %v", err)
	}
	if renewed.UserID != original.UserID || renewed.Email != original.Email {
		t.Fatalf("subject changed: %+v vs %+v", renewed, original)
	}
}

func TestUserService_GetProfile(t *testing.T) {
	f := newFixture()
	user := f.register("erin@x.com", "secret1")

	got, err := f.users.GetProfile(context.Background(), actorOf(user))
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Email != "erin@x.com" {
		t.Fatalf("unexpected profile: %+v", got)
	}

	if _, err := f.users.GetProfile(context.Background(), domain.Actor{UserID: 42, Email: "nobody@x.com"}); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_ListUsers_RoleGate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	plain := f.register("user@x.com", "secret1")
	admin := f.register("admin@x.com", "secret1")
	f.promote(admin.ID)

	if _, err := f.users.ListUsers(ctx, actorOf(plain)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	users, err := f.users.ListUsers(ctx, actorOf(admin))
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestUserService_UpdateUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.register("frank@x.com", "secret1")

	upd := domain.UserUpdate{FirstName: strPtr("Frank"), Password: strPtr("newsecret")}
	first, err := f.users.UpdateUser(ctx, actorOf(user), upd)
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if first.FirstName != "Frank" {
		t.Fatalf("first name not updated")
	}
	if _, err := f.users.Login(ctx, domain.LoginPayload{Email: "frank@x.com", Password: "newsecret"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}

	// Replaying the same update converges on the same state.
	second, err := f.users.UpdateUser(ctx, actorOf(user), upd)
	if err != nil {
		t.Fatalf("replayed UpdateUser: %v", err)
	}
	if second.FirstName != first.FirstName || second.Email != first.Email || second.Role != first.Role {
		t.Fatalf("replay diverged: %+v vs %+v", second, first)
	}
}

func TestUserService_UpdateUser_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.register("gina@x.com", "secret1")

	cases := []struct {
		name string
		upd  domain.UserUpdate
		want error
	}{
		{"email change", domain.UserUpdate{Email: strPtr("other@x.com")}, domain.ErrEmailImmutable},
		{"role change by user", domain.UserUpdate{Role: strPtr(domain.RoleAdmin)}, domain.ErrRoleImmutable},
		{"short password", domain.UserUpdate{Password: strPtr("123")}, domain.ErrPasswordTooShort},
	}
	for _, tc := range cases {
		if _, err := f.users.UpdateUser(ctx, actorOf(user), tc.upd); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// Restating the current email or role is not a change.
	if _, err := f.users.UpdateUser(ctx, actorOf(user), domain.UserUpdate{Email: strPtr("gina@x.com"), Role: strPtr(domain.RoleUser)}); err != nil {
		t.Fatalf("no-op update: %v", err)
	}
}

func TestUserService_UpdateUser_AdminMayChangeRole(t *testing.T) {
	f := newFixture()
	admin := f.register("root@x.com", "secret1")
	f.promote(admin.ID)

	got, err := f.users.UpdateUser(context.Background(), actorOf(admin), domain.UserUpdate{Role: strPtr(domain.RoleUser)})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Role != domain.RoleUser {
		t.Fatalf("expected role change, got %s", got.Role)
	}
}

func TestUserService_DeleteUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.register("hank@x.com", "secret1")
	pair, _ := f.users.Login(ctx, domain.LoginPayload{Email: "hank@x.com", Password: "secret1"})

	deleted, err := f.users.DeleteUser(ctx, actorOf(user))
	if err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if deleted.ID != user.ID {
		t.Fatalf("unexpected deleted user %+v", deleted)
	}
	if _, ok := f.cache.entries[user.ID]; ok {
		t.Fatalf("expected cache entry to be revoked")
	}
	if _, err := f.users.Refresh(ctx, domain.RefreshPayload{RefreshToken: pair.RefreshToken}); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected refresh of deleted user to fail, got %v", err)
	}
	if _, err := f.users.DeleteUser(ctx, actorOf(user)); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound on second delete, got %v", err)
	}
}

func TestUserService_EnsureAdmin(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	admin, err := f.users.EnsureAdmin(ctx, "boot@x.com", "bootstrap")
	if err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if !admin.IsAdmin() {
		t.Fatalf("expected admin role")
	}
	again, err := f.users.EnsureAdmin(ctx, "boot@x.com", "bootstrap")
	if err != nil || again.ID != admin.ID {
		t.Fatalf("EnsureAdmin not idempotent: %v %+v", err, again)
	}

	existing := f.register("promote@x.com", "secret1")
	promoted, err := f.users.EnsureAdmin(ctx, "promote@x.com", "ignored")
	if err != nil || promoted.ID != existing.ID || !promoted.IsAdmin() {
		t.Fatalf("expected existing user promoted: %v %+v", err, promoted)
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	digest, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if strings.Contains(digest, "secret1") {
		t.Fatalf("digest leaks plaintext")
	}
	if !h.Verify("secret1", digest) || h.Verify("secret2", digest) {
		t.Fatalf("Verify mismatch")
	}
}
