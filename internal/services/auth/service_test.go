package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/numaken/genpost-sub001/internal/repo/redis"
	authsvc "github.com/numaken/genpost-sub001/internal/services/auth"
)

const testIdentitySecret = "identity-secret"

func TestLoginIdentityAssignsRoles(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	userRes, err := svc.LoginIdentity(ctx, authsvc.SignAssertion(testIdentitySecret, "Buyer@Example.com", time.Now()))
	if err != nil {
		t.Fatalf("login user: %v", err)
	}
	if userRes.Me.ID != "buyer@example.com" {
		t.Fatalf("expected lower-cased user id, got %q", userRes.Me.ID)
	}
	if userRes.Me.Role != "USER" {
		t.Fatalf("expected USER role, got %q", userRes.Me.Role)
	}

	ownerRes, err := svc.LoginIdentity(ctx, authsvc.SignAssertion(testIdentitySecret, "owner@example.com", time.Now()))
	if err != nil {
		t.Fatalf("login owner: %v", err)
	}
	if ownerRes.Me.Role != "OWNER" {
		t.Fatalf("expected OWNER role, got %q", ownerRes.Me.Role)
	}
}

func TestLoginIdentityRejectsBadAssertions(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	cases := map[string]string{
		"wrong secret": authsvc.SignAssertion("other-secret", "buyer@example.com", time.Now()),
		"expired":      authsvc.SignAssertion(testIdentitySecret, "buyer@example.com", time.Now().Add(-time.Hour)),
		"future":       authsvc.SignAssertion(testIdentitySecret, "buyer@example.com", time.Now().Add(time.Hour)),
	}
	for name, assertion := range cases {
		if _, err := svc.LoginIdentity(ctx, assertion); !errors.Is(err, authsvc.ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}

	if _, err := svc.LoginIdentity(ctx, ""); !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("empty assertion: expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.LoginIdentity(ctx, "email=buyer@example.com&ts=1"); !errors.Is(err, authsvc.ErrInvalidInput) {
		t.Fatalf("missing sig: expected ErrInvalidInput, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	loginRes, err := svc.LoginIdentity(ctx, authsvc.SignAssertion(testIdentitySecret, "buyer@example.com", time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	refreshRes, err := svc.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	if _, err := svc.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("old refresh token should be unauthorized, got err=%v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, refreshRes.AccessToken); err != nil {
		t.Fatalf("new access token validation failed: %v", err)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	loginRes, err := svc.LoginIdentity(ctx, authsvc.SignAssertion(testIdentitySecret, "buyer@example.com", time.Now()))
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("validate access token before logout: %v", err)
	}

	if err := svc.Logout(ctx, claims.SID); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.ValidateAccessToken(ctx, loginRes.AccessToken); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("access token should be unauthorized after logout, got err=%v", err)
	}
}

func TestLogoutAllDropsEverySession(t *testing.T) {
	svc, cleanup := newAuthServiceForTest(t)
	defer cleanup()

	ctx := context.Background()
	first, err := svc.LoginIdentity(ctx, authsvc.SignAssertion(testIdentitySecret, "buyer@example.com", time.Now()))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.LoginIdentity(ctx, authsvc.SignAssertion(testIdentitySecret, "buyer@example.com", time.Now()))
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	if err := svc.LogoutAll(ctx, "buyer@example.com"); err != nil {
		t.Fatalf("logout all: %v", err)
	}

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		if _, err := svc.ValidateAccessToken(ctx, token); !errors.Is(err, authsvc.ErrUnauthorized) {
			t.Fatalf("expected unauthorized after logout all, got %v", err)
		}
	}
}

func newAuthServiceForTest(t *testing.T) (*authsvc.Service, func()) {
	t.Helper()

	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	repo := redrepo.NewSessionRepo(client)
	jwtManager := authsvc.NewJWTManager("test-secret", 15*time.Minute)
	verifier := authsvc.NewAssertionVerifier(testIdentitySecret, 10*time.Minute)
	svc := authsvc.NewService(jwtManager, repo, verifier, 45*24*time.Hour, []string{"Owner@Example.com"})

	cleanup := func() {
		_ = client.Close()
		mini.Close()
	}

	return svc, cleanup
}
