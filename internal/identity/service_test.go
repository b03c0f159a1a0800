package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage/memory"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func newTestService() (*Service, *TokenIssuer) {
	tokens := NewTokenIssuer("test-secret", time.Hour)
	return NewService(memory.New(), tokens, NewMemoryRevocations(), zap.NewNop()), tokens
}

func signUp(t *testing.T, s *Service, email string, role model.Role) *model.User {
	t.Helper()
	u, err := s.SignUp(context.Background(), SignUpInput{Email: email, Password: "correct horse", Name: "Ada", Role: role})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return u
}

func TestSignUpValidation(t *testing.T) {
	s, _ := newTestService()
	signUp(t, s, "ada@example.com", model.RoleFreelancer)

	tests := []struct {
		name string
		in   SignUpInput
	}{
		{"bad email", SignUpInput{Email: "not-an-email", Password: "correct horse", Name: "Ada", Role: model.RoleClient}},
		{"short password", SignUpInput{Email: "b@example.com", Password: "short", Name: "Ada", Role: model.RoleClient}},
		{"short name", SignUpInput{Email: "b@example.com", Password: "correct horse", Name: " A ", Role: model.RoleClient}},
		{"unknown role", SignUpInput{Email: "b@example.com", Password: "correct horse", Name: "Ada", Role: "ADMIN"}},
		{"email taken", SignUpInput{Email: "ADA@example.com", Password: "correct horse", Name: "Ada", Role: model.RoleClient}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.SignUp(context.Background(), tt.in); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestSignInResolveSignOut(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	u := signUp(t, s, "ada@example.com", model.RoleFreelancer)

	if _, err := s.SignIn(ctx, "ada@example.com", "wrong password"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := s.SignIn(ctx, "nobody@example.com", "correct horse"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown email err = %v", err)
	}

	sess, err := s.SignIn(ctx, "ada@example.com", "correct horse")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if sess.User.ID != u.ID || sess.Token == "" {
		t.Fatalf("session = %+v", sess)
	}

	actor, err := s.Resolve(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if actor.UserID != u.ID || actor.Role != model.RoleFreelancer {
		t.Fatalf("actor = %+v", actor)
	}

	if err := s.SignOut(ctx, sess.Token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := s.Resolve(ctx, sess.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("revoked token err = %v", err)
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	s, tokens := newTestService()
	ctx := context.Background()
	u := signUp(t, s, "ada@example.com", model.RoleClient)

	expiredIssuer := NewTokenIssuer("test-secret", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := expiredIssuer.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	forged, _, err := NewTokenIssuer("other-secret", time.Hour).Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: u.Role}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	for name, token := range map[string]string{
		"empty":   "",
		"garbage": "not.a.jwt",
		"expired": expired,
		"forged":  forged,
		"none":    noneAlg,
	} {
		if _, err := s.Resolve(ctx, token); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Errorf("%s: err = %v, want unauthenticated", name, err)
		}
	}

	valid, _, _ := tokens.Issue(u)
	if _, err := s.Resolve(ctx, valid); err != nil {
		t.Fatalf("valid token: %v", err)
	}
}

func TestExtractBearer(t *testing.T) {
	tests := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"Bearer":     "",
		"":           "",
		"Bearer a b": "",
	}
	for header, want := range tests {
		if got := ExtractBearer(header); got != want {
			t.Errorf("ExtractBearer(%q) = %q, want %q", header, got, want)
		}
	}
}
