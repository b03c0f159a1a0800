// Package identity signs users up and in, issues session tokens and resolves
// a token back to the acting user.
package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/model"
	"freelancehub/internal/storage"
	"freelancehub/pkg/logger"
)

const (
	minPasswordLength = 8
	minNameLength     = 2
)

type SignUpInput struct {
	Email    string
	Password string
	Name     string
	Role     model.Role
}

// Session is the result of a successful sign-in.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

type Service struct {
	store       storage.Store
	tokens      *TokenIssuer
	revocations Revocations
	logger      *zap.Logger
}

func NewService(store storage.Store, tokens *TokenIssuer, revocations Revocations, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger,
	}
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	logger.WithTrace(ctx, s.logger).Error("Identity operation failed",
		zap.String("operation", op),
		zap.Error(err),
	)
	return apperr.OperationFailed("authentication service unavailable")
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperr.Validation("invalid email address")
	}
	return email, nil
}

// SignUp registers a user. The email must be unused.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*model.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLength)
	}
	name := strings.TrimSpace(in.Name)
	if len([]rune(name)) < minNameLength {
		return nil, apperr.Validation("name must be at least %d characters", minNameLength)
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, s.fail(ctx, "sign_up", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         in.Role,
	}
	err = s.store.RunInTx(ctx, func(tx storage.Tx) error {
		return tx.InsertUser(ctx, u)
	})
	if errors.Is(err, storage.ErrConflict) {
		return nil, apperr.Validation("an account with this email already exists")
	}
	if err != nil {
		return nil, s.fail(ctx, "sign_up", err)
	}

	s.logger.Info("User registered",
		zap.String("user_id", u.ID),
		zap.String("role", string(u.Role)),
	)
	return u, nil
}

// SignIn checks credentials and issues a session token. Unknown emails and
// wrong passwords get the same answer.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	invalid := apperr.Validation("invalid email or password")

	u, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, s.fail(ctx, "sign_in", err)
	}
	if !CheckPassword(password, u.PasswordHash) {
		return nil, invalid
	}

	token, claims, err := s.tokens.Issue(u)
	if err != nil {
		return nil, s.fail(ctx, "sign_in", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

// SignOut revokes the token until it expires. Signing out with an invalid
// token is Unauthenticated.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return apperr.Unauthenticated()
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return s.fail(ctx, "sign_out", err)
	}
	return nil
}

// Resolve maps a session token to the acting user. Expired, malformed and
// revoked tokens are Unauthenticated.
func (s *Service) Resolve(ctx context.Context, token string) (model.Actor, error) {
	if token == "" {
		return model.Actor{}, apperr.Unauthenticated()
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return model.Actor{}, apperr.Unauthenticated()
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return model.Actor{}, s.fail(ctx, "resolve", err)
	}
	if revoked {
		return model.Actor{}, apperr.Unauthenticated()
	}
	return model.Actor{UserID: claims.Subject, Role: claims.Role}, nil
}

// User loads the profile of the acting user.
func (s *Service) User(ctx context.Context, actor model.Actor) (*model.User, error) {
	if !actor.Authenticated() {
		return nil, apperr.Unauthenticated()
	}
	u, err := s.store.GetUser(ctx, actor.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthenticated()
	}
	if err != nil {
		return nil, s.fail(ctx, "user", err)
	}
	return u, nil
}
