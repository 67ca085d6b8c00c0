package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

const (
	TopicAuthEvents             = "storefront.auth"
	EventPasswordResetRequested = "PasswordResetRequested"

	minPasswordLen = 8
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("reset token is invalid or expired")
	ErrInvalidInput       = errors.New("invalid input")
)

type PasswordResetRequestedPayload struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

type Service struct {
	Users       UserStore
	Tokens      *Tokens
	Redis       *redis.Client
	Events      kafkax.Publisher
	ServiceName string
}

type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

func (s *Service) Signup(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		Role:         RoleCustomer,
	}
	if err := s.Users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

func (s *Service) session(u *User) (*Session, error) {
	tok, err := s.Tokens.Issue(Identity{UserID: u.ID, Role: u.Role})
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, User: u}, nil
}

// ForgotPassword stores a one-time reset token and hands it to the mailer via
// an event. Unknown emails succeed silently so callers cannot probe accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.Users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	token := uuid.NewString()
	if err := s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyPasswordReset, token), u.ID, redisx.TTLPasswordReset).Err(); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if s.Events != nil {
		kafkax.Emit(s.Events, kafkax.NewEnvelope(EventPasswordResetRequested, s.ServiceName, u.ID,
			PasswordResetRequestedPayload{UserID: u.ID, Email: u.Email, Token: token}))
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	userID, err := s.Redis.GetDel(ctx, fmt.Sprintf(redisx.KeyPasswordReset, token)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("read reset token: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	return nil
}

// SetRole lets an administrator promote or demote a user.
func (s *Service) SetRole(ctx context.Context, caller *Identity, userID string, role Role) (*User, error) {
	if _, err := CheckRole(caller, RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if err := s.Users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	return s.Users.GetUserByID(ctx, userID)
}

// Me returns the caller's own profile.
func (s *Service) Me(ctx context.Context, caller *Identity) (*User, error) {
	if caller == nil {
		return nil, ErrUnauthorized
	}
	return s.Users.GetUserByID(ctx, caller.UserID)
}
