package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/realitycheck/backend/internal/domain"
	"github.com/realitycheck/backend/internal/logging"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionKeyPrefix = "session:"

	// bcrypt only looks at the first 72 bytes
	maxPasswordBytes = 72
)

// SessionConfig holds token settings for the session service
type SessionConfig struct {
	Secret     string
	TTL        time.Duration
	BcryptCost int
}

// sessionClaims are the JWT claims of a session token
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// sessionRecord is what the cache keeps per live session. Deleting it revokes the token.
type sessionRecord struct {
	UserID       string    `json:"user_id"`
	BackendToken string    `json:"backend_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionService owns user accounts and sessions. Passwords are stored as
// bcrypt hashes; sessions are HS256 tokens backed by a revocable cache record.
type SessionService struct {
	users    domain.UserRepository
	cache    domain.CacheRepository
	accounts domain.BackendAccounts
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewSessionService creates the session service. accounts may be nil, in which
// case no product backend account is linked.
func NewSessionService(
	users domain.UserRepository,
	cache domain.CacheRepository,
	accounts domain.BackendAccounts,
	config SessionConfig,
	log logrus.FieldLogger,
) *SessionService {
	ttl := config.TTL
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}

	cost := config.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &SessionService{
		users:    users,
		cache:    cache,
		accounts: accounts,
		secret:   []byte(config.Secret),
		ttl:      ttl,
		cost:     cost,
		now:      time.Now,
		log:      logging.Component(log, "session"),
	}
}

// AnonymousSession is the session of a caller with no valid token
func AnonymousSession() *domain.Session {
	return &domain.Session{State: domain.SessionAnonymous}
}

// Signup registers a user and signs them in. It reports false when the email
// is already registered or the account could not be created.
func (s *SessionService) Signup(ctx context.Context, name, email, password string) (*domain.Session, bool) {
	session, err := s.CreateAccount(ctx, name, email, password)
	if err != nil {
		if !errors.Is(err, domain.ErrEmailTaken) {
			s.log.WithError(err).Warn("signup failed")
		}
		return nil, false
	}
	return session, true
}

// CreateAccount is Signup with the failure reason: ErrInvalidRequest for bad
// input, ErrEmailTaken for a duplicate email.
func (s *SessionService) CreateAccount(ctx context.Context, name, email, password string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || password == "" || len(password) > maxPasswordBytes || !validEmail(email) {
		return nil, domain.ErrInvalidRequest
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.StoredUser{
		User: domain.User{
			ID:    uuid.NewString(),
			Name:  name,
			Email: email,
		},
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	log := s.log.WithField("user_id", user.ID)
	log.Info("user registered")

	if s.accounts != nil {
		if err := s.accounts.Register(ctx, email, password, name); err != nil {
			log.WithError(err).Warn("product backend registration failed")
		}
	}

	session, err := s.issue(ctx, &user.User, email, password)
	if err != nil {
		// a failed signup leaves no account behind
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			log.WithError(delErr).Error("failed to remove user after session error")
		}
		return nil, err
	}
	return session, nil
}

// Login verifies credentials and starts a session. Any failure, including
// internal ones, reports false.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.Session, bool) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, false
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.WithError(err).Error("user lookup failed")
		}
		return nil, false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.WithField("user_id", user.ID).Info("login rejected")
		return nil, false
	}

	session, err := s.issue(ctx, &user.User, email, password)
	if err != nil {
		s.log.WithError(err).Error("failed to issue session")
		return nil, false
	}
	return session, true
}

// Logout revokes the session behind token. Unknown or invalid tokens are ignored.
func (s *SessionService) Logout(ctx context.Context, token string) {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return
	}

	if err := s.cache.Delete(ctx, sessionKeyPrefix+claims.SessionID); err != nil {
		s.log.WithError(err).Warn("failed to delete session record")
		return
	}
	s.log.WithField("user_id", claims.Subject).Info("user logged out")
}

// Restore rehydrates the session for token. Expired, revoked and malformed
// tokens yield an anonymous session.
func (s *SessionService) Restore(ctx context.Context, token string) *domain.Session {
	if token == "" {
		return AnonymousSession()
	}

	claims, err := s.parse(token)
	if err != nil {
		return AnonymousSession()
	}

	data, err := s.cache.Get(ctx, sessionKeyPrefix+claims.SessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.log.WithError(err).Warn("session lookup failed")
		}
		return AnonymousSession()
	}

	var record sessionRecord
	if err := json.Unmarshal(data, &record); err != nil || record.UserID != claims.Subject {
		return AnonymousSession()
	}

	user, err := s.users.FindByID(ctx, record.UserID)
	if err != nil {
		return AnonymousSession()
	}

	u := user.User
	return &domain.Session{
		Token:        token,
		User:         &u,
		State:        domain.SessionAuthenticated,
		ExpiresAt:    record.ExpiresAt,
		BackendToken: record.BackendToken,
	}
}

// issue creates the session record and its signed token
func (s *SessionService) issue(ctx context.Context, user *domain.User, email, password string) (*domain.Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl).UTC().Truncate(time.Second)
	sessionID := uuid.NewString()

	record := sessionRecord{UserID: user.ID, ExpiresAt: expiresAt}
	if s.accounts != nil {
		if token, err := s.accounts.Login(ctx, email, password); err != nil {
			s.log.WithError(err).WithField("user_id", user.ID).Warn("product backend login failed")
		} else {
			record.BackendToken = token
		}
	}

	if err := s.cache.Set(ctx, sessionKeyPrefix+sessionID, record, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	claims := sessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	u := *user
	return &domain.Session{
		Token:        token,
		User:         &u,
		State:        domain.SessionAuthenticated,
		ExpiresAt:    expiresAt,
		BackendToken: record.BackendToken,
	}, nil
}

func (s *SessionService) parse(token string, opts ...jwt.ParserOption) (*sessionClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))

	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, domain.ErrUnauthorized
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
