package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medsoc-cms/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Identity is the resolved acting user attached to an authenticated request.
type Identity struct {
	UserID string      `json:"id"`
	Email  string      `json:"email"`
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
}

func identityOf(u *models.User) *Identity {
	return &Identity{UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

type PasswordHasher interface {
	Hash(password []byte) ([]byte, error)
	Compare(hash, password []byte) error
}

type BcryptHasher struct {
	Cost int
}

func (h BcryptHasher) Hash(pw []byte) ([]byte, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return bcrypt.GenerateFromPassword(pw, cost)
}

func (BcryptHasher) Compare(hash, pw []byte) error {
	return bcrypt.CompareHashAndPassword(hash, pw)
}

// Authenticator checks credentials, provisions admins and issues and
// verifies bearer tokens.
type Authenticator struct {
	users  UserStore
	hasher PasswordHasher
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthenticator(users UserStore, hasher PasswordHasher, secret []byte, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		users:  users,
		hasher: hasher,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Login returns the identity for a matching active user. Every failure is
// reported as ErrUnauthorized so callers cannot probe for accounts.
func (a *Authenticator) Login(ctx context.Context, email, password string) (*Identity, error) {
	u, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrUnauthorized
	}
	if err := a.hasher.Compare([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	return identityOf(u), nil
}

// Resolve loads the user behind a session or token subject.
func (a *Authenticator) Resolve(ctx context.Context, userID string) (*Identity, error) {
	u, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrUnauthorized
	}
	return identityOf(u), nil
}

// ResolveEmail maps an externally verified email (GitHub SSO) to a user.
func (a *Authenticator) ResolveEmail(ctx context.Context, email string) (*Identity, error) {
	u, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrUnauthorized
	}
	return identityOf(u), nil
}

// Provision creates an active admin account.
func (a *Authenticator) Provision(ctx context.Context, email, name, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || name == "" {
		return nil, validationf("email and name are required")
	}
	if len(password) < minPasswordLength {
		return nil, validationf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := a.hasher.Hash([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": u.ID, "email": u.Email}).Info("admin provisioned")
	return u, nil
}

type tokenClaims struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 bearer token for id.
func (a *Authenticator) IssueToken(id *Identity) (string, time.Time, error) {
	if len(a.secret) == 0 {
		return "", time.Time{}, errors.New("token secret is not configured")
	}
	now := a.now()
	expires := now.Add(a.ttl)
	claims := tokenClaims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseToken verifies a bearer token and returns its subject.
func (a *Authenticator) ParseToken(raw string) (string, error) {
	if len(a.secret) == 0 {
		return "", ErrUnauthorized
	}
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || claims.Subject == "" {
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}
