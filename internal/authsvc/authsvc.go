// Package authsvc handles registration, login, JWT issuance/verification,
// and the Telegram account-linking flow, grounded on
// original_source/src/auth/mod.rs::AuthManager.
package authsvc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"wfsync/entity"
	"wfsync/internal/identitystore"
)

var (
	ErrEmailTaken       = errors.New("authsvc: email already registered")
	ErrInvalidEmail     = errors.New("authsvc: invalid email format")
	ErrWeakPassword     = errors.New("authsvc: password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("authsvc: invalid email or password")
	ErrInvalidToken     = errors.New("authsvc: invalid token")
	ErrInvalidLinkCode  = errors.New("authsvc: invalid or expired link code")
	ErrTelegramTaken    = errors.New("authsvc: telegram account already linked to another user")
)

// Claims is the JWT payload: subject, issued-at, expiry. No custom claims
// beyond the registered ones — the handler re-derives everything else
// (subscription, agents) from the subject on each request.
type Claims struct {
	jwt.RegisteredClaims
}

// Service issues and verifies sessions against the central identity store.
type Service struct {
	store       *identitystore.Store
	jwtSecret   []byte
	jwtExpiry   time.Duration
	trialDays   int
	trialTokens int64
}

func New(store *identitystore.Store, jwtSecret string, jwtExpiryDays, trialDays int, trialTokenLimit int64) *Service {
	return &Service{
		store:       store,
		jwtSecret:   []byte(jwtSecret),
		jwtExpiry:   time.Duration(jwtExpiryDays) * 24 * time.Hour,
		trialDays:   trialDays,
		trialTokens: trialTokenLimit,
	}
}

// Register creates a user and its trial subscription atomically, then
// returns a signed session token.
func (s *Service) Register(email, password string) (userID, token string, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || !strings.Contains(email, ".") {
		return "", "", ErrInvalidEmail
	}
	if len(password) < 8 {
		return "", "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("authsvc: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &entity.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if err := s.store.CreateUser(user, s.trialDays, s.trialTokens); err != nil {
		if errors.Is(err, identitystore.ErrConflict) {
			return "", "", ErrEmailTaken
		}
		return "", "", err
	}

	token, err = s.generateJWT(user.ID)
	if err != nil {
		return "", "", err
	}
	return user.ID, token, nil
}

// Login verifies credentials and returns a fresh session token. Failure
// modes (unknown email, wrong password) are folded into a single
// indistinguishable error so a caller cannot enumerate registered emails.
func (s *Service) Login(email, password string) (userID, token string, err error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(email)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	now := time.Now().UTC()
	_ = s.store.UpdateLastLogin(user.ID, now)

	token, err = s.generateJWT(user.ID)
	if err != nil {
		return "", "", err
	}
	return user.ID, token, nil
}

func (s *Service) generateJWT(userID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyToken validates a signed token and returns the subject user id.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// GenerateTelegramLink issues a fresh one-time code for the web-initiated
// Telegram linking flow, replacing any code already pending for the user.
func (s *Service) GenerateTelegramLink(userID string) (string, error) {
	code := "tg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	link := &entity.TelegramLinkCode{
		Code:      code,
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(entity.TelegramLinkCodeTTL),
	}
	if err := s.store.IssueLinkCode(link); err != nil {
		return "", err
	}
	return code, nil
}

// ValidateTelegramCode consumes a link code and returns the bound user id.
// The code is deleted whether or not it has expired.
func (s *Service) ValidateTelegramCode(code string) (string, error) {
	link, err := s.store.ConsumeLinkCode(code)
	if err != nil {
		return "", ErrInvalidLinkCode
	}
	if time.Now().UTC().After(link.ExpiresAt) {
		return "", ErrInvalidLinkCode
	}
	return link.UserID, nil
}

// LinkTelegram binds a Telegram identity to an already-authenticated user
// (the web-registration flow: user requests a code, then sends /start
// <code> from Telegram, which calls LinkTelegramByCode instead — this
// method is for flows that already resolved the Telegram identity and
// just need the bind, e.g. re-linking after an unlink).
func (s *Service) LinkTelegram(userID, telegramID string, username *string) error {
	if err := s.store.LinkTelegram(userID, telegramID, username); err != nil {
		if errors.Is(err, identitystore.ErrConflict) {
			return ErrTelegramTaken
		}
		return err
	}
	return nil
}

// LinkTelegramByCode is the Telegram-side half of the pairing flow: a user
// DMs "/start <code>" to the bot, the channel resolves telegramID/username
// from the update, and this validates the code and performs the bind in
// one call.
func (s *Service) LinkTelegramByCode(code, telegramID string, username *string) (userID string, err error) {
	userID, err = s.ValidateTelegramCode(code)
	if err != nil {
		return "", err
	}
	if err := s.LinkTelegram(userID, telegramID, username); err != nil {
		return "", err
	}
	return userID, nil
}
