package service

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"

	"github.com/solranch/backend/internal/domain"
	"github.com/solranch/backend/internal/solana"
)

const challengeTemplate = "solranch authentication\nwallet: %s\nnonce: %s"

// AuthService implements wallet challenge-response login and session
// resolution. Nonces are single-use: both issuing a challenge and a
// successful login rotate them.
type AuthService struct {
	store      AuthStore
	adminKey   string // base58 pubkey of the program authority wallet
	sessionTTL time.Duration
	logger     *slog.Logger
	nowFn      func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(store AuthStore, adminPubkey string, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		store:      store,
		adminKey:   adminPubkey,
		sessionTTL: sessionTTL,
		logger:     logger,
		nowFn:      time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *AuthService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Challenge returns the message a wallet must sign to log in, creating the
// user on first contact.
func (s *AuthService) Challenge(ctx context.Context, pubkey string) (string, error) {
	if _, err := solana.ParsePubkey(pubkey); err != nil {
		return "", err
	}

	nonce := uuid.NewString()
	_, err := s.store.GetUser(ctx, pubkey)
	switch {
	case err == nil:
		if err := s.store.UpdateUserNonce(ctx, pubkey, nonce); err != nil {
			return "", err
		}
	case domain.IsKind(err, domain.KindNotFound):
		user := domain.User{
			PublicKey: pubkey,
			Nonce:     nonce,
			Roles:     []domain.Role{domain.RoleUser},
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return "", err
		}
		s.logger.Info("registered new wallet", "pubkey", pubkey)
	default:
		return "", err
	}

	return fmt.Sprintf(challengeTemplate, pubkey, nonce), nil
}

// Login verifies the signed challenge and issues a session token.
func (s *AuthService) Login(ctx context.Context, pubkey, signature string) (domain.Session, error) {
	pk, err := solana.ParsePubkey(pubkey)
	if err != nil {
		return domain.Session{}, err
	}

	user, err := s.store.GetUser(ctx, pubkey)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.Session{}, domain.E(domain.KindUnauthorized, "no challenge was issued for this wallet")
		}
		return domain.Session{}, err
	}
	if user.Nonce == "" {
		return domain.Session{}, domain.E(domain.KindUnauthorized, "no challenge was issued for this wallet")
	}

	sigBytes, err := base58.Decode(signature)
	if err != nil {
		return domain.Session{}, domain.Wrap(domain.KindBadRequest, "signature is not valid base58", err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return domain.Session{}, domain.E(domain.KindBadRequest, "signature has the wrong length")
	}

	message := []byte(fmt.Sprintf(challengeTemplate, pubkey, user.Nonce))
	if !ed25519.Verify(ed25519.PublicKey(pk.Bytes()), message, sigBytes) {
		return domain.Session{}, domain.E(domain.KindUnauthorized, "signature does not verify against the challenge")
	}

	// Burn the nonce regardless of what happens next.
	if err := s.store.UpdateUserNonce(ctx, pubkey, uuid.NewString()); err != nil {
		return domain.Session{}, err
	}

	now := s.nowFn().UTC()
	session := domain.Session{
		Token:     uuid.NewString(),
		PublicKey: pubkey,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, err
	}

	_ = s.store.DeleteExpiredSessions(ctx, now)

	s.logger.Info("wallet logged in", "pubkey", pubkey)
	return session, nil
}

// Authenticate resolves a bearer token to the caller's identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, domain.E(domain.KindUnauthorized, "missing bearer token")
	}

	session, err := s.store.GetSession(ctx, token)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return Identity{}, domain.E(domain.KindUnauthorized, "unknown session token")
		}
		return Identity{}, err
	}
	if session.Expired(s.nowFn().UTC()) {
		return Identity{}, domain.E(domain.KindUnauthorized, "session has expired")
	}

	user, err := s.store.GetUser(ctx, session.PublicKey)
	if err != nil {
		return Identity{}, err
	}

	identity := Identity{PublicKey: user.PublicKey, Roles: user.Roles}
	if s.adminKey != "" && user.PublicKey == s.adminKey {
		identity.Roles = append(identity.Roles, domain.RoleAdmin)
	}
	return identity, nil
}

// Profile returns the stored user record for an identity.
func (s *AuthService) Profile(ctx context.Context, identity Identity) (domain.User, error) {
	user, err := s.store.GetUser(ctx, identity.PublicKey)
	if err != nil {
		return domain.User{}, err
	}
	user.Nonce = ""
	if identity.HasRole(domain.RoleAdmin) && !user.HasRole(domain.RoleAdmin) {
		user.Roles = append(user.Roles, domain.RoleAdmin)
	}
	return user, nil
}
