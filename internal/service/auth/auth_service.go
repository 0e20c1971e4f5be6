// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"time"

	"wifipay-service/internal/domain/identity"
	xerrors "wifipay-service/internal/pkg/errors"
	"wifipay-service/internal/pkg/jwt"
	"wifipay-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IdentityStore reads and writes platform logins in the central store.
type IdentityStore interface {
	Create(ctx context.Context, id *identity.Identity) error
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	FindByID(ctx context.Context, identityID int64) (*identity.Identity, error)
}

type AuthService struct {
	identities IdentityStore
	jwt        *jwt.Manager
	sessions   *session.Manager
	logger     *zap.Logger
}

func NewAuthService(identities IdentityStore, jwtManager *jwt.Manager, sessions *session.Manager, logger *zap.Logger) *AuthService {
	return &AuthService{
		identities: identities,
		jwt:        jwtManager,
		sessions:   sessions,
		logger:     logger,
	}
}

// Login verifies credentials, issues a token and opens its redis session.
// The session carries no tenant binding yet; the first tenant-scoped
// request binds it.
func (s *AuthService) Login(ctx context.Context, req *identity.LoginRequest, ip, userAgent string) (*identity.LoginResponse, error) {
	id, err := s.identities.FindByEmail(ctx, req.Email)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.Wrap(xerrors.ErrUnauthorized, "invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(req.Password)); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrUnauthorized, "invalid credentials")
	}

	token, jti, err := s.jwt.Generate(id.ID, id.Role, id.Email)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to issue token")
	}

	now := time.Now()
	sess := &session.SessionData{
		JTI:            jti,
		IdentityID:     id.ID,
		Email:          id.Email,
		Role:           id.Role,
		IPAddress:      ip,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.jwt.TTL()),
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.logger.Info("identity logged in",
		zap.Int64("identity_id", id.ID), zap.String("role", id.Role))

	return &identity.LoginResponse{Token: token, Identity: id}, nil
}

// ValidateToken verifies the signature and checks the session is still
// live. Logout and cross-tenant revocation both work by deleting the
// session, so a valid signature alone is not enough.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, *session.SessionData, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		return nil, nil, xerrors.Wrap(xerrors.ErrUnauthorized, "invalid token")
	}
	sess, err := s.sessions.GetSession(ctx, claims.IdentityID, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	return claims, sess, nil
}

// Logout revokes the session behind a verified token.
func (s *AuthService) Logout(ctx context.Context, claims *jwt.Claims) error {
	return s.sessions.Invalidate(ctx, claims.IdentityID, claims.ID)
}

// EnsureSuperAdminExists bootstraps the platform operator account on first
// start. A no-op when the email is already registered.
func (s *AuthService) EnsureSuperAdminExists(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return nil
	} else if !xerrors.Is(err, xerrors.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return xerrors.Wrap(err, "failed to hash password")
	}
	admin := &identity.Identity{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Platform Admin",
		Role:         identity.RoleSuperAdmin,
	}
	if err := s.identities.Create(ctx, admin); err != nil {
		if xerrors.Is(err, xerrors.ErrDuplicateEntry) {
			return nil
		}
		return err
	}

	s.logger.Info("super admin bootstrapped", zap.String("email", email))
	return nil
}
