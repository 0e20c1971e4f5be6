// internal/pkg/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Manager stores sessions in Redis keyed by identity and jti. Redis is the
// single source of truth; a missing key means the session is gone.
type Manager struct {
	client *redis.Client
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client}
}

// CreateSession stores a new session with a TTL derived from its expiry.
func (m *Manager) CreateSession(ctx context.Context, sess *SessionData) error {
	key := m.sessionKey(sess.IdentityID, sess.JTI)

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}

	if err := m.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in redis: %w", err)
	}

	return nil
}

// GetSession retrieves a session. Returns ErrSessionExpired when the key is
// gone (expired or invalidated).
func (m *Manager) GetSession(ctx context.Context, identityID int64, jti string) (*SessionData, error) {
	key := m.sessionKey(identityID, jti)

	data, err := m.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, xerrors.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess SessionData
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &sess, nil
}

// BindTenant records the tenant slug the session is serving. The remaining
// TTL is preserved.
func (m *Manager) BindTenant(ctx context.Context, sess *SessionData, slug string) error {
	sess.TenantSlug = slug
	sess.LastActivityAt = time.Now()

	key := m.sessionKey(sess.IdentityID, sess.JTI)
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return xerrors.ErrSessionExpired
	}

	if err := m.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to rebind session: %w", err)
	}
	return nil
}

// Invalidate removes a session, revoking the authentication it backs.
func (m *Manager) Invalidate(ctx context.Context, identityID int64, jti string) error {
	key := m.sessionKey(identityID, jti)
	if err := m.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

func (m *Manager) sessionKey(identityID int64, jti string) string {
	return fmt.Sprintf("session:%d:%s", identityID, jti)
}
