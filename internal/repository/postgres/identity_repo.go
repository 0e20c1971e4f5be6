// internal/repository/postgres/identity_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"wifipay-service/internal/domain/identity"
	xerrors "wifipay-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type IdentityRepository struct {
	db *pgxpool.Pool
}

func NewIdentityRepository(db *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(ctx context.Context, id *identity.Identity) error {
	query := `
		INSERT INTO identities (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query, id.Email, id.PasswordHash, id.FullName, id.Role).
		Scan(&id.ID, &id.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return xerrors.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	return nil
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	query := `
		SELECT id, email, password_hash, full_name, role, created_at
		FROM identities
		WHERE email = $1
	`

	var id identity.Identity
	err := r.db.QueryRow(ctx, query, email).
		Scan(&id.ID, &id.Email, &id.PasswordHash, &id.FullName, &id.Role, &id.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &id, nil
}

func (r *IdentityRepository) FindByID(ctx context.Context, identityID int64) (*identity.Identity, error) {
	query := `
		SELECT id, email, password_hash, full_name, role, created_at
		FROM identities
		WHERE id = $1
	`

	var id identity.Identity
	err := r.db.QueryRow(ctx, query, identityID).
		Scan(&id.ID, &id.Email, &id.PasswordHash, &id.FullName, &id.Role, &id.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return &id, nil
}
