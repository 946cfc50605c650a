package postgresql

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"landscape-job-service/internal/entity"
)

// UserRepository reads the caller-side tables: landscaper profiles and roles.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) LandscaperByUserID(ctx context.Context, userID uuid.UUID) (*entity.Landscaper, error) {
	const q = `SELECT id, user_id FROM landscapers WHERE user_id = $1;`

	var l entity.Landscaper
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&l.ID, &l.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, mapPostgresError(err)
	}
	return &l, nil
}

// RoleByUserID returns ErrNotFound when the user has no role row.
func (r *UserRepository) RoleByUserID(ctx context.Context, userID uuid.UUID) (entity.Role, error) {
	const q = `SELECT role FROM user_roles WHERE user_id = $1;`

	var role string
	if err := r.pool.QueryRow(ctx, q, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", mapPostgresError(err)
	}
	return entity.Role(role), nil
}
