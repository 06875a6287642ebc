package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/wallfair/settlement/internal/domain"
)

// UserRepository reads users and maintains their settlement statistics.
// Users themselves are created by the account service.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByID: %w", err)
	}
	return &u, nil
}

// IncreaseAmountWon adds amount to the user's lifetime winnings.
func (r *UserRepository) IncreaseAmountWon(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET amount_won = amount_won + $1,
		    updated_at = now()
		WHERE id = $2`, amount, id)
	if err != nil {
		return fmt.Errorf("user_repo.IncreaseAmountWon: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// RecordStake extends the user's max-stake streak when maxStake is true and
// resets it otherwise. Returns the new streak length.
func (r *UserRepository) RecordStake(ctx context.Context, id uuid.UUID, maxStake bool) (int, error) {
	var streak int
	err := r.db.GetContext(ctx, &streak, `
		UPDATE users
		SET max_stake_streak = CASE WHEN $1 THEN max_stake_streak + 1 ELSE 0 END,
		    updated_at       = now()
		WHERE id = $2
		RETURNING max_stake_streak`, maxStake, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrUserNotFound
		}
		return 0, fmt.Errorf("user_repo.RecordStake: %w", err)
	}
	return streak, nil
}

// ClaimStreakAward zeroes the user's max-stake streak if it has reached
// length. Only one of several concurrent claims on the same streak succeeds.
func (r *UserRepository) ClaimStreakAward(ctx context.Context, id uuid.UUID, length int) (bool, error) {
	var claimed uuid.UUID
	err := r.db.GetContext(ctx, &claimed, `
		UPDATE users
		SET max_stake_streak = 0,
		    updated_at       = now()
		WHERE id = $1 AND max_stake_streak >= $2
		RETURNING id`, id, length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("user_repo.ClaimStreakAward: %w", err)
	}
	return true, nil
}
