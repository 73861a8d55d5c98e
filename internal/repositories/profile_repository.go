package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProfileRepository reads the profiles table. It never writes.
type ProfileRepository struct {
	DB *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// AccountIDByPhone returns the profile id linked to phone, or "" when none is.
func (r *ProfileRepository) AccountIDByPhone(ctx context.Context, phone string) (string, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM profiles WHERE phone = $1 LIMIT 1`, phone).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile by phone: %w", err)
	}
	return id, nil
}
