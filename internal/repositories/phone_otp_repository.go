package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"phoneotp/internal/models"
)

type PhoneOTPRepository struct {
	DB *sql.DB
}

func NewPhoneOTPRepository(db *sql.DB) *PhoneOTPRepository {
	return &PhoneOTPRepository{DB: db}
}

// Create stores a new pending code, assigning an id when the caller left it empty.
func (r *PhoneOTPRepository) Create(ctx context.Context, otp *models.PhoneOTP) error {
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO phone_otps (id, phone, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.DB.ExecContext(ctx, q, otp.ID, otp.Phone, otp.Code, otp.CreatedAt, otp.ExpiresAt); err != nil {
		return fmt.Errorf("create phone otp: %w", err)
	}
	return nil
}

// ExistsSince reports whether any code was issued to phone at or after since.
func (r *PhoneOTPRepository) ExistsSince(ctx context.Context, phone string, since time.Time) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM phone_otps
			WHERE phone = $1 AND created_at >= $2
		)
	`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, q, phone, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("query recent phone otp: %w", err)
	}
	return exists, nil
}

// GetLatestByPhone returns the newest row for phone, or nil when there is none.
// Rows with equal created_at are ordered by id, matching the bolt store.
func (r *PhoneOTPRepository) GetLatestByPhone(ctx context.Context, phone string) (*models.PhoneOTP, error) {
	const q = `
		SELECT id, phone, code, created_at, expires_at
		FROM phone_otps
		WHERE phone = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	var otp models.PhoneOTP
	err := r.DB.QueryRowContext(ctx, q, phone).Scan(&otp.ID, &otp.Phone, &otp.Code, &otp.CreatedAt, &otp.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest phone otp: %w", err)
	}
	return &otp, nil
}

func (r *PhoneOTPRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM phone_otps WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete phone otp: %w", err)
	}
	return nil
}
