package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"phoneotp/internal/utils"
)

type ProfileDirectory interface {
	AccountIDByPhone(ctx context.Context, phone string) (string, error)
}

type IdentityDirectory interface {
	EmailByAccountID(ctx context.Context, accountID string) (string, error)
}

// IdentityService turns a verified phone into the masked email of the
// account linked to it. Every call, successful or not, takes at least
// MinLatency so code failures and account failures look alike.
type IdentityService struct {
	OTP        *OTPService
	Profiles   ProfileDirectory
	Identities IdentityDirectory
	Logger     *zap.Logger
	// MinLatency is a floor, not a ceiling. A directory lookup slower than
	// MinLatency makes the success and NO_EMAIL answers slower than a code
	// failure, so it should sit above the directories' usual p99.
	MinLatency time.Duration
	Missing    []string
}

func NewIdentityService(otp *OTPService, profiles ProfileDirectory, identities IdentityDirectory, logger *zap.Logger, minLatency time.Duration, missing []string) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		OTP:        otp,
		Profiles:   profiles,
		Identities: identities,
		Logger:     logger,
		MinLatency: minLatency,
		Missing:    missing,
	}
}

// FindEmailByPhone verifies the code and returns the masked email. The code
// is consumed only once a masked email is in hand; every other failure
// leaves it usable until it expires.
func (s *IdentityService) FindEmailByPhone(ctx context.Context, rawPhone, rawCode string) (string, error) {
	defer s.pad(ctx, time.Now())

	if len(s.Missing) > 0 && utils.IsMobile(utils.Digits(rawPhone)) && utils.IsCode(utils.Digits(rawCode)) {
		return "", &Failure{Stage: StageEnv, Reason: ReasonServerError, Missing: s.Missing}
	}

	otp, err := s.OTP.Match(ctx, rawPhone, rawCode)
	if err != nil {
		return "", err
	}

	accountID, err := s.Profiles.AccountIDByPhone(ctx, otp.Phone)
	if err != nil {
		s.Logger.Error("profile lookup failed", zap.String("phone", otp.Phone), zap.Error(err))
		return "", fail(StageProfile, ReasonServerError, err)
	}
	if accountID == "" {
		return "", fail(StageProfile, ReasonNoProfile, nil)
	}

	email, err := s.Identities.EmailByAccountID(ctx, accountID)
	if err != nil {
		s.Logger.Warn("identity lookup failed", zap.String("account_id", accountID), zap.Error(err))
		f := fail(StageIdentity, ReasonNoEmail, err)
		f.Detail = ""
		return "", f
	}
	masked := utils.MaskEmail(email)
	if masked == "" {
		return "", fail(StageIdentity, ReasonNoEmail, nil)
	}

	s.OTP.Consume(ctx, otp)
	s.Logger.Info("email resolved by phone", zap.String("phone", otp.Phone), zap.String("account_id", accountID))
	return masked, nil
}

func (s *IdentityService) pad(ctx context.Context, start time.Time) {
	wait := s.MinLatency - time.Since(start)
	if wait <= 0 {
		return
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
