package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"phoneotp/internal/models"
	"phoneotp/internal/repositories"
	"phoneotp/internal/utils"
)

const (
	defaultCodeTTL  = 3 * time.Minute
	defaultCooldown = 30 * time.Second
)

// OTPStore is the pending-code table. GetLatestByPhone returns (nil, nil)
// when the phone has no rows.
type OTPStore interface {
	Create(ctx context.Context, otp *models.PhoneOTP) error
	ExistsSince(ctx context.Context, phone string, since time.Time) (bool, error)
	GetLatestByPhone(ctx context.Context, phone string) (*models.PhoneOTP, error)
	Delete(ctx context.Context, id string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (*utils.SendSMSResponse, error)
}

type OTPOptions struct {
	TTL          time.Duration
	Cooldown     time.Duration
	AllowSandbox bool
	Brand        string
	// Missing* are the absent config variables, reported as ENV_MISSING.
	MissingSend  []string
	MissingStore []string
}

// OTPService issues and verifies phone codes. It keeps no state of its own:
// the cooldown and the latest code are always read from Store.
//
// Two concurrent Send calls for one phone can both pass the cooldown check
// before either insert lands. Both rows then exist and only the newer one
// verifies. No lock is taken for this.
type OTPService struct {
	Store  OTPStore
	Sender SMSSender
	Logger *zap.Logger
	Now    func() time.Time
	Opts   OTPOptions
}

type SendResult struct {
	ExpiresAt time.Time
	Sandbox   bool
	Code      string // set only in sandbox mode
}

func NewOTPService(store OTPStore, sender SMSSender, logger *zap.Logger, opts OTPOptions) *OTPService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultCodeTTL
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultCooldown
	}
	return &OTPService{
		Store:  store,
		Sender: sender,
		Logger: logger,
		Now:    time.Now,
		Opts:   opts,
	}
}

// Send issues a fresh code for rawPhone and delivers it by SMS. A code that
// was stored stays stored even when delivery fails.
func (s *OTPService) Send(ctx context.Context, rawPhone string, sandbox bool) (*SendResult, error) {
	phone := utils.Digits(rawPhone)
	if !utils.IsMobile(phone) {
		return nil, fail(StageInput, ReasonInvalidPhone, nil)
	}
	if len(s.Opts.MissingSend) > 0 {
		return nil, &Failure{Stage: StageEnv, Reason: ReasonEnvMissing, Missing: s.Opts.MissingSend}
	}

	now := s.Now()
	recent, err := s.Store.ExistsSince(ctx, phone, now.Add(-s.Opts.Cooldown))
	if err != nil {
		s.Logger.Error("otp cooldown query failed", zap.String("phone", phone), zap.Error(err))
		return nil, fail(StageRateQuery, ReasonRateQueryFail, err)
	}
	if recent {
		f := fail(StageRateLimit, ReasonTooFrequent, nil)
		f.RetryAfter = int(s.Opts.Cooldown / time.Second)
		return nil, f
	}

	code, err := utils.NewCode()
	if err != nil {
		return nil, fail(StageFatal, ReasonFatal, err)
	}
	otp := &models.PhoneOTP{
		Phone:     phone,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.Opts.TTL),
	}
	if err := s.Store.Create(ctx, otp); err != nil {
		s.Logger.Error("otp insert failed", zap.String("phone", phone), zap.String("sqlstate", repositories.SQLState(err)), zap.Error(err))
		f := fail(StageDBInsert, ReasonDBInsert, err)
		if state := repositories.SQLState(err); state != "" {
			f.Detail = fmt.Sprintf("sqlstate %s: %v", state, err)
		}
		return nil, f
	}

	if sandbox {
		if s.Opts.AllowSandbox {
			s.Logger.Warn("otp sandbox issue, delivery skipped", zap.String("phone", phone))
			return &SendResult{ExpiresAt: otp.ExpiresAt, Sandbox: true, Code: code}, nil
		}
		s.Logger.Warn("otp sandbox requested but not allowed, delivering", zap.String("phone", phone))
	}

	resp, err := s.Sender.SendSMS(ctx, phone, s.messageText(code))
	if err != nil {
		reason := providerReason(err)
		s.Logger.Error("otp delivery failed", zap.String("phone", phone), zap.String("reason", reason), zap.Error(err))
		return nil, fail(StageSolapi, reason, err)
	}

	s.Logger.Info("otp issued", zap.String("phone", phone), zap.String("message_id", resp.MessageID), zap.Time("expires_at", otp.ExpiresAt))
	return &SendResult{ExpiresAt: otp.ExpiresAt}, nil
}

func (s *OTPService) messageText(code string) string {
	brand := s.Opts.Brand
	if brand == "" {
		brand = "StudySnap"
	}
	return fmt.Sprintf("[%s] 인증번호 %s (%d분 이내 입력)", brand, code, int(s.Opts.TTL/time.Minute))
}

// providerReason maps Solapi error codes onto the client taxonomy.
func providerReason(err error) string {
	var apiErr *utils.SolapiError
	if !errors.As(err, &apiErr) {
		return ReasonSolapiError
	}
	switch code := apiErr.ErrorCode; {
	case strings.Contains(code, "InvalidMessage"):
		return ReasonMsgInvalid
	case strings.Contains(code, "InvalidNumber"):
		return ReasonNumberInvalid
	case strings.Contains(code, "DailyLimit"):
		return ReasonDailyLimit
	case strings.Contains(code, "RateLimit"):
		return ReasonSolapiRate
	default:
		return ReasonSolapiError
	}
}

// Verify checks rawCode against the newest code for rawPhone and consumes it
// on a match. Nothing else happens: no session is created.
func (s *OTPService) Verify(ctx context.Context, rawPhone, rawCode string) error {
	otp, err := s.Match(ctx, rawPhone, rawCode)
	if err != nil {
		return err
	}
	s.Consume(ctx, otp)
	s.Logger.Info("otp verified", zap.String("phone", otp.Phone))
	return nil
}

// Match runs the shared validation and matching rules and returns the
// matching row. The row is left in place.
func (s *OTPService) Match(ctx context.Context, rawPhone, rawCode string) (*models.PhoneOTP, error) {
	phone, code := utils.Digits(rawPhone), utils.Digits(rawCode)
	if !utils.IsMobile(phone) || !utils.IsCode(code) {
		return nil, fail(StageInput, ReasonInvalidInput, nil)
	}
	if len(s.Opts.MissingStore) > 0 {
		return nil, &Failure{Stage: StageEnv, Reason: ReasonServerError, Missing: s.Opts.MissingStore}
	}

	otp, err := s.Store.GetLatestByPhone(ctx, phone)
	if err != nil {
		s.Logger.Error("otp lookup failed", zap.String("phone", phone), zap.Error(err))
		return nil, fail(StageDB, ReasonServerError, err)
	}
	if otp == nil {
		return nil, fail(StageVerify, ReasonNotFound, nil)
	}
	if otp.ExpiredAt(s.Now()) {
		return nil, fail(StageVerify, ReasonExpired, nil)
	}
	if subtle.ConstantTimeCompare([]byte(otp.Code), []byte(code)) != 1 {
		s.Logger.Info("otp wrong code", zap.String("phone", phone))
		return nil, fail(StageVerify, ReasonWrongCode, nil)
	}
	return otp, nil
}

// Consume deletes a matched row. It is best effort: a delete error is logged
// and the match still counts.
func (s *OTPService) Consume(ctx context.Context, otp *models.PhoneOTP) {
	if err := s.Store.Delete(ctx, otp.ID); err != nil {
		s.Logger.Warn("otp consume delete failed", zap.String("phone", otp.Phone), zap.String("id", otp.ID), zap.Error(err))
	}
}
