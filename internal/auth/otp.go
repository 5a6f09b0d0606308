package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ngmtien/velora-backend/internal/notifications"
	"github.com/ngmtien/velora-backend/internal/users"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// StartRegistration emails a one-time code the visitor must echo back to
// create an account. At most one pending code per email and flow; a new
// request overwrites the previous code.
func (s *service) StartRegistration(ctx context.Context, req RegisterStartRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	return s.issueCode(ctx, notifications.FlowRegister, email)
}

// CompleteRegistration verifies the emailed code, creates the account and
// logs the new customer in.
func (s *service) CompleteRegistration(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := s.verifyCode(ctx, notifications.FlowRegister, email, req.Code); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	created, err := s.createCustomer(ctx, email, passwordHash, req)
	if err != nil {
		return nil, err
	}
	s.discardCode(ctx, notifications.FlowRegister, email)

	now, err := s.recordLogin(ctx, created)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.mintToken(created, now)
	if err != nil {
		return nil, err
	}
	s.mergeSessionCart(ctx, req.SessionToken, created.ID)

	return &LoginResponse{
		AccessToken: accessToken,
		User:        users.FromModel(created),
	}, nil
}

// StartPasswordReset emails a reset code. An unknown email is reported as
// success so the endpoint cannot be used to probe for accounts.
func (s *service) StartPasswordReset(ctx context.Context, req PasswordResetStartRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Info(s.logg.WithField(ctx, "flow", notifications.FlowPasswordReset), "reset requested for unknown email")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	return s.issueCode(ctx, notifications.FlowPasswordReset, email)
}

// CompletePasswordReset verifies the code and replaces the password hash.
func (s *service) CompletePasswordReset(ctx context.Context, req PasswordResetRequest) error {
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := s.verifyCode(ctx, notifications.FlowPasswordReset, email, req.Code); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	passwordHash, err := security.HashPassword(req.NewPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, passwordHash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	s.discardCode(ctx, notifications.FlowPasswordReset, email)
	return nil
}

func (s *service) issueCode(ctx context.Context, flow, email string) error {
	length := s.otpCfg.Length
	if length <= 0 {
		length = 6
	}
	ttl := s.otpCfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	code, err := security.GenerateOTP(length)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate code")
	}
	if err := s.otp.Set(ctx, s.otp.OTPKey(flow, email), code, ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store code")
	}
	if err := s.mailer.Send(ctx, notifications.NewOTPMessage(email, flow, code, ttl)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send code email")
	}
	return nil
}

func (s *service) verifyCode(ctx context.Context, flow, email, submitted string) error {
	stored, err := s.otp.Get(ctx, s.otp.OTPKey(flow, email))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "code expired or not requested")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load code")
	}
	if !security.VerifyOTP(submitted, stored) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid code")
	}
	return nil
}

// discardCode removes a consumed code; the TTL covers any failure here.
func (s *service) discardCode(ctx context.Context, flow, email string) {
	if err := s.otp.Del(ctx, s.otp.OTPKey(flow, email)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "flow", flow), "failed to discard used code")
	}
}

func (s *service) createCustomer(ctx context.Context, email, passwordHash string, req RegisterRequest) (*models.User, error) {
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FullName:     req.FullName,
		Phone:        req.Phone,
		Address:      req.Address,
		Role:         enums.UserRoleCustomer,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		if _, err := repo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}
		if err := repo.Create(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
