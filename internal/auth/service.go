package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ngmtien/velora-backend/internal/notifications"
	"github.com/ngmtien/velora-backend/internal/users"
	pkgAuth "github.com/ngmtien/velora-backend/pkg/auth"
	"github.com/ngmtien/velora-backend/pkg/config"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const invalidCredentialsMessage = "invalid credentials"

// Service defines the behavior needed by the auth controllers.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	StartRegistration(ctx context.Context, req RegisterStartRequest) error
	CompleteRegistration(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	StartPasswordReset(ctx context.Context, req PasswordResetStartRequest) error
	CompletePasswordReset(ctx context.Context, req PasswordResetRequest) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartMerger interface {
	MergeOnLogin(ctx context.Context, sessionToken string, userID uuid.UUID) error
}

type otpStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	OTPKey(flow, email string) string
}

type service struct {
	users       *users.Repository
	cart        cartMerger
	otp         otpStore
	mailer      notifications.Sender
	tx          txRunner
	logg        *logger.Logger
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	otpCfg      config.OTPConfig
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo          *users.Repository
	Cart              cartMerger
	OTPStore          otpStore
	Mailer            notifications.Sender
	TransactionRunner txRunner
	Logger            *logger.Logger
	JWTConfig         config.JWTConfig
	PasswordConfig    config.PasswordConfig
	OTPConfig         config.OTPConfig
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart service is required")
	}
	if params.OTPStore == nil {
		return nil, fmt.Errorf("otp store is required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:       params.UserRepo,
		cart:        params.Cart,
		otp:         params.OTPStore,
		mailer:      params.Mailer,
		tx:          params.TransactionRunner,
		logg:        params.Logger,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		otpCfg:      params.OTPConfig,
	}, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	now, err := s.recordLogin(ctx, user)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.mintToken(user, now)
	if err != nil {
		return nil, err
	}

	s.mergeSessionCart(ctx, req.SessionToken, user.ID)

	return &LoginResponse{
		AccessToken: accessToken,
		User:        users.FromModel(user),
	}, nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	if user.IsLocked {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "account is locked")
	}
	return user, nil
}

func (s *service) recordLogin(ctx context.Context, user *models.User) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	return now, nil
}

func (s *service) mintToken(user *models.User, now time.Time) (string, error) {
	payload := pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    uuid.NewString(),
	}
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

// mergeSessionCart folds the anonymous cart into the account. A merge
// failure must not fail the login itself.
func (s *service) mergeSessionCart(ctx context.Context, sessionToken string, userID uuid.UUID) {
	if sessionToken == "" {
		return
	}
	if err := s.cart.MergeOnLogin(ctx, sessionToken, userID); err != nil {
		logCtx := s.logg.WithUserID(ctx, userID.String())
		logCtx = s.logg.WithField(logCtx, "error", err.Error())
		s.logg.Warn(logCtx, "session cart merge failed")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
