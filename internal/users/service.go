package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Page is one cursor-paginated slice of customer accounts.
type Page struct {
	Users      []UserDTO
	NextCursor string
}

// AdminService covers the back-office account operations.
type AdminService interface {
	ListCustomers(ctx context.Context, params pagination.Params) (*Page, error)
	SetLocked(ctx context.Context, actorID, userID uuid.UUID, locked bool) error
}

type adminService struct {
	repo *Repository
}

// NewAdminService builds the admin account service.
func NewAdminService(repo *Repository) (AdminService, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &adminService{repo: repo}, nil
}

func (s *adminService) ListCustomers(ctx context.Context, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	users, err := s.repo.ListCustomers(ctx, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}

	page := &Page{}
	for _, user := range users {
		page.Users = append(page.Users, FromModel(&user))
	}
	if len(page.Users) > limit {
		page.Users = page.Users[:limit]
		last := page.Users[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// SetLocked flips a customer's lock flag. Locked accounts fail login
// immediately; admins cannot lock themselves or other admins.
func (s *adminService) SetLocked(ctx context.Context, actorID, userID uuid.UUID, locked bool) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if actorID == userID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot lock your own account")
	}

	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if user.Role == enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin accounts cannot be locked")
	}
	if user.IsLocked == locked {
		return nil
	}
	if err := s.repo.SetLocked(ctx, userID, locked); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update lock flag")
	}
	return nil
}
