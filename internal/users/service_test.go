package users

import (
	"context"
	"testing"
	"time"

	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role enums.UserRole, createdAt time.Time) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString()[:8] + "@velora.test",
		PasswordHash: "$argon2id$v=19$m=8,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA",
		FullName:     "Test User",
		Role:         role,
		CreatedAt:    createdAt,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func TestListCustomersPaginates(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewAdminService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		ids = append(ids, seedUser(t, db, enums.UserRoleCustomer, base.Add(time.Duration(i)*time.Hour)))
	}
	seedUser(t, db, enums.UserRoleAdmin, base.Add(10*time.Hour))

	first, err := svc.ListCustomers(context.Background(), pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Users) != 2 {
		t.Fatalf("first page size = %d, want 2", len(first.Users))
	}
	if first.Users[0].ID != ids[2] || first.Users[1].ID != ids[1] {
		t.Fatalf("expected newest-first ordering, got %v then %v", first.Users[0].ID, first.Users[1].ID)
	}
	if first.NextCursor == "" {
		t.Fatal("expected a next cursor")
	}

	second, err := svc.ListCustomers(context.Background(), pagination.Params{Limit: 2, Cursor: first.NextCursor})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Users) != 1 || second.Users[0].ID != ids[0] {
		t.Fatalf("unexpected second page: %+v", second.Users)
	}
	if second.NextCursor != "" {
		t.Fatalf("expected empty cursor on last page, got %q", second.NextCursor)
	}
	for _, dto := range first.Users {
		if dto.Role != enums.UserRoleCustomer {
			t.Fatalf("admin account leaked into customer listing: %+v", dto)
		}
	}
}

func TestListCustomersRejectsBadCursor(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewAdminService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.ListCustomers(context.Background(), pagination.Params{Cursor: "not-a-cursor"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSetLockedFlipsFlag(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewAdminService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	admin := seedUser(t, db, enums.UserRoleAdmin, time.Now().UTC())
	customer := seedUser(t, db, enums.UserRoleCustomer, time.Now().UTC())

	if err := svc.SetLocked(context.Background(), admin, customer, true); err != nil {
		t.Fatalf("lock: %v", err)
	}
	var user models.User
	if err := db.First(&user, "id = ?", customer).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.IsLocked {
		t.Fatal("expected account to be locked")
	}

	// relocking is a noop, unlock reverses it
	if err := svc.SetLocked(context.Background(), admin, customer, true); err != nil {
		t.Fatalf("relock: %v", err)
	}
	if err := svc.SetLocked(context.Background(), admin, customer, false); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := db.First(&user, "id = ?", customer).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.IsLocked {
		t.Fatal("expected account to be unlocked")
	}
}

func TestSetLockedGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewAdminService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	admin := seedUser(t, db, enums.UserRoleAdmin, time.Now().UTC())
	otherAdmin := seedUser(t, db, enums.UserRoleAdmin, time.Now().UTC())

	err = svc.SetLocked(context.Background(), admin, admin, true)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("self-lock: unexpected error: %v", err)
	}

	err = svc.SetLocked(context.Background(), admin, otherAdmin, true)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("admin target: unexpected error: %v", err)
	}

	err = svc.SetLocked(context.Background(), admin, uuid.New(), true)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("missing target: unexpected error: %v", err)
	}
}
