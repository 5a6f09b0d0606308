package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ngmtien/velora-backend/api/middleware"
	"github.com/ngmtien/velora-backend/internal/auth"
	"github.com/ngmtien/velora-backend/internal/cart"
	"github.com/ngmtien/velora-backend/internal/checkout"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/internal/products"
	"github.com/ngmtien/velora-backend/internal/reports"
	"github.com/ngmtien/velora-backend/internal/users"
	pkgAuth "github.com/ngmtien/velora-backend/pkg/auth"
	"github.com/ngmtien/velora-backend/pkg/config"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/pagination"
	"github.com/ngmtien/velora-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{}, nil
}

func (stubAuthService) StartRegistration(context.Context, auth.RegisterStartRequest) error {
	return nil
}

func (stubAuthService) CompleteRegistration(context.Context, auth.RegisterRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{}, nil
}

func (stubAuthService) StartPasswordReset(context.Context, auth.PasswordResetStartRequest) error {
	return nil
}

func (stubAuthService) CompletePasswordReset(context.Context, auth.PasswordResetRequest) error {
	return nil
}

type stubCartService struct{}

func (stubCartService) AddItem(context.Context, cart.Owner, uuid.UUID, int) error {
	return nil
}

func (stubCartService) SetQuantity(context.Context, cart.Owner, uuid.UUID, int) error {
	return nil
}

func (stubCartService) Remove(context.Context, cart.Owner, uuid.UUID) error {
	return nil
}

func (stubCartService) Clear(context.Context, cart.Owner) error {
	return nil
}

func (stubCartService) List(context.Context, cart.Owner) (*cart.View, error) {
	return &cart.View{}, nil
}

func (stubCartService) MergeOnLogin(context.Context, string, uuid.UUID) error {
	return nil
}

type stubProductsService struct{}

func (stubProductsService) List(context.Context, products.ListInput) (*products.Page, error) {
	return &products.Page{}, nil
}

func (stubProductsService) Get(context.Context, uuid.UUID) (*products.ProductDTO, error) {
	return &products.ProductDTO{}, nil
}

func (stubProductsService) GetVariant(context.Context, uuid.UUID) (*products.VariantDTO, error) {
	return &products.VariantDTO{}, nil
}

func (stubProductsService) Brands(context.Context) ([]products.BrandDTO, error) {
	return nil, nil
}

func (stubProductsService) Categories(context.Context) ([]products.CategoryDTO, error) {
	return nil, nil
}

func (stubProductsService) AdjustStock(context.Context, uuid.UUID, int) (*products.VariantDTO, error) {
	return &products.VariantDTO{}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) Execute(context.Context, checkout.Input) (*checkout.Result, error) {
	panic("unreachable in routing tests")
}

type stubOrdersService struct{}

func (stubOrdersService) GetOwn(context.Context, uuid.UUID, uuid.UUID) (*models.Order, error) {
	return &models.Order{}, nil
}

func (stubOrdersService) ListOwn(context.Context, uuid.UUID, pagination.Params) (*orders.Page, error) {
	return &orders.Page{}, nil
}

func (stubOrdersService) ListAdmin(context.Context, *enums.OrderStatus, pagination.Params) (*orders.Page, error) {
	return &orders.Page{}, nil
}

func (stubOrdersService) CancelOwn(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

func (stubOrdersService) AdminUpdateStatus(context.Context, orders.AdminUpdateStatusInput) error {
	return nil
}

type stubUsersService struct{}

func (stubUsersService) ListCustomers(context.Context, pagination.Params) (*users.Page, error) {
	return &users.Page{}, nil
}

func (stubUsersService) SetLocked(context.Context, uuid.UUID, uuid.UUID, bool) error {
	return nil
}

type stubReportsService struct{}

func (stubReportsService) SalesSummary(context.Context, reports.SummaryInput) (*reports.Summary, error) {
	return &reports.Summary{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(
		cfg,
		logg,
		stubPinger{},
		(*redis.Client)(nil),
		Services{
			Auth:     stubAuthService{},
			Cart:     stubCartService{},
			Products: stubProductsService{},
			Checkout: stubCheckoutService{},
			Orders:   stubOrdersService{},
			Users:    stubUsersService{},
			Reports:  stubReportsService{},
		},
	)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Email:  "user@velora.test",
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestOrdersRejectMissingToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersAcceptCustomerToken(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with customer token got %d", resp.Code)
	}
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	customer := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/", nil)
	customer.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleCustomer))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, customer)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer got %d", resp.Code)
	}

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders/", nil)
	admin.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, admin)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestAdminReportsRequireAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/reports/sales", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, enums.UserRoleAdmin))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin report got %d", resp.Code)
	}
}

func TestCartIssuesSessionCookie(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for anonymous cart got %d", resp.Code)
	}

	var found bool
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == middleware.CartSessionCookie {
			if _, err := uuid.Parse(cookie.Value); err != nil {
				t.Fatalf("session cookie is not a uuid: %q", cookie.Value)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("anonymous cart request must issue a session cookie")
	}
}

func TestCartRejectsInvalidToken(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token got %d", resp.Code)
	}
}

func TestPublicCatalogNeedsNoToken(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, path := range []string{"/api/v1/products/", "/api/v1/brands", "/api/v1/categories"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s got %d", path, resp.Code)
		}
	}
}

func TestCheckoutRequiresAuth(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous checkout got %d", resp.Code)
	}
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(testConfig())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for liveness got %d", resp.Code)
	}
	if resp.Header().Get("X-Velora-Env") != "test" {
		t.Fatalf("missing environment header")
	}
}
