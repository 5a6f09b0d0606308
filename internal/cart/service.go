package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Owner identifies whose cart an operation targets: an authenticated user
// or an anonymous cart-session token. Exactly one side is set.
type Owner struct {
	UserID       uuid.UUID
	SessionToken string
}

// ForUser builds an authenticated cart owner.
func ForUser(userID uuid.UUID) Owner {
	return Owner{UserID: userID}
}

// ForSession builds an anonymous cart owner.
func ForSession(token string) Owner {
	return Owner{SessionToken: token}
}

func (o Owner) authenticated() bool {
	return o.UserID != uuid.Nil
}

func (o Owner) validate() error {
	if o.UserID == uuid.Nil && o.SessionToken == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}
	if o.UserID != uuid.Nil && o.SessionToken != "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart owner must be user or session, not both")
	}
	return nil
}

// Line is one hydrated cart entry priced at the variant's current
// effective price.
type Line struct {
	VariantID      uuid.UUID `json:"variant_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int       `json:"line_total_cents"`
}

// View is the hydrated cart returned to callers.
type View struct {
	Items         []Line `json:"items"`
	SubtotalCents int    `json:"subtotal_cents"`
	ItemCount     int    `json:"item_count"`
}

// StockDetail names the line that could not fit the requested quantity.
type StockDetail struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Service exposes cart operations over both backings.
type Service interface {
	AddItem(ctx context.Context, owner Owner, variantID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, owner Owner, variantID uuid.UUID, qty int) error
	Remove(ctx context.Context, owner Owner, variantID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
	List(ctx context.Context, owner Owner) (*View, error)
	MergeOnLogin(ctx context.Context, sessionToken string, userID uuid.UUID) error
}

type service struct {
	repo     Repository
	sessions *SessionStore
	variants inventory.Repository
	tx       txRunner
}

// NewService builds a cart service backed by the persistent repository and
// the Redis session store.
func NewService(repo Repository, sessions *SessionStore, variants inventory.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, sessions: sessions, variants: variants, tx: tx}, nil
}

// AddItem adds qty to the owner's line for the variant, creating the line
// when absent. The combined quantity is validated against current stock;
// a shortage leaves the line unchanged.
func (s *service) AddItem(ctx context.Context, owner Owner, variantID uuid.UUID, qty int) error {
	if err := owner.validate(); err != nil {
		return err
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	variant, err := s.loadSellableVariant(ctx, variantID)
	if err != nil {
		return err
	}

	if owner.authenticated() {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			existing, err := repo.FindByUserAndVariant(ctx, owner.UserID, variantID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
			}

			current := 0
			if existing != nil {
				current = existing.Quantity
			}
			if err := checkStock(variant, current+qty); err != nil {
				return err
			}

			if existing != nil {
				existing.Quantity = current + qty
				return repo.Save(ctx, existing)
			}
			return repo.Save(ctx, &models.CartItem{
				UserID:    owner.UserID,
				VariantID: variantID,
				Quantity:  qty,
			})
		})
	}

	lines, err := s.sessions.Load(ctx, owner.SessionToken)
	if err != nil {
		return err
	}
	if err := checkStock(variant, lines[variantID]+qty); err != nil {
		return err
	}
	lines[variantID] += qty
	return s.sessions.Save(ctx, owner.SessionToken, lines)
}

// SetQuantity replaces the line's quantity. Zero is rejected; use Remove.
func (s *service) SetQuantity(ctx context.Context, owner Owner, variantID uuid.UUID, qty int) error {
	if err := owner.validate(); err != nil {
		return err
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	variant, err := s.loadSellableVariant(ctx, variantID)
	if err != nil {
		return err
	}
	if err := checkStock(variant, qty); err != nil {
		return err
	}

	if owner.authenticated() {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			existing, err := repo.FindByUserAndVariant(ctx, owner.UserID, variantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
			}
			existing.Quantity = qty
			return repo.Save(ctx, existing)
		})
	}

	lines, err := s.sessions.Load(ctx, owner.SessionToken)
	if err != nil {
		return err
	}
	if _, ok := lines[variantID]; !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
	}
	lines[variantID] = qty
	return s.sessions.Save(ctx, owner.SessionToken, lines)
}

func (s *service) Remove(ctx context.Context, owner Owner, variantID uuid.UUID) error {
	if err := owner.validate(); err != nil {
		return err
	}
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}

	if owner.authenticated() {
		return s.repo.Delete(ctx, owner.UserID, variantID)
	}

	lines, err := s.sessions.Load(ctx, owner.SessionToken)
	if err != nil {
		return err
	}
	delete(lines, variantID)
	return s.sessions.Save(ctx, owner.SessionToken, lines)
}

func (s *service) Clear(ctx context.Context, owner Owner) error {
	if err := owner.validate(); err != nil {
		return err
	}
	if owner.authenticated() {
		return s.repo.DeleteAllForUser(ctx, owner.UserID)
	}
	return s.sessions.Delete(ctx, owner.SessionToken)
}

// List hydrates the cart with current variant names and effective prices.
// Variants that disappeared from the catalog are skipped rather than
// failing the whole view.
func (s *service) List(ctx context.Context, owner Owner) (*View, error) {
	if err := owner.validate(); err != nil {
		return nil, err
	}

	if owner.authenticated() {
		items, err := s.repo.ListByUser(ctx, owner.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart")
		}
		view := &View{Items: []Line{}}
		for _, item := range items {
			if item.Variant == nil {
				continue
			}
			view.append(buildLine(*item.Variant, item.Quantity))
		}
		return view, nil
	}

	lines, err := s.sessions.Load(ctx, owner.SessionToken)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	variants, err := s.variants.FindVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart variants")
	}

	view := &View{Items: []Line{}}
	for _, variant := range variants {
		view.append(buildLine(variant, lines[variant.ID]))
	}
	sort.Slice(view.Items, func(i, j int) bool {
		return view.Items[i].VariantID.String() < view.Items[j].VariantID.String()
	})
	return view, nil
}

// MergeOnLogin folds the anonymous session cart into the user's persistent
// cart, summing quantities per variant and capping the result at current
// stock. The session key is deleted only after the merge commits so a
// failed login never loses the anonymous cart.
func (s *service) MergeOnLogin(ctx context.Context, sessionToken string, userID uuid.UUID) error {
	if sessionToken == "" {
		return nil
	}
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	lines, err := s.sessions.Load(ctx, sessionToken)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return s.sessions.Delete(ctx, sessionToken)
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// stock caps come from the same tx the merged lines commit in
		variants := s.variants.WithTx(tx)
		for _, variantID := range ids {
			variant, err := variants.FindVariant(ctx, variantID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
			}
			if !variant.IsActive {
				continue
			}

			existing, err := repo.FindByUserAndVariant(ctx, userID, variantID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
			}

			target := lines[variantID]
			if existing != nil {
				target += existing.Quantity
			}
			if target > variant.StockQuantity {
				target = variant.StockQuantity
			}
			if target <= 0 {
				continue
			}

			if existing != nil {
				existing.Quantity = target
				if err := repo.Save(ctx, existing); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save merged line")
				}
				continue
			}
			item := &models.CartItem{UserID: userID, VariantID: variantID, Quantity: target}
			if err := repo.Save(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create merged line")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return s.sessions.Delete(ctx, sessionToken)
}

func (s *service) loadSellableVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	variant, err := s.variants.FindVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if !variant.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product variant is not available")
	}
	return variant, nil
}

func checkStock(variant *models.ProductVariant, requested int) error {
	if requested > variant.StockQuantity {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(StockDetail{
				VariantID: variant.ID,
				Requested: requested,
				Available: variant.StockQuantity,
			})
	}
	return nil
}

func buildLine(variant models.ProductVariant, qty int) Line {
	unit := variant.EffectivePriceCents()
	return Line{
		VariantID:      variant.ID,
		Name:           variant.Name,
		SKU:            variant.SKU,
		UnitPriceCents: unit,
		Quantity:       qty,
		LineTotalCents: unit * qty,
	}
}

func (v *View) append(line Line) {
	v.Items = append(v.Items, line)
	v.SubtotalCents += line.LineTotalCents
	v.ItemCount += line.Quantity
}
