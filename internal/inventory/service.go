package inventory

import (
	"context"
	"fmt"
	"sort"

	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Line is one variant/quantity pair to reserve or release.
type Line struct {
	VariantID uuid.UUID
	Quantity  int
}

// ShortageDetail reports the variant that blocked a reservation.
type ShortageDetail struct {
	VariantID uuid.UUID `json:"variant_id"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Service reserves and releases stock. Reserve and Release run inside the
// caller's transaction so the stock movement commits or rolls back together
// with the order change that caused it.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error
	Release(ctx context.Context, tx *gorm.DB, lines []Line) error
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService wires an inventory service with the provided repository.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

// Reserve decrements stock for every line or fails the whole batch. A
// shortage on any line returns CodeInsufficientStock and the caller's
// transaction rollback undoes the decrements already applied. Quantities
// are never clamped down to what is left.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range merged {
		ok, err := repo.DecrementIfAvailable(ctx, line.VariantID, line.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if ok {
			continue
		}

		variant, err := repo.FindVariant(ctx, line.VariantID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
					WithDetails(ShortageDetail{VariantID: line.VariantID, Requested: line.Quantity})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(ShortageDetail{
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: variant.StockQuantity,
			})
	}
	return nil
}

// Release returns previously reserved stock. A missing variant is not an
// error here: the product may have been deleted while the order was open,
// and there is no row to return the stock to.
func (s *service) Release(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}
	merged, err := mergeLines(lines)
	if err != nil {
		return err
	}

	repo := s.repo.WithTx(tx)
	for _, line := range merged {
		if _, err := repo.Increment(ctx, line.VariantID, line.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment stock")
		}
	}
	return nil
}

// AdjustStock applies an admin-initiated delta and returns the new level.
// Negative deltas go through the same guarded update as reservations so
// stock can never be driven below zero.
func (s *service) AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) (int, error) {
	if variantID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if delta == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	var newLevel int
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		var ok bool
		var err error
		if delta > 0 {
			ok, err = repo.Increment(ctx, variantID, delta)
		} else {
			ok, err = repo.DecrementIfAvailable(ctx, variantID, -delta)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust stock")
		}
		if !ok {
			variant, ferr := repo.FindVariant(ctx, variantID)
			if ferr != nil {
				if ferr == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load variant stock")
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "adjustment would drive stock negative").
				WithDetails(ShortageDetail{
					VariantID: variantID,
					Requested: -delta,
					Available: variant.StockQuantity,
				})
		}

		variant, err := repo.FindVariant(ctx, variantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload variant stock")
		}
		newLevel = variant.StockQuantity
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newLevel, nil
}

// mergeLines folds duplicate variant ids into one line and validates
// quantities. The output order is deterministic so concurrent reservations
// touching the same variants lock rows in the same order.
func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}
	byVariant := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.VariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		byVariant[line.VariantID] += line.Quantity
	}

	merged := make([]Line, 0, len(byVariant))
	for id, qty := range byVariant {
		merged = append(merged, Line{VariantID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].VariantID.String() < merged[j].VariantID.String()
	})
	return merged, nil
}
