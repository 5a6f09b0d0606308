package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultRange    = 30 * 24 * time.Hour
	defaultTopLimit = 5
	maxTopLimit     = 50
)

var cents = decimal.NewFromInt(100)

// SummaryInput bounds the reporting window. Zero values default to the
// last 30 days.
type SummaryInput struct {
	From     time.Time
	To       time.Time
	TopLimit int
}

// DailySales is revenue for one calendar day (UTC).
type DailySales struct {
	Date         string          `json:"date"`
	OrderCount   int             `json:"order_count"`
	RevenueCents int64           `json:"revenue_cents"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// VariantSales is one top-seller entry.
type VariantSales struct {
	VariantID    uuid.UUID       `json:"variant_id"`
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	UnitsSold    int             `json:"units_sold"`
	RevenueCents int64           `json:"revenue_cents"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// Summary is the admin sales report over [From, To).
type Summary struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	TotalOrders       int             `json:"total_orders"`
	TotalRevenueCents int64           `json:"total_revenue_cents"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Days              []DailySales    `json:"days"`
	TopVariants       []VariantSales  `json:"top_variants"`
}

// Service computes sales summaries over paid orders.
type Service interface {
	SalesSummary(ctx context.Context, input SummaryInput) (*Summary, error)
}

type service struct {
	repo Repository
}

// NewService wires the reporting service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) SalesSummary(ctx context.Context, input SummaryInput) (*Summary, error) {
	from, to, err := normalizeWindow(input.From, input.To)
	if err != nil {
		return nil, err
	}
	topLimit := input.TopLimit
	if topLimit <= 0 {
		topLimit = defaultTopLimit
	}
	if topLimit > maxTopLimit {
		topLimit = maxTopLimit
	}

	orders, err := s.repo.ListPaidOrders(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load paid orders")
	}

	summary := &Summary{
		From:              from,
		To:                to,
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
		Days:              []DailySales{},
		TopVariants:       []VariantSales{},
	}

	byDay := map[string]*DailySales{}
	for _, order := range orders {
		summary.TotalOrders++
		summary.TotalRevenueCents += int64(order.TotalCents)

		day := order.PlacedAt.UTC().Format("2006-01-02")
		entry, ok := byDay[day]
		if !ok {
			entry = &DailySales{Date: day}
			byDay[day] = entry
		}
		entry.OrderCount++
		entry.RevenueCents += int64(order.TotalCents)
	}
	for _, entry := range byDay {
		entry.Revenue = fromCents(entry.RevenueCents)
		summary.Days = append(summary.Days, *entry)
	}
	sort.Slice(summary.Days, func(i, j int) bool {
		return summary.Days[i].Date < summary.Days[j].Date
	})

	summary.TotalRevenue = fromCents(summary.TotalRevenueCents)
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(summary.TotalOrders))).
			Round(2)
	}

	rows, err := s.repo.TopVariants(ctx, from, to, topLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load top variants")
	}
	for _, row := range rows {
		summary.TopVariants = append(summary.TopVariants, VariantSales{
			VariantID:    row.VariantID,
			Name:         row.Name,
			SKU:          row.SKU,
			UnitsSold:    row.UnitsSold,
			RevenueCents: row.RevenueCents,
			Revenue:      fromCents(row.RevenueCents),
		})
	}

	return summary, nil
}

func normalizeWindow(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultRange)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "from must be before to")
	}
	return from.UTC(), to.UTC(), nil
}

func fromCents(value int64) decimal.Decimal {
	return decimal.NewFromInt(value).Div(cents)
}
