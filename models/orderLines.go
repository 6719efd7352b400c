package models

import (
	"time"

	"bitbucket.org/mmdatafocus/stockflow_backend/utils"
	"github.com/shopspring/decimal"
)

type CustomerOrderLine struct {
	ID              int             `gorm:"primaryKey" json:"id"`
	CustomerOrderId int             `gorm:"not null;uniqueIndex:idx_order_product" json:"customerOrderId"`
	ProductId       *int            `gorm:"uniqueIndex:idx_order_product;constraint:OnDelete:SET NULL" json:"productId"`
	Product         *Product        `json:"product,omitempty"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unitPrice"`
	LineDiscount    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"lineDiscount"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (l *CustomerOrderLine) LineTotal() decimal.Decimal {
	return utils.CalculateLineTotal(l.Quantity, l.UnitPrice, l.LineDiscount)
}

// NewCustomerOrderLine is raw caller input. A nil UnitPrice means "use the
// product's current sale price"; the order constructor resolves it before
// aggregation.
type NewCustomerOrderLine struct {
	ProductId    int              `json:"productId"`
	Quantity     int              `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unitPrice"`
	LineDiscount decimal.Decimal  `json:"lineDiscount"`
}

// AggregatedLine is the canonical form persisted and debited: one line per
// product.
type AggregatedLine struct {
	ProductId    int
	Quantity     int
	UnitPrice    decimal.Decimal
	LineDiscount decimal.Decimal
}

func (l *AggregatedLine) LineTotal() decimal.Decimal {
	return utils.CalculateLineTotal(l.Quantity, l.UnitPrice, l.LineDiscount)
}

var decimalHundred = decimal.NewFromInt(100)

// AggregateOrderLines validates every raw line, then merges duplicates of
// the same product: quantities add up, while unit price and discount stay
// those of the first occurrence. Input order is preserved. Validation runs
// on all lines before any merging, so a bad duplicate still fails the call.
func AggregateOrderLines(lines []NewCustomerOrderLine) ([]AggregatedLine, error) {
	if len(lines) == 0 {
		return nil, NewValidationError("order must contain at least one line")
	}

	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, NewValidationError("line quantity must be at least 1, got %d (product %d)", line.Quantity, line.ProductId)
		}
		if line.UnitPrice == nil {
			return nil, NewValidationError("line unit price is required (product %d)", line.ProductId)
		}
		if line.UnitPrice.IsNegative() {
			return nil, NewValidationError("line unit price must not be negative (product %d)", line.ProductId)
		}
		if line.LineDiscount.IsNegative() || line.LineDiscount.GreaterThan(decimalHundred) {
			return nil, NewValidationError("line discount must be between 0 and 100 (product %d)", line.ProductId)
		}
	}

	index := make(map[int]int, len(lines))
	var aggregated []AggregatedLine
	for _, line := range lines {
		if pos, seen := index[line.ProductId]; seen {
			aggregated[pos].Quantity += line.Quantity
			continue
		}
		index[line.ProductId] = len(aggregated)
		aggregated = append(aggregated, AggregatedLine{
			ProductId:    line.ProductId,
			Quantity:     line.Quantity,
			UnitPrice:    *line.UnitPrice,
			LineDiscount: line.LineDiscount,
		})
	}
	return aggregated, nil
}
