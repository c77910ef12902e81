package cart

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func lineTotal(item models.CartItem) decimal.Decimal {
	return item.UnitPrice().Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
}

// recompute rewrites TotalItems and TotalAmount from the current lines.
func recompute(cart *models.Cart) {
	total := decimal.Zero
	count := 0
	for _, item := range cart.Items {
		count += item.Quantity
		total = total.Add(lineTotal(item))
	}
	cart.TotalItems = count
	cart.TotalAmount = total.Round(2)
}

func findLine(cart *models.Cart, item models.CartItem) int {
	for i := range cart.Items {
		if cart.Items[i].SameLine(item.ProductID, item.VariantID) {
			return i
		}
	}
	return -1
}
