// handlers/summary_handler.go
package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kimtee92/PropMan/models"
	"github.com/kimtee92/PropMan/utils"
)

type categoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Fields   int             `json:"fields"`
}

type portfolioSummary struct {
	PortfolioID string          `json:"portfolioId"`
	Properties  int             `json:"properties"`
	Categories  []categoryTotal `json:"categories"`
	NetPosition decimal.Decimal `json:"netPosition"`
}

// PortfolioSummary aggregates approved financial fields across the
// portfolio's properties into exact per-category totals. Expenses
// subtract from the net position; everything else adds.
func PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentUser(r)
	if !ok {
		unauthenticated(w)
		return
	}
	portfolio, _, ok := loadPortfolio(w, r, actor, "id")
	if !ok {
		return
	}

	properties, err := appStore.Properties().ListByPortfolio(r.Context(), portfolio.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch properties")
		return
	}

	totals := map[string]*categoryTotal{}
	for _, cat := range []string{models.CategoryValue, models.CategoryRevenue, models.CategoryExpense, models.CategoryAsset} {
		totals[cat] = &categoryTotal{Category: cat, Total: decimal.Zero}
	}

	for _, property := range properties {
		fields, err := appStore.Fields().ListByProperty(r.Context(), property.ID)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to fetch fields")
			return
		}
		for _, field := range fields {
			if field.Status != models.StatusApproved {
				continue
			}
			t, ok := totals[field.Category]
			if !ok {
				continue
			}
			amount, ok := fieldAmount(field.Value)
			if !ok {
				continue
			}
			t.Total = t.Total.Add(amount)
			t.Fields++
		}
	}

	net := decimal.Zero
	out := portfolioSummary{PortfolioID: portfolio.ID.Hex(), Properties: len(properties)}
	for _, cat := range []string{models.CategoryValue, models.CategoryRevenue, models.CategoryExpense, models.CategoryAsset} {
		t := totals[cat]
		out.Categories = append(out.Categories, *t)
		if cat == models.CategoryExpense {
			net = net.Sub(t.Total)
		} else {
			net = net.Add(t.Total)
		}
	}
	out.NetPosition = net

	utils.RespondWithJSON(w, http.StatusOK, out)
}

// fieldAmount coerces a stored field value into a decimal. Field values
// arrive as JSON numbers or numeric strings; anything else is skipped.
func fieldAmount(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
