package controllers

import (
	"net/http"

	"github.com/jmucavele/pdv-backend/api/responses"
	productsvc "github.com/jmucavele/pdv-backend/internal/products"
	salesvc "github.com/jmucavele/pdv-backend/internal/sales"
	pkgerrors "github.com/jmucavele/pdv-backend/pkg/errors"
	"github.com/jmucavele/pdv-backend/pkg/logger"
)

const dashboardLowStockLimit = 10

// Dashboard returns the acting seller's day summary plus the products whose
// stock fell to or below their minimum.
func Dashboard(sales salesvc.Service, products productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sales == nil || products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dashboard services unavailable"))
			return
		}

		actor, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := sales.Dashboard(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lowStock, err := products.ListLowStock(r.Context(), dashboardLowStockLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{
			"summary":   summary,
			"low_stock": lowStock,
		})
	}
}
