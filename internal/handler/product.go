package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/gdvshop/backoffice/internal/domain/catalog"
	"github.com/gdvshop/backoffice/internal/domain/pricing"
)

type productView struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	WeightKg      float64         `json:"weightKg"`
	Price         decimal.Decimal `json:"price"`
	PricePro      decimal.Decimal `json:"pricePro"`
	StandardTiers pricing.Table   `json:"standardTiers"`
	ProTiers      pricing.Table   `json:"proTiers"`
}

func viewProduct(p *catalog.Product) productView {
	return productView{
		ID:            p.ID,
		Name:          p.Name,
		WeightKg:      p.WeightKg,
		Price:         p.Pricing.Price,
		PricePro:      p.Pricing.PricePro,
		StandardTiers: p.Pricing.StandardTiers,
		ProTiers:      p.Pricing.ProTiers,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]productView, len(items))
	for i := range items {
		views[i] = viewProduct(&items[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": views})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewProduct(p))
}
