package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
)

type deliveryQuoteRequest struct {
	Country  string  `json:"country"`
	WeightKg float64 `json:"weightKg"`
	Carrier  string  `json:"carrier"`
}

type deliveryQuoteView struct {
	Destination    string           `json:"destination"`
	BilledWeightKg int              `json:"billedWeightKg"`
	PriceEUR       decimal.Decimal  `json:"priceEuro"`
	PriceAR        *decimal.Decimal `json:"priceAriary,omitempty"`
	Extrapolated   bool             `json:"extrapolated"`
}

func (h *Handler) deliveryQuote(w http.ResponseWriter, r *http.Request) {
	var req deliveryQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Carrier == "" {
		badRequest(w, "carrier is required")
		return
	}

	q, err := h.delivery.QuoteShipment(r.Context(), req.Country, req.WeightKg, req.Carrier)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deliveryQuoteView{
		Destination:    string(q.Destination),
		BilledWeightKg: q.BilledWeightKg,
		PriceEUR:       q.PriceEUR,
		PriceAR:        q.PriceAR,
		Extrapolated:   q.Extrapolated,
	})
}
