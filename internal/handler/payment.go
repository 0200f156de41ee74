package handler

import (
	"encoding/json"
	"net/http"
)

// paymentEventRequest is a settlement notification from the payment
// gateway relay: the named session completed for the named order or box.
type paymentEventRequest struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	OrderID   string `json:"orderId"`
	BoxID     string `json:"boxId"`
}

func (h *Handler) paymentEvent(w http.ResponseWriter, r *http.Request) {
	var req paymentEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.SessionID == "" {
		badRequest(w, "sessionId is required")
		return
	}

	switch {
	case req.OrderID != "":
		if err := h.orders.MarkPaid(r.Context(), req.OrderID, req.SessionID); err != nil {
			writeError(w, r, err)
			return
		}
	case req.BoxID != "":
		if err := h.boxes.MarkPaid(r.Context(), req.BoxID, req.SessionID); err != nil {
			writeError(w, r, err)
			return
		}
	default:
		badRequest(w, "orderId or boxId is required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
