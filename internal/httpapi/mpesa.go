package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/amishk599/ajirawise/internal/model"
	"github.com/amishk599/ajirawise/internal/payment"
)

type mpesaHandler struct {
	payments *payment.Service
	logger   *slog.Logger
}

// Validation accepts every transaction; crediting happens on confirmation.
func (h *mpesaHandler) Validation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, payment.Accept("Accepted"))
}

func (h *mpesaHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	var c payment.Confirmation
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, payment.Reject("bad json"))
		return
	}

	res, err := h.payments.Confirm(r.Context(), c)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			h.logger.Warn("rejected payment confirmation", "trans_id", c.TransID, "error", err)
			writeJSON(w, http.StatusBadRequest, payment.Reject(verr.Error()))
			return
		}
		h.logger.Error("payment confirmation failed", "trans_id", c.TransID, "error", err)
		writeJSON(w, http.StatusInternalServerError, payment.Reject("temporarily unavailable"))
		return
	}

	desc := "Success"
	if !res.Applied {
		desc = "Duplicate"
	}
	writeJSON(w, http.StatusOK, payment.Accept(desc))
}
