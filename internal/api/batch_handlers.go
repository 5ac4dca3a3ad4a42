package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/auth"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/batch"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
)

// BatchBookings aplica operações (completed, no_show, status) em até 50
// agendamentos de uma vez. O type do topo vale para as operações sem field
// próprio; field por operação permite lotes mistos. Resultado parcial sai
// como 207.
func (h *Handler) BatchBookings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type       string `json:"type"`
		Operations []struct {
			BookingID string `json:"booking_id"`
			Field     string `json:"field"`
			Value     bool   `json:"value"`
			Status    string `json:"status"`
		} `json:"operations"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ops := make([]batch.Operation, 0, len(req.Operations))
	for _, o := range req.Operations {
		id, err := uuid.Parse(o.BookingID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "booking_id inválido: " + o.BookingID})
			return
		}
		field := o.Field
		if field == "" {
			field = req.Type
		}
		ops = append(ops, batch.Operation{
			BookingID: id,
			Field:     field,
			Value:     o.Value,
			Status:    repo.BookingStatus(o.Status),
		})
	}

	res, err := h.Batch.Run(r.Context(), ops, scopeFromContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	status := http.StatusOK
	if res.Partial() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, res)
}

func scopeFromContext(r *http.Request) batch.Scope {
	ids, all := auth.AllowedTherapistsFrom(r.Context())
	scope := batch.Scope{AllowAll: all}
	if !all {
		scope.Therapists = make(map[uuid.UUID]bool, len(ids))
		for _, id := range ids {
			scope.Therapists[id] = true
		}
	}
	return scope
}
