package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/logging"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/session"
)

// ListBookings lista agendamentos no intervalo (?from=YYYY-MM-DD&to=YYYY-MM-DD).
// Sem parâmetros, retorna o mês corrente.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	var err error
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "from inválido"})
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to inválido"})
			return
		}
	}
	if to.Before(from) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to anterior a from"})
		return
	}
	list, err := h.Bookings.ListByDateRange(r.Context(), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": bookingViews(list)})
}

// GetBooking retorna um agendamento pelo id.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDVar(w, mux.Vars(r)["id"], "id")
	if !ok {
		return
	}
	b, err := h.Bookings.ByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingView(*b))
}

// PatchBooking atualiza campos de um agendamento e propaga o efeito para a
// sessão vinculada (criação, remoção ou atualização de campos espelhados).
func (h *Handler) PatchBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDVar(w, mux.Vars(r)["id"], "id")
	if !ok {
		return
	}
	var req struct {
		Date      *string          `json:"date"`
		StartTime *string          `json:"start_time"`
		Location  *string          `json:"location"`
		Modality  *string          `json:"modality"`
		Type      *string          `json:"type"`
		Value     *decimal.Decimal `json:"value"`
		Status    *string          `json:"status"`
		Completed *bool            `json:"completed"`
		NoShow    *bool            `json:"no_show"`
		Notes     *string          `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	patch := repo.BookingPatch{
		StartTime: req.StartTime,
		Location:  req.Location,
		Modality:  req.Modality,
		Type:      req.Type,
		Value:     req.Value,
		Completed: req.Completed,
		NoShow:    req.NoShow,
		Notes:     req.Notes,
	}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date inválida"})
			return
		}
		patch.Date = &d
	}
	if req.StartTime != nil {
		if _, err := time.Parse("15:04", *req.StartTime); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time inválido"})
			return
		}
	}
	if req.Status != nil {
		s := repo.BookingStatus(*req.Status)
		if !s.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status inválido"})
			return
		}
		patch.Status = &s
	}

	if err := h.Bookings.UpdateFields(r.Context(), id, patch); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.Bookings.ByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// A existência da sessão depende de status e no_show; os demais campos
	// espelhados apenas propagam.
	if h.Sync != nil {
		if req.Status != nil || req.NoShow != nil {
			if _, _, err := h.Sync.Ensure(r.Context(), *updated); err != nil {
				logging.L.Warnw("[bookings] session ensure after patch", "booking_id", id, "error", err)
			}
		}
		ch := session.FieldChanges{Type: req.Type, Value: req.Value, Status: patch.Status}
		if err := h.Sync.PropagateFieldChange(r.Context(), id, ch); err != nil {
			logging.L.Warnw("[bookings] session propagate after patch", "booking_id", id, "error", err)
		}
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	writeJSON(w, http.StatusOK, toBookingView(*updated))
}

// DeleteBooking remove um agendamento avulso; a sessão vinculada cai junto
// via propagação de cancelamento.
func (h *Handler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDVar(w, mux.Vars(r)["id"], "id")
	if !ok {
		return
	}
	if h.Sync != nil {
		cancelled := repo.BookingCancelled
		if err := h.Sync.PropagateFieldChange(r.Context(), id, session.FieldChanges{Status: &cancelled}); err != nil {
			logging.L.Warnw("[bookings] session removal before delete", "booking_id", id, "error", err)
		}
	}
	if err := h.Bookings.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "agendamento removido"})
}
