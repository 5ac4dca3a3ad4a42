package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
)

// GetSessionByBooking retorna a sessão vinculada ao agendamento.
func (h *Handler) GetSessionByBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseUUIDVar(w, mux.Vars(r)["bookingId"], "bookingId")
	if !ok {
		return
	}
	s, err := h.Sessions.ByBookingID(r.Context(), bookingID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if s == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "sessão não encontrada"})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PatchSessionByBooking atualiza flags financeiras da sessão (payment_done,
// share_done, override_share, invoice_status). Não mexe nos campos
// espelhados do agendamento; esses só mudam via propagação.
func (h *Handler) PatchSessionByBooking(w http.ResponseWriter, r *http.Request) {
	bookingID, ok := parseUUIDVar(w, mux.Vars(r)["bookingId"], "bookingId")
	if !ok {
		return
	}
	var req struct {
		PaymentDone   *bool            `json:"payment_done"`
		ShareDone     *bool            `json:"share_done"`
		OverrideShare *decimal.Decimal `json:"override_share"`
		InvoiceStatus *string          `json:"invoice_status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	updates := map[string]interface{}{}
	if req.PaymentDone != nil {
		updates["payment_done"] = *req.PaymentDone
	}
	if req.ShareDone != nil {
		updates["share_done"] = *req.ShareDone
	}
	if req.OverrideShare != nil {
		if req.OverrideShare.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "override_share não pode ser negativo"})
			return
		}
		updates["override_share"] = *req.OverrideShare
	}
	if req.InvoiceStatus != nil {
		s := repo.InvoiceStatus(*req.InvoiceStatus)
		if !s.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invoice_status inválido"})
			return
		}
		updates["invoice_status"] = string(s)
	}
	if len(updates) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "nenhum campo para atualizar"})
		return
	}
	if err := h.Sessions.UpdateByBookingID(r.Context(), bookingID, updates); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "sessão atualizada"})
}
