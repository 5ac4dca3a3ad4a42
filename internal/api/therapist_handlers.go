package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/share"
)

// ListTherapists lista os terapeutas cadastrados.
func (h *Handler) ListTherapists(w http.ResponseWriter, r *http.Request) {
	list, err := h.Therapists.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"therapists": list})
}

// GetTherapistShare calcula o repasse para um valor de sessão
// (?value=180.00), aplicando a faixa de tempo de casa do terapeuta.
func (h *Handler) GetTherapistShare(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDVar(w, mux.Vars(r)["id"], "id")
	if !ok {
		return
	}
	raw := r.URL.Query().Get("value")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value é obrigatório"})
		return
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value inválido"})
		return
	}
	t, err := h.Therapists.ByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res := share.Calculate(value, t.StartOfService, time.Now(), nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"therapist_id": t.ID.String(),
		"value":        value.StringFixed(2),
		"percent":      res.Percent.StringFixed(2),
		"payout":       res.Payout.StringFixed(2),
	})
}
