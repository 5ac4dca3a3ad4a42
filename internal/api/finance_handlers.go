package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/finance"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
)

// GetFinanceSummary retorna o resumo financeiro do mês (?period=YYYY-MM).
// ?fresh=1 ignora o cache e recalcula.
func (h *Handler) GetFinanceSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		now := time.Now().UTC()
		period = now.Format("2006-01")
	}
	t, err := time.Parse("2006-01", period)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period deve ser YYYY-MM"})
		return
	}
	opts := finance.Options{BypassCache: r.URL.Query().Get("fresh") == "1"}
	s, err := h.Finance.SummarizePeriod(r.Context(), t.Year(), t.Month(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetFinanceHistory retorna os resumos dos últimos N meses (?months=N, padrão 12).
func (h *Handler) GetFinanceHistory(w http.ResponseWriter, r *http.Request) {
	months := 12
	if raw := r.URL.Query().Get("months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "months inválido"})
			return
		}
		months = n
	}
	opts := finance.Options{BypassCache: r.URL.Query().Get("fresh") == "1"}
	out, err := h.Finance.HistoryLastNMonths(r.Context(), months, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"months": out})
}

// GetFinanceYearly retorna o consolidado anual (?year=YYYY, padrão ano atual).
func (h *Handler) GetFinanceYearly(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "year inválido"})
			return
		}
		year = y
	}
	opts := finance.Options{BypassCache: r.URL.Query().Get("fresh") == "1"}
	out, err := h.Finance.YearlySummary(r.Context(), year, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateLedgerEntry registra uma entrada ou saída manual no livro-caixa.
func (h *Handler) CreateLedgerEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind        string          `json:"kind"`
		Value       decimal.Decimal `json:"value"`
		Description string          `json:"description"`
		EntryDate   string          `json:"entry_date"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	entryDate, err := time.Parse("2006-01-02", req.EntryDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "entry_date inválida"})
		return
	}
	if req.Value.IsNegative() || req.Value.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value deve ser positivo"})
		return
	}
	entry := &repo.LedgerEntry{
		Kind:        repo.LedgerKind(req.Kind),
		Value:       req.Value,
		Description: req.Description,
		EntryDate:   entryDate,
	}
	if err := h.Ledger.Create(r.Context(), entry); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": entry.ID.String()})
}

// ListLedgerEntries lista as entradas manuais do mês (?period=YYYY-MM).
func (h *Handler) ListLedgerEntries(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = time.Now().UTC().Format("2006-01")
	}
	t, err := time.Parse("2006-01", period)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period deve ser YYYY-MM"})
		return
	}
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	entries, err := h.Ledger.ListByPeriod(r.Context(), from, from.AddDate(0, 1, 0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}
