package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/danilo-marra/espaco-dialogico-sub001/internal/recurrence"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/repo"
	"github.com/danilo-marra/espaco-dialogico-sub001/internal/series"
)

// CreateBookingSeries expande uma regra de recorrência e cria os agendamentos
// da série com as sessões correspondentes.
func (h *Handler) CreateBookingSeries(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TherapistID string          `json:"therapist_id"`
		PatientID   string          `json:"patient_id"`
		StartDate   string          `json:"start_date"`
		EndDate     string          `json:"end_date"`
		Weekdays    []int           `json:"weekdays"`
		Periodicity string          `json:"periodicity"`
		StartTime   string          `json:"start_time"`
		Location    string          `json:"location"`
		Modality    string          `json:"modality"`
		Type        string          `json:"type"`
		Value       decimal.Decimal `json:"value"`
		Status      string          `json:"status"`
		Notes       *string         `json:"notes"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	therapistID, err := uuid.Parse(req.TherapistID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "therapist_id inválido"})
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient_id inválido"})
		return
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_date inválida"})
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "end_date inválida"})
		return
	}
	if req.StartTime != "" {
		if _, err := time.Parse("15:04", req.StartTime); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time inválido"})
			return
		}
	}
	periodicity, ok := parsePeriodicity(req.Periodicity)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "periodicity deve ser weekly ou biweekly"})
		return
	}
	weekdays := make([]time.Weekday, 0, len(req.Weekdays))
	for _, d := range req.Weekdays {
		if d < 0 || d > 6 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "weekday fora de 0..6"})
			return
		}
		weekdays = append(weekdays, time.Weekday(d))
	}

	res, err := h.Series.Create(r.Context(), series.CreateInput{
		Template: series.Template{
			TherapistID: therapistID,
			PatientID:   patientID,
			StartTime:   req.StartTime,
			Location:    req.Location,
			Modality:    req.Modality,
			Type:        req.Type,
			Value:       req.Value,
			Status:      repo.BookingStatus(req.Status),
			Notes:       req.Notes,
		},
		Start:       start,
		Weekdays:    weekdays,
		Periodicity: periodicity,
		End:         end,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"recurrence_id": res.RecurrenceID.String(),
		"created":       res.FinalCount,
		"estimated":     res.EstimatedCount,
		"truncated":     res.Truncated,
		"sessions":      res.Sync,
		"bookings":      bookingViews(res.Created),
	})
}

// PatchBookingSeries aplica campos a todos os agendamentos da série. As datas
// de cada ocorrência são preservadas, a menos que o caller peça uma mudança:
// date move a série inteira para aquele dia, new_weekday desloca cada
// ocorrência dentro da própria semana.
func (h *Handler) PatchBookingSeries(w http.ResponseWriter, r *http.Request) {
	recurrenceID, ok := parseUUIDVar(w, mux.Vars(r)["recurrenceId"], "recurrenceId")
	if !ok {
		return
	}
	var req struct {
		Date       *string          `json:"date"`
		StartTime  *string          `json:"start_time"`
		Location   *string          `json:"location"`
		Modality   *string          `json:"modality"`
		Type       *string          `json:"type"`
		Value      *decimal.Decimal `json:"value"`
		Status     *string          `json:"status"`
		Notes      *string          `json:"notes"`
		NewWeekday *int             `json:"new_weekday"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.StartTime != nil {
		if _, err := time.Parse("15:04", *req.StartTime); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start_time inválido"})
			return
		}
	}
	patch := repo.BookingPatch{
		StartTime: req.StartTime,
		Location:  req.Location,
		Modality:  req.Modality,
		Type:      req.Type,
		Value:     req.Value,
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
	if req.Status != nil {
		s := repo.BookingStatus(*req.Status)
		patch.Status = &s
	}
	var newWeekday *time.Weekday
	if req.NewWeekday != nil {
		if *req.NewWeekday < 0 || *req.NewWeekday > 6 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "new_weekday fora de 0..6"})
			return
		}
		d := time.Weekday(*req.NewWeekday)
		newWeekday = &d
	}

	res, err := h.Series.UpdateAll(r.Context(), series.UpdateInput{
		RecurrenceID: recurrenceID,
		Fields:       patch,
		NewWeekday:   newWeekday,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	status := http.StatusOK
	if len(res.Errors) > 0 {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, map[string]interface{}{
		"updated":          len(res.Updated),
		"sessions_updated": res.SessionsUpdated,
		"errors":           res.Errors,
	})
}

// DeleteBookingSeries remove todos os agendamentos e sessões da série.
func (h *Handler) DeleteBookingSeries(w http.ResponseWriter, r *http.Request) {
	recurrenceID, ok := parseUUIDVar(w, mux.Vars(r)["recurrenceId"], "recurrenceId")
	if !ok {
		return
	}
	res, err := h.Series.DeleteAll(r.Context(), recurrenceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Finance != nil {
		h.Finance.InvalidateAll()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted_bookings": res.DeletedBookings,
		"deleted_sessions": res.DeletedSessions,
	})
}

func parsePeriodicity(s string) (recurrence.Periodicity, bool) {
	switch s {
	case "weekly", "semanal":
		return recurrence.Weekly, true
	case "biweekly", "quinzenal":
		return recurrence.Biweekly, true
	}
	return 0, false
}

type bookingView struct {
	ID           string  `json:"id"`
	TherapistID  string  `json:"therapist_id"`
	PatientID    string  `json:"patient_id"`
	RecurrenceID *string `json:"recurrence_id,omitempty"`
	Date         string  `json:"date"`
	StartTime    string  `json:"start_time"`
	Location     string  `json:"location"`
	Modality     string  `json:"modality"`
	Type         string  `json:"type"`
	Value        string  `json:"value"`
	Status       string  `json:"status"`
	Completed    bool    `json:"completed"`
	NoShow       bool    `json:"no_show"`
	Notes        *string `json:"notes,omitempty"`
}

func toBookingView(b repo.Booking) bookingView {
	v := bookingView{
		ID:          b.ID.String(),
		TherapistID: b.TherapistID.String(),
		PatientID:   b.PatientID.String(),
		Date:        b.Date.Format("2006-01-02"),
		StartTime:   repo.TimeStringToHHMM(b.StartTime),
		Location:    b.Location,
		Modality:    b.Modality,
		Type:        b.Type,
		Value:       b.Value.StringFixed(2),
		Status:      string(b.Status),
		Completed:   b.Completed,
		NoShow:      b.NoShow,
		Notes:       b.Notes,
	}
	if b.RecurrenceID != nil {
		s := b.RecurrenceID.String()
		v.RecurrenceID = &s
	}
	return v
}

func bookingViews(bs []repo.Booking) []bookingView {
	out := make([]bookingView, len(bs))
	for i, b := range bs {
		out[i] = toBookingView(b)
	}
	return out
}
