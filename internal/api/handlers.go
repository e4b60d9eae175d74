package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/dispatch/internal/apperr"
	"github.com/UnknownOlympus/dispatch/internal/models"
	"github.com/UnknownOlympus/dispatch/internal/orders"
	"github.com/UnknownOlympus/dispatch/internal/report"
	"github.com/go-chi/chi/v5"
)

const (
	dayLayout     = "2006-01-02"
	reportDays    = 30
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type agencyRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	IsActive *bool  `json:"is_active"`
}

type clientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
}

type tabletRequest struct {
	AgencyID     int    `json:"agency_id"`
	SerialNumber string `json:"serial_number"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) createAgency(w http.ResponseWriter, r *http.Request) {
	var req agencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(h.log, w, r, fmt.Errorf("%w: name is required", apperr.ErrValidation))
		return
	}

	agency := models.Agency{Name: req.Name, Address: req.Address, Phone: req.Phone, IsActive: true}
	if req.IsActive != nil {
		agency.IsActive = *req.IsActive
	}

	created, err := h.reference.CreateAgency(r.Context(), agency)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusCreated, created)
}

func (h *Handler) getAgency(w http.ResponseWriter, r *http.Request) {
	agencyID, err := pathID(r, "id")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	agency, err := h.reference.GetAgency(r.Context(), agencyID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, agency)
}

func (h *Handler) resyncTopic(w http.ResponseWriter, r *http.Request) {
	agencyID, err := pathID(r, "id")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	result, err := h.topics.Resync(r.Context(), agencyID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, result)
}

func (h *Handler) ordersReport(w http.ResponseWriter, r *http.Request) {
	agencyID, err := pathID(r, "id")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	from, to, err := h.reportPeriod(r)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	rows, err := h.reference.ListAgencyOrders(r.Context(), agencyID, from, to)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	start := time.Now()
	buffer, err := report.GenerateOrdersReport(rows)
	h.metrics.ReportGeneration.Observe(time.Since(start).Seconds())
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=agency_%d_orders_%s.xlsx", agencyID, from.Format(dayLayout)))
	w.WriteHeader(http.StatusOK)
	if _, err = buffer.WriteTo(w); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to write report", "agency_id", agencyID, "error", err)
	}
}

// reportPeriod reads the inclusive from/to days of a report, defaulting to
// the last reportDays days.
func (h *Handler) reportPeriod(r *http.Request) (time.Time, time.Time, error) {
	today := h.now().Truncate(24 * time.Hour)
	from, to := today.AddDate(0, 0, -reportDays), today

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(dayLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid from date %q", apperr.ErrValidation, raw)
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(dayLayout, raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid to date %q", apperr.ErrValidation, raw)
		}
		to = parsed
	}

	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to is before from", apperr.ErrValidation)
	}

	return from, to.AddDate(0, 0, 1), nil
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.Phone) == "" {
		writeError(h.log, w, r, fmt.Errorf("%w: first_name and phone are required", apperr.ErrValidation))
		return
	}

	created, err := h.reference.CreateClient(r.Context(), models.Client{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     strings.TrimSpace(req.Phone),
		Address:   req.Address,
		CreatedAt: h.now(),
	})
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusCreated, created)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	client, err := h.reference.GetClientByPhone(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, client)
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())

	var req orders.SubmitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	req.CreatorID = principal.UserID
	if req.ReceiverID == 0 {
		req.ReceiverID = principal.UserID
	}

	order, err := h.orders.Submit(r.Context(), req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusCreated, order)
}

func (h *Handler) orderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	detail, err := h.orders.Detail(r.Context(), orderID)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, detail)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFrom(r.Context())

	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	var req orders.UpdateRequest
	if err = decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	order, err := h.orders.Update(r.Context(), orderID, principal.UserID, req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, order)
}

func (h *Handler) transitionStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	status := r.URL.Query().Get("status")
	if status == "" {
		writeError(h.log, w, r, fmt.Errorf("%w: status query parameter is required", apperr.ErrValidation))
		return
	}

	order, err := h.orders.TransitionStatus(r.Context(), orderID, status)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, order)
}

func (h *Handler) configureTablet(w http.ResponseWriter, r *http.Request) {
	var req tabletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	tablet, err := h.devices.Configure(r.Context(), req.AgencyID, req.SerialNumber)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, tablet)
}

func (h *Handler) deactivateTablet(w http.ResponseWriter, r *http.Request) {
	var req tabletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	tablet, err := h.devices.Deactivate(r.Context(), req.SerialNumber)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, tablet)
}

func (h *Handler) checkTablet(w http.ResponseWriter, r *http.Request) {
	status, err := h.devices.Check(r.Context(), chi.URLParam(r, "serial"))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, status)
}

func (h *Handler) registerToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	if err := h.devices.RegisterToken(r.Context(), chi.URLParam(r, "serial"), req.Token); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, messageResponse{Message: "token registered"})
}

func (h *Handler) unregisterToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	if err := h.devices.UnregisterToken(r.Context(), chi.URLParam(r, "serial"), req.Token); err != nil {
		writeError(h.log, w, r, err)
		return
	}

	writeJSON(h.log, w, r, http.StatusOK, messageResponse{Message: "token unregistered"})
}

func pathID(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", apperr.ErrValidation, name, raw)
	}

	return id, nil
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %w", apperr.ErrValidation, err)
	}

	return nil
}
