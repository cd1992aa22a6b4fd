package api

import (
	"net/http"
	"strings"
)

func (h *Handler) periodReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.svc.Reports.SalesByPeriod(r.Context(), strings.TrimSpace(q.Get("start_date")), strings.TrimSpace(q.Get("end_date")))
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) productReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reports.ByProduct(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) paymentMethodReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reports.ByPaymentMethod(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) installmentReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reports.ByInstallmentCount(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Reports.Dashboard(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
