package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/sales"
)

type saleRequest struct {
	ProductID       int64            `json:"product_id" validate:"required,gt=0"`
	Quantity        int64            `json:"quantity"`
	UnitPrice       *decimal.Decimal `json:"unit_price,omitempty"`
	PaymentMethod   string           `json:"payment_method"`
	Date            string           `json:"date"`
	SaleType        string           `json:"sale_type" validate:"omitempty,oneof=customer employee"`
	NumInstallments int              `json:"num_installments"`
	DueDates        []string         `json:"due_dates"`
}

type cartItemRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int64            `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type checkoutRequest struct {
	Items           []cartItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount        decimal.Decimal   `json:"discount"`
	PaymentMethod   string            `json:"payment_method"`
	Date            string            `json:"date"`
	SaleType        string            `json:"sale_type" validate:"omitempty,oneof=customer employee"`
	NumInstallments int               `json:"num_installments"`
	DueDates        []string          `json:"due_dates"`
}

type saleStatusRequest struct {
	Status        string `json:"status" validate:"required,oneof=open paid partial"`
	PaymentMethod string `json:"payment_method"`
}

type installmentPaidRequest struct {
	Paid          *bool  `json:"paid" validate:"required"`
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req saleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	id, err := h.svc.Sales.RecordSale(r.Context(), sales.SaleRequest{
		OperatorID:      currentUserID(r),
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		PaymentMethod:   req.PaymentMethod,
		Date:            req.Date,
		SaleType:        domain.SaleType(req.SaleType),
		NumInstallments: req.NumInstallments,
		DueDates:        req.DueDates,
	})
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	detail, err := h.svc.Sales.GetSale(r.Context(), id)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, detail)
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	items := make([]sales.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = sales.CartItem{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	result, err := h.svc.Sales.Checkout(r.Context(), sales.CheckoutRequest{
		OperatorID:      currentUserID(r),
		Items:           items,
		Discount:        req.Discount,
		PaymentMethod:   req.PaymentMethod,
		Date:            req.Date,
		SaleType:        domain.SaleType(req.SaleType),
		NumInstallments: req.NumInstallments,
		DueDates:        req.DueDates,
	})
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sales.ListFilter{
		From: strings.TrimSpace(q.Get("from")),
		To:   strings.TrimSpace(q.Get("to")),
	}
	if raw := strings.TrimSpace(q.Get("employee_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid employee_id")
			return
		}
		filter.EmployeeID = id
	}
	list, err := h.svc.Sales.ListSales(r.Context(), filter)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) getSale(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sale")
	if !ok {
		return
	}
	detail, err := h.svc.Sales.GetSale(r.Context(), id)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) deleteSale(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(w, r, "sale")
	if !ok {
		return
	}
	if err := h.svc.Sales.DeleteSale(r.Context(), currentUserID(r), id); err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) setSaleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "sale")
	if !ok {
		return
	}
	var req saleStatusRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	err := h.svc.Sales.SetSalePaidStatus(r.Context(), currentUserID(r), id, domain.PaymentStatus(req.Status), req.PaymentMethod)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	detail, err := h.svc.Sales.GetSale(r.Context(), id)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (h *Handler) setInstallmentPaid(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "installment")
	if !ok {
		return
	}
	var req installmentPaidRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	inst, err := h.svc.Sales.SetInstallmentPaid(r.Context(), currentUserID(r), id, *req.Paid, req.PaymentMethod)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inst)
}
