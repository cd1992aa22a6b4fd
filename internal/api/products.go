package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"storepos/m/domain"
	"storepos/m/internal/catalog"
)

const maxImportBytes = 5 << 20

type productRequest struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Category string          `json:"category"`
}

func (req productRequest) input() catalog.ProductInput {
	return catalog.ProductInput{Name: req.Name, Price: req.Price, Category: req.Category}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Catalog.List(r.Context())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}
	p, err := h.svc.Catalog.Get(r.Context(), id)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	var req productRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.svc.Catalog.Create(r.Context(), currentUserID(r), req.input())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}
	var req productRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.svc.Catalog.Update(r.Context(), currentUserID(r), id, req.input())
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}
	if err := h.svc.Catalog.Delete(r.Context(), currentUserID(r), id); err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// importProducts accepts either a multipart upload in the "file" field or a
// raw CSV body.
func (h *Handler) importProducts(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.svc.Catalog.Import(r.Context(), currentUserID(r), src)
	if err != nil {
		h.respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) exportProducts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="products.csv"`)
	if err := h.svc.Catalog.Export(r.Context(), w); err != nil {
		h.logger.Error().Err(err).Msg("product export failed")
	}
}
