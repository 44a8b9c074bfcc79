package controllers

import (
	"net/http"
	"strings"

	"github.com/emberline/storefront-backend/api/responses"
	"github.com/emberline/storefront-backend/api/validators"
	"github.com/emberline/storefront-backend/internal/products"
	pkgerrors "github.com/emberline/storefront-backend/pkg/errors"
	"github.com/emberline/storefront-backend/pkg/logger"
	"github.com/emberline/storefront-backend/pkg/pagination"
	"github.com/go-chi/chi/v5"
)

// ProductsList serves the public catalog listing. Image addresses in the
// response have already passed the release gate.
func ProductsList(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		category := validators.SanitizeString(r.URL.Query().Get("category"), 128)

		page, err := svc.List(r.Context(), category, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProductDetail serves a single catalog item by its document key.
func ProductDetail(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(chi.URLParam(r, "productId"))
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		view, err := svc.Get(r.Context(), key)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// ProductCategories lists the category partitions available for filtering.
func ProductCategories(svc *products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"categories": categories})
	}
}
