package http

import (
	"context"
	"net/http"
	"strings"

	"bankmirror/internal/infrastructure/saltedge"
)

// Catalog is the read-only reference data served by the aggregator.
type Catalog interface {
	ListCountries(ctx context.Context) ([]saltedge.Country, error)
	ListProviders(ctx context.Context, query saltedge.ProviderQuery) (*saltedge.Page[saltedge.Provider], error)
	GetProvider(ctx context.Context, code string) (*saltedge.Provider, error)
	ListCategories(ctx context.Context) (saltedge.Categories, error)
}

type CatalogHandler struct {
	catalog Catalog
}

func NewCatalogHandler(catalog Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// HandleProviders returns one page of providers. Pass meta.next_id back as
// from_id for the next page.
func (h *CatalogHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.catalog.ListProviders(r.Context(), saltedge.ProviderQuery{
		CountryCode: strings.ToUpper(q.Get("country_code")),
		Mode:        q.Get("mode"),
		FromID:      q.Get("from_id"),
	})
	if err != nil {
		writeError(w, r, err, "Failed to list providers")
		return
	}
	if page.Data == nil {
		page.Data = []saltedge.Provider{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) HandleProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProvider(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err, "Failed to get provider")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) HandleCountries(w http.ResponseWriter, r *http.Request) {
	countries, err := h.catalog.ListCountries(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list countries")
		return
	}
	if countries == nil {
		countries = []saltedge.Country{}
	}
	writeJSON(w, http.StatusOK, countries)
}

func (h *CatalogHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to list categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}
