// Package api serves the stored listings and the plot-size rankings over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sjsage522/propertyworker/internal/insights"
	"sjsage522/propertyworker/internal/property"
	"sjsage522/propertyworker/logger"

	"github.com/gorilla/mux"
)

const (
	defaultRatioLimit   = 10
	defaultLargestLimit = 5
	maxLimit            = 500
)

// CurrentLoader reads the current-state store
type CurrentLoader interface {
	LoadCurrent(ctx context.Context) ([]property.CurrentEntry, error)
}

// Handler serves the listing API
type Handler struct {
	store      CurrentLoader
	portalBase string
	log        *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(store CurrentLoader, portalBaseURL string) *Handler {
	return &Handler{
		store:      store,
		portalBase: portalBaseURL,
		log:        logger.ForAPI(),
	}
}

// Router returns the routes of the API
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/listings", h.handleListings).Methods(http.MethodGet)
	r.HandleFunc("/listings/{number}", h.handleListing).Methods(http.MethodGet)
	r.HandleFunc("/insights/erf-ratio", h.handleErfRatio).Methods(http.MethodGet)
	r.HandleFunc("/insights/largest", h.handleLargest).Methods(http.MethodGet)
	return r
}

type listingView struct {
	Fields      map[string]string `json:"fields"`
	LastUpdated time.Time         `json:"last_updated"`
	Link        string            `json:"link,omitempty"`
}

func newListingView(e property.CurrentEntry) listingView {
	return listingView{Fields: e.Values(), LastUpdated: e.LastUpdated}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListings(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.load(w, r)
	if !ok {
		return
	}

	views := make([]listingView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newListingView(e))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(views),
		"listings": views,
	})
}

func (h *Handler) handleListing(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.load(w, r)
	if !ok {
		return
	}

	number := mux.Vars(r)["number"]
	e, link, found := insights.Lookup(entries, number, h.portalBase)
	if !found {
		writeError(w, http.StatusNotFound, "no property found for listing number "+number)
		return
	}

	view := newListingView(e)
	view.Link = link
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleErfRatio(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultRatioLimit)
	if !ok {
		return
	}
	entries, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, insights.TopByErfRatio(entries, limit))
}

func (h *Handler) handleLargest(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, defaultLargestLimit)
	if !ok {
		return
	}
	entries, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, insights.LargestPlots(entries, limit))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) ([]property.CurrentEntry, bool) {
	entries, err := h.store.LoadCurrent(r.Context())
	if err != nil {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Failed to load listings")
		writeError(w, http.StatusInternalServerError, "failed to load listings")
		return nil, false
	}
	return entries, true
}

func parseLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxLimit))
		return 0, false
	}
	return n, true
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.LogError("api", err, "failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
