package httpapi

import "net/http"

// RegisterRoutes mounts all registry endpoints on mux.
//
// Read routes are open. Entry creation, authority transfer, metadata
// updates, and permission checks require an authenticated principal.
func RegisterRoutes(mux *http.ServeMux, h *Handlers, mw *Middleware) {
	if mux == nil || h == nil || mw == nil {
		return
	}

	mux.HandleFunc(http.MethodGet+" /healthz", h.handleHealth)

	mux.HandleFunc(http.MethodPost+" /v1/entries", mw.Protected(h.handleCreateEntry))
	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}", mw.Public(h.handleGetEntry))

	mux.HandleFunc(http.MethodPost+" /v1/entries/{entryID}/authority", mw.Protected(h.handleTransferAuthority))
	mux.HandleFunc(http.MethodPut+" /v1/entries/{entryID}/metadata", mw.Protected(h.handleUpdateMetadata))

	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}/tags", mw.Public(h.handleTags))
	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}/authority", mw.Public(h.handleAuthority))
	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}/created-at", mw.Public(h.handleCreatedAt))
	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}/payload-size", mw.Public(h.handlePayloadSize))
	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}/notes", mw.Public(h.handleNotes))

	mux.HandleFunc(http.MethodGet+" /v1/entries/{entryID}/permissions/{accessor}", mw.Protected(h.handleCheckAccess))
	mux.HandleFunc(http.MethodGet+" /v1/entries-count", mw.Public(h.handleTotalEntries))
}
