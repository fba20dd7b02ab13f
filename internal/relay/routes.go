// Package relay wires the HTTP handlers into a ServeMux.
package relay

import "net/http"

// Routes configures and returns an HTTP ServeMux with all relay routes:
// health check, WebSocket endpoint, and test page.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Health)
	mux.HandleFunc("/ws", h.WebSocket)
	mux.HandleFunc("/test", h.TestPage)
	return mux
}
