package httpapi

import (
	"net/http"
	"slices"
)

// DevOrigins are always allowed alongside the configured frontend.
var DevOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// cors allows credentialed requests from the configured origins. Requests
// without an Origin header (curl, health checks) pass through.
func (api *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if !slices.Contains(api.Origins, origin) && !slices.Contains(DevOrigins, origin) {
			api.Logger.Warn("cors blocked", "origin", origin, "path", r.URL.Path)
			writeJSONError(w, http.StatusForbidden, "Not allowed by CORS")
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Expose-Headers", "Content-Disposition, Content-Length, X-Request-ID")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
