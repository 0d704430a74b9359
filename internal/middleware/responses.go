package middleware

import (
	"net/http"

	"finitefield.org/ledgerline-web/internal/httpx"
)

// writeError answers htmx requests with the JSON envelope and browsers with
// plain text.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if IsHTMX(r.Context()) {
		httpx.WriteError(r.Context(), w, httpx.NewError(code, msg, status))
		return
	}
	http.Error(w, msg, status)
}
