package httpx

import (
	"net/http"

	"github.com/recouvra/recouvra/internal/shared"
)

// Principal extracts the authenticated principal or writes a 401. Handlers
// bail out when the boolean is false.
func Principal(w http.ResponseWriter, r *http.Request) (shared.Principal, bool) {
	p, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
	}
	return p, ok
}
