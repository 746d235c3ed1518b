// Package handler is the HTTP layer: it parses requests, calls the
// services and writes JSON. Business rules live in service; handlers only
// translate.
//
// Every handler struct registers its own routes through a Routes method,
// so the server and the tests mount exactly the same table.
package handler

import (
	"fmt"
	"net/http"

	"github.com/sakif/foodsaver/internal/auth"
	"github.com/sakif/foodsaver/internal/service"
)

// openStore returns the UserStore for the request's client scope.
// auth.ClientScope must run first.
func openStore(stores *service.StoreFactory, r *http.Request) (*service.UserStore, error) {
	scope, ok := auth.ScopeFromContext(r.Context())
	if !ok {
		return nil, fmt.Errorf("handler: request has no client scope")
	}
	return stores.Open(r.Context(), scope)
}

// HandleHealth answers liveness probes.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
