package apitest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/handicraft/storefront/pkg/identity"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "message": message})
}

func withUser(ctx context.Context, u identity.Identity) context.Context {
	return context.WithValue(ctx, ctxUser{}, u)
}

func userFrom(ctx context.Context) identity.Identity {
	u, _ := ctx.Value(ctxUser{}).(identity.Identity)
	return u
}
