package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/doorlink/doorlink/internal/http/response"
	"github.com/doorlink/doorlink/internal/repo/postgres"
	"github.com/doorlink/doorlink/pkg/auth"
)

type claimsKey struct{}

// CallsHandler exposes the access log to the dashboard, which only reads
// what the reconciler writes.
type CallsHandler struct {
	callLogs  postgres.CallLogRepository
	jwtSecret string
}

func NewCallsHandler(callLogs postgres.CallLogRepository, jwtSecret string) *CallsHandler {
	return &CallsHandler{callLogs: callLogs, jwtSecret: jwtSecret}
}

// RequireJWT validates the bearer token and stashes the claims.
func (h *CallsHandler) RequireJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			response.Unauthorized(w, "Missing bearer token")
			return
		}

		claims, err := auth.Parse(strings.TrimPrefix(header, "Bearer "), h.jwtSecret)
		if err != nil {
			response.Unauthorized(w, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ListCalls handles GET /v1/accounts/{id}/calls.
func (h *CallsHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid account id")
		return
	}

	claims, _ := r.Context().Value(claimsKey{}).(*auth.Claims)
	if claims == nil || (claims.Role != "admin" && claims.AccountID != accountID) {
		response.Forbidden(w, "Not allowed to read this account's calls")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	calls, err := h.callLogs.ListByAccount(r.Context(), accountID, limit, offset)
	if err != nil {
		response.InternalError(w, "Failed to list calls")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"calls": calls,
	})
}
