package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nexusauctions/nexus-backend/api/middleware"
	"github.com/nexusauctions/nexus-backend/pkg/enums"
	"github.com/nexusauctions/nexus-backend/pkg/logger"
	"github.com/nexusauctions/nexus-backend/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx, ok := req.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || routeCtx == nil {
		routeCtx = chi.NewRouteContext()
	}
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func asUser(req *http.Request, userID uuid.UUID, role enums.UserRole) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID, role))
}

func decodeError(t *testing.T, body []byte) types.APIError {
	t.Helper()
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	return envelope.Error
}
