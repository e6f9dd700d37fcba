package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/pkg/serverutils"
	"textbook-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthStatusCodes(t *testing.T) {
	ok := func(ctx context.Context) (string, error) { return "fine", nil }
	broken := func(ctx context.Context) (string, error) { return "", errors.New("connection refused") }

	tests := []struct {
		name   string
		cache  service.HealthCheck
		db     service.HealthCheck
		want   int
		status string
	}{
		{"all up", ok, ok, http.StatusOK, service.HealthStatusOK},
		{"cache down", broken, ok, http.StatusOK, service.HealthStatusDegraded},
		{"database down", ok, broken, http.StatusServiceUnavailable, service.HealthStatusDown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewNopLogger()
			svc := service.NewHealthService(map[string]service.HealthCheck{
				"database": tt.db,
				"cache":    tt.cache,
			}, []string{"database"}, log)

			app := fiber.New()
			NewHealthController(svc).RegisterRoutes(app.Group("/api"))

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)

			var body serverutils.BaseResponse[dto.HealthResponse]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.status, body.Data.Status)
			assert.Len(t, body.Data.Components, 2)
		})
	}
}
