package service

import (
	"context"
	"fmt"
	"time"

	"textbook-rag-be/internal/dto"
	"textbook-rag-be/internal/pkg/logger"
)

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusDown     = "down"
)

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one dependency. The returned detail is shown on success.
type HealthCheck func(ctx context.Context) (string, error)

type IHealthService interface {
	Check(ctx context.Context) *dto.HealthResponse
}

type healthService struct {
	checks   map[string]HealthCheck
	critical map[string]bool
	logger   logger.ILogger
}

// NewHealthService runs every check on each call. A failing critical check
// marks the service down, any other failure marks it degraded.
func NewHealthService(checks map[string]HealthCheck, critical []string, log logger.ILogger) IHealthService {
	c := make(map[string]bool, len(critical))
	for _, name := range critical {
		c[name] = true
	}
	return &healthService{checks: checks, critical: c, logger: log}
}

func (s *healthService) Check(ctx context.Context) *dto.HealthResponse {
	res := &dto.HealthResponse{
		Status:     HealthStatusOK,
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]dto.HealthComponent, len(s.checks)),
	}

	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		detail, err := check(checkCtx)
		cancel()

		if err == nil {
			res.Components[name] = dto.HealthComponent{Status: HealthStatusOK, Detail: detail}
			continue
		}

		s.logger.Warn("HTTP", "Health check failed", map[string]interface{}{"component": name, "error": err.Error()})
		res.Components[name] = dto.HealthComponent{Status: HealthStatusDown, Detail: err.Error()}
		if s.critical[name] {
			res.Status = HealthStatusDown
		} else if res.Status == HealthStatusOK {
			res.Status = HealthStatusDegraded
		}
	}

	return res
}

// PingCheck adapts a plain ping.
func PingCheck(ping func(ctx context.Context) error, detail string) HealthCheck {
	return func(ctx context.Context) (string, error) {
		if err := ping(ctx); err != nil {
			return "", err
		}
		return detail, nil
	}
}

// CollectionCheck reports how many points the vector index holds.
func CollectionCheck(info func(ctx context.Context) (int64, string, error)) HealthCheck {
	return func(ctx context.Context) (string, error) {
		points, status, err := info(ctx)
		if err != nil {
			return "", err
		}
		if status == "missing" {
			return "", fmt.Errorf("collection does not exist")
		}
		return fmt.Sprintf("%d points, status %s", points, status), nil
	}
}
