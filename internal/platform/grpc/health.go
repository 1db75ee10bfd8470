package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthCheckTimeout = time.Second
	healthPollFloor    = 100 * time.Millisecond
	healthPollCeiling  = time.Second
)

// WaitForHealth polls the health service on conn until the named service
// reports SERVING or ctx ends. An empty service name checks overall server
// health.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("health wait needs a connection")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	label := service
	if label == "" {
		label = "server"
	}

	client := grpc_health_v1.NewHealthClient(conn)
	delay := healthPollFloor
	for {
		status, err := checkHealthOnce(ctx, client, service)
		if err == nil && status == grpc_health_v1.HealthCheckResponse_SERVING {
			if logf != nil {
				logf("health %s: SERVING", label)
			}
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("health %s: %v", label, err)
			} else {
				logf("health %s: %s", label, status.String())
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s health: %w", label, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > healthPollCeiling {
			delay = healthPollCeiling
		}
	}
}

func checkHealthOnce(ctx context.Context, client grpc_health_v1.HealthClient, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	response, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return response.GetStatus(), nil
}
