package tools

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rtsh13/relay/internal/types"
)

// GRPCHealthTool queries the standard gRPC health service of a server.
type GRPCHealthTool struct{}

func NewGRPCHealthTool() *GRPCHealthTool { return &GRPCHealthTool{} }

func (g *GRPCHealthTool) Name() string { return "grpcHealth" }

func (g *GRPCHealthTool) Description() string {
	return "Call grpc.health.v1.Health/Check on a gRPC server and report its serving status and latency."
}

func (g *GRPCHealthTool) Risk() types.RiskLevel { return types.RiskLow }

func (g *GRPCHealthTool) Parameters() []types.Parameter {
	return []types.Parameter{
		{Name: "host", Type: "string", Description: "Server hostname or IP", Required: true},
		{Name: "port", Type: "int", Description: "Server port", Required: true},
		{Name: "service", Type: "string", Description: "Service name; empty checks the whole server", Default: ""},
		{Name: "timeout_seconds", Type: "int", Description: "Deadline for the check", Default: 5},
	}
}

func (g *GRPCHealthTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	host := StringParam(params, "host")
	port, err := IntParam(params, "port", 0)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	timeout, err := IntParam(params, "timeout_seconds", 5)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = 5
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	target := net.JoinHostPort(host, strconv.Itoa(port))
	start := time.Now()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", target, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: StringParam(params, "service"),
	})
	if err != nil {
		return nil, fmt.Errorf("gRPC health check on %s failed: %w", target, err)
	}

	return map[string]any{
		"target":     target,
		"service":    StringParam(params, "service"),
		"status":     resp.GetStatus().String(),
		"latency_ms": time.Since(start).Milliseconds(),
	}, nil
}

// PortCheckTool reports whether TCP ports accept connections.
type PortCheckTool struct {
	dialTimeout time.Duration
}

func NewPortCheckTool() *PortCheckTool { return &PortCheckTool{dialTimeout: 2 * time.Second} }

func (p *PortCheckTool) Name() string { return "checkPorts" }

func (p *PortCheckTool) Description() string {
	return "Check if TCP ports are open on a host. Useful for checking service availability."
}

func (p *PortCheckTool) Risk() types.RiskLevel { return types.RiskLow }

func (p *PortCheckTool) Parameters() []types.Parameter {
	return []types.Parameter{
		{Name: "host", Type: "string", Description: "Hostname or IP to check", Required: true},
		{Name: "ports", Type: "string", Description: "Comma-separated ports (e.g. '22,80,443') or 'common'", Default: "common"},
	}
}

func (p *PortCheckTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	host := StringParam(params, "host")
	ports, err := parsePorts(StringParam(params, "ports"))
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: p.dialTimeout}
	open := make([]int, 0, len(ports))
	closed := make([]int, 0, len(ports))
	for _, port := range ports {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			closed = append(closed, port)
			continue
		}
		conn.Close()
		open = append(open, port)
	}

	return map[string]any{
		"host":   host,
		"open":   open,
		"closed": closed,
	}, nil
}

func parsePorts(spec string) ([]int, error) {
	if spec == "" || spec == "common" {
		return []int{22, 80, 443, 3000, 3306, 5432, 6379, 8080, 8443, 27017}, nil
	}
	var ports []int
	for _, ps := range strings.Split(spec, ",") {
		ps = strings.TrimSpace(ps)
		port, err := strconv.Atoi(ps)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port %q", ps)
		}
		ports = append(ports, port)
	}
	return ports, nil
}
