package health

import (
	"context"
	"fmt"
	"time"
)

// Connectable is anything that can report broker connectivity. The messaging
// transports satisfy it.
type Connectable interface {
	IsConnected() bool
}

// TransportChecker reports whether the message transport is connected.
type TransportChecker struct {
	transport Connectable
}

// NewTransportChecker creates a transport connectivity checker.
func NewTransportChecker(transport Connectable) *TransportChecker {
	return &TransportChecker{transport: transport}
}

func (c *TransportChecker) Name() string {
	return "transport"
}

func (c *TransportChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   map[string]interface{}{},
	}

	connected := c.transport.IsConnected()
	result.Details["connected"] = connected
	if connected {
		result.Status = StatusHealthy
		result.Message = "transport is connected"
	} else {
		result.Status = StatusUnhealthy
		result.Message = "transport is not connected"
	}

	result.Duration = time.Since(start)
	return result
}

// PendingCounter is anything tracking in-flight requests. The bridge
// satisfies it.
type PendingCounter interface {
	PendingRequests() int
}

// BridgeChecker reports saturation of the request bridge: degraded past the
// warning threshold, unhealthy past the critical one.
type BridgeChecker struct {
	bridge          PendingCounter
	warningPending  int
	criticalPending int
}

// NewBridgeChecker creates a bridge saturation checker.
func NewBridgeChecker(bridge PendingCounter, warningPending, criticalPending int) *BridgeChecker {
	return &BridgeChecker{
		bridge:          bridge,
		warningPending:  warningPending,
		criticalPending: criticalPending,
	}
}

func (c *BridgeChecker) Name() string {
	return "bridge"
}

func (c *BridgeChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Details:   map[string]interface{}{},
	}

	pending := c.bridge.PendingRequests()
	result.Details["pending_requests"] = pending

	switch {
	case c.criticalPending > 0 && pending >= c.criticalPending:
		result.Status = StatusUnhealthy
		result.Message = fmt.Sprintf("bridge saturated: %d pending requests", pending)
	case c.warningPending > 0 && pending >= c.warningPending:
		result.Status = StatusDegraded
		result.Message = fmt.Sprintf("bridge under pressure: %d pending requests", pending)
	default:
		result.Status = StatusHealthy
		result.Message = "bridge is healthy"
	}

	result.Duration = time.Since(start)
	return result
}

// ComponentChecker wraps a plain function as a checker.
type ComponentChecker struct {
	name  string
	check func(ctx context.Context) (Status, string, error)
}

// NewComponentChecker creates a checker from a function.
func NewComponentChecker(name string, check func(ctx context.Context) (Status, string, error)) *ComponentChecker {
	return &ComponentChecker{name: name, check: check}
}

func (c *ComponentChecker) Name() string {
	return c.name
}

func (c *ComponentChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Name:      c.name,
		Timestamp: start,
	}

	status, message, err := c.check(ctx)
	result.Status = status
	result.Message = message
	if err != nil {
		result.Error = err.Error()
	}

	result.Duration = time.Since(start)
	return result
}
