package metrics

import (
	"context"
	"time"
)

// Collector records control-loop ticks.
type Collector interface {
	Record(ctx context.Context, snapshot *TickSnapshot) error
	Close() error
}

// Repository defines the interface for metrics data storage
type Repository interface {
	Record(snapshot *TickSnapshot) error
	Close() error
}

// TickSnapshot is one control-loop iteration as seen by the daemon.
type TickSnapshot struct {
	Timestamp   time.Time
	Profile     string
	Temperature TempMetrics
	FanDuty     DutyMetrics
	FanRPM      int
	Action      ActionMetrics
}

type TempMetrics struct {
	CPU int
	// GPU is the EC's reserved GPU byte.
	GPU int
	// GPUProbe is the NVML reading, -1 when unavailable.
	GPUProbe int
}

type DutyMetrics struct {
	Current int
	Desired int
	Target  int
}

type ActionMetrics struct {
	Written bool
	Reason  string
}
