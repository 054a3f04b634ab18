package health

import (
	"context"
	"fmt"
	"time"

	corehealth "3tcapital/ms_einvoice_batch/internal/core/health"
)

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// CheckFunc probes one dependency. A nil error means the dependency is
// reachable.
type CheckFunc func(ctx context.Context) error

type dependency struct {
	name  string
	check CheckFunc
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta      Metadata
	startedAt time.Time
	deps      []dependency
}

func NewService(meta Metadata) *Service {
	return &Service{
		meta:      meta,
		startedAt: time.Now().UTC(),
	}
}

// AddDependency registers a dependency probe run on every status call.
func (s *Service) AddDependency(name string, check CheckFunc) {
	s.deps = append(s.deps, dependency{name: name, check: check})
}

// Status returns the current availability snapshot. The overall status
// degrades to DOWN when any dependency probe fails.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)

	overall := "UP"
	deps := make([]string, 0, len(s.deps))
	for _, d := range s.deps {
		if err := d.check(ctx); err != nil {
			overall = "DOWN"
			deps = append(deps, fmt.Sprintf("%s: DOWN (%v)", d.name, err))
			continue
		}
		deps = append(deps, d.name+": UP")
	}

	return corehealth.Status{
		Service:      s.meta.Service,
		Version:      s.meta.Version,
		Environment:  s.meta.Environment,
		Status:       overall,
		StartedAt:    s.startedAt,
		Uptime:       uptime.String(),
		UptimeSecs:   int64(uptime.Seconds()),
		Dependencies: deps,
	}
}
