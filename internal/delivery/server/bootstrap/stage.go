package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"repverse/internal/shared/logging"
)

// Stage is one initialization step during startup.
type Stage struct {
	Name     string
	Required bool // failure aborts startup; otherwise the component is marked degraded
	Init     func(ctx context.Context) error
}

// DegradedComponents tracks optional components that failed to start.
type DegradedComponents struct {
	mu         sync.RWMutex
	components map[string]string
}

// NewDegradedComponents creates an empty tracker.
func NewDegradedComponents() *DegradedComponents {
	return &DegradedComponents{components: make(map[string]string)}
}

// Record marks a component as degraded.
func (d *DegradedComponents) Record(name, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components[name] = reason
}

// Map returns a snapshot.
func (d *DegradedComponents) Map() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.components))
	for k, v := range d.components {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether nothing is degraded.
func (d *DegradedComponents) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.components) == 0
}

func (d *DegradedComponents) String() string {
	snapshot := d.Map()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, snapshot[name]))
	}
	return strings.Join(parts, "; ")
}

// RunStages executes stages in order. A failed required stage stops the run.
func RunStages(ctx context.Context, stages []Stage, degraded *DegradedComponents, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("[Bootstrap] Running stage: %s (required=%v)", stage.Name, stage.Required)
		if err := stage.Init(ctx); err != nil {
			if stage.Required {
				return fmt.Errorf("required stage %q failed: %w", stage.Name, err)
			}
			logger.Warn("[Bootstrap] Optional stage %q failed: %v (continuing in degraded mode)", stage.Name, err)
			if degraded != nil {
				degraded.Record(stage.Name, err.Error())
			}
		}
	}
	return nil
}
