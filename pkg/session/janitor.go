package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultArchiveRetention is how long archived sessions stay readable
	// before the janitor evicts them.
	DefaultArchiveRetention = 6 * time.Hour

	// DefaultJanitorSchedule runs the sweep every five minutes.
	DefaultJanitorSchedule = "*/5 * * * *"
)

// Janitor periodically trims aged archive entries and reports registry
// occupancy. Sweeps are pure map work under the registry lock and never block
// on process I/O.
type Janitor struct {
	registry  *Registry
	retention time.Duration
	cron      *cron.Cron
}

// NewJanitor creates a janitor on the given cron schedule. Zero values select
// the defaults.
func NewJanitor(registry *Registry, schedule string, retention time.Duration) (*Janitor, error) {
	if schedule == "" {
		schedule = DefaultJanitorSchedule
	}
	if retention <= 0 {
		retention = DefaultArchiveRetention
	}

	j := &Janitor{
		registry:  registry,
		retention: retention,
		cron:      cron.New(),
	}

	if _, err := j.cron.AddFunc(schedule, j.sweep); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins scheduled sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
	log.Info().Dur("retention", j.retention).Msg("Session janitor started")
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
	log.Info().Msg("Session janitor stopped")
}

func (j *Janitor) sweep() {
	evicted := j.registry.EvictArchivedBefore(time.Now().Add(-j.retention))
	active, archived := j.registry.Counts()
	log.Debug().
		Int("evicted", evicted).
		Int("active", active).
		Int("archived", archived).
		Msg("Janitor sweep completed")
}
