package zone

import (
	"context"
	"log/slog"
	"sync"

	"realm-server/internal/gamedata"
	"realm-server/internal/shared/errors"
)

// Manager owns every zone of the process. Zones share nothing but the
// immutable game data and the persistence back ends.
type Manager struct {
	zones  map[string]*Zone
	order  []string
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewManager(defs []Definition, cfg Config, data *gamedata.Data, store CharacterStore, queue SaveQueue) *Manager {
	m := &Manager{
		zones:  make(map[string]*Zone, len(defs)),
		logger: slog.With("component", "zone_manager"),
	}
	for _, def := range defs {
		m.zones[def.ID] = New(def, cfg, data, store, queue)
		m.order = append(m.order, def.ID)
	}
	m.logger.Info("Zones created", "zones", m.order)
	return m
}

// Start runs every zone loop until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	for _, id := range m.order {
		z := m.zones[id]
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			z.Run(ctx)
		}()
	}
}

// Wait blocks until every zone loop has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Zone looks a zone up by id. An empty id selects the first zone.
func (m *Manager) Zone(id string) (*Zone, error) {
	if id == "" && len(m.order) > 0 {
		id = m.order[0]
	}
	z, ok := m.zones[id]
	if !ok {
		return nil, errors.WrapNotFound("zone "+id+" not found", ErrUnknownZone)
	}
	return z, nil
}

func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.zones[id].Status())
	}
	return out
}

// Shutdown shuts every zone down concurrently and returns the first error.
func (m *Manager) Shutdown(ctx context.Context) error {
	logger := m.logger.With("operation", "shutdown")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, id := range m.order {
		z := m.zones[id]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := z.Shutdown(ctx); err != nil {
				logger.Error("Zone shutdown failed", "zone", z.ID(), "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
