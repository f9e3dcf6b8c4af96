// Package zone runs one shard of the world: a single goroutine ticks the
// simulation, applies queued player input, and binds network sessions to
// persisted characters.
package zone

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"realm-server/internal/character"
	"realm-server/internal/combat"
	"realm-server/internal/ecs"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"
	"realm-server/internal/inventory"
	"realm-server/internal/savequeue"
	"realm-server/internal/shared/errors"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// catchupMaxTicks bounds how much simulated time one late tick may cover.
const catchupMaxTicks = 5

// CharacterStore is the persistence the zone needs. *character.Service
// satisfies it.
type CharacterStore interface {
	FindOrCreatePlayer(ctx context.Context, username string) (*character.Player, error)
	LoadCharacter(ctx context.Context, playerID int64) (*character.Character, error)
	CreateCharacter(ctx context.Context, nc character.NewCharacter) (*character.Character, error)
	SaveCharacter(ctx context.Context, id int64, upd character.CharacterUpdate) error
	SaveCharactersBatch(ctx context.Context, entries []character.BatchEntry) error
}

// SaveQueue parks saves that could not reach the store.
type SaveQueue interface {
	Push(ctx context.Context, e savequeue.Entry) error
	Take(ctx context.Context, characterID int64) (*savequeue.Entry, error)
}

type Config struct {
	TickRate               int
	MaxInputsPerTick       int
	BatchSaveIntervalTicks int
	InventoryCapacity      int
	SaveRetries            int
	SaveRetryBackoff       time.Duration
	SaveTimeout            time.Duration
	Seed                   uint64
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = 20
	}
	if c.MaxInputsPerTick <= 0 {
		c.MaxInputsPerTick = 8
	}
	if c.InventoryCapacity <= 0 {
		c.InventoryCapacity = 45
	}
	if c.SaveRetries <= 0 {
		c.SaveRetries = 3
	}
	if c.SaveRetryBackoff <= 0 {
		c.SaveRetryBackoff = 250 * time.Millisecond
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 5 * time.Second
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c
}

type Status struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Tick     uint64 `json:"tick"`
	Sessions int    `json:"sessions"`
	Entities int    `json:"entities"`
}

type Zone struct {
	def    Definition
	config Config
	data   *gamedata.Data
	store  CharacterStore
	queue  SaveQueue
	logger *slog.Logger

	// Owned by the tick goroutine.
	world       *ecs.World
	resolver    *combat.Resolver
	inventories *inventory.Service
	rng         *rand.Rand
	events      []event.Event

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	inputs   *inputQueue
	tasks    []func()
	nextSeq  uint64
	closing  bool

	tick     atomic.Uint64
	entities atomic.Int64

	// persistMu orders leave saves against batch saves.
	persistMu sync.Mutex
	batching  atomic.Bool
	saves     sync.WaitGroup
}

func New(def Definition, cfg Config, data *gamedata.Data, store CharacterStore, queue SaveQueue) *Zone {
	cfg = cfg.withDefaults()
	logger := slog.With("component", "zone", "zone", def.ID)
	logger.Info("Initializing zone",
		"name", def.Name,
		"tick_rate", cfg.TickRate,
		"spawners", len(def.Spawners))

	world := ecs.NewWorld(256)
	rng := rand.New(rand.NewPCG(cfg.Seed, xxhash.Sum64String(def.ID)))

	z := &Zone{
		def:      def,
		config:   cfg,
		data:     data,
		store:    store,
		queue:    queue,
		logger:   logger,
		world:    world,
		rng:      rng,
		sessions: make(map[uuid.UUID]*session),
		inputs:   newInputQueue(cfg.MaxInputsPerTick),
	}
	z.inventories = inventory.NewService(data, cfg.InventoryCapacity, rng)
	z.resolver = combat.NewResolver(world, data, rng, z.equipmentBonuses)
	z.placeSpawners()
	return z
}

func (z *Zone) ID() string {
	return z.def.ID
}

func (z *Zone) Definition() Definition {
	return z.def
}

// Run ticks the zone at the configured rate until ctx is cancelled.
func (z *Zone) Run(ctx context.Context) {
	logger := z.logger.With("operation", "run")

	interval := time.Second / time.Duration(z.config.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	budget := interval.Seconds()
	maxDt := budget * catchupMaxTicks
	last := time.Now()

	logger.Info("Zone loop started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("Zone loop stopped", "tick", z.tick.Load())
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = budget
			} else if dt > maxDt {
				logger.Warn("Clamping tick delta", "dt", dt, "max_dt", maxDt)
				dt = maxDt
			}
			last = now

			start := time.Now()
			z.Tick(dt)
			if elapsed := time.Since(start); elapsed > interval {
				logger.Warn("Tick over budget", "tick", z.tick.Load(), "elapsed", elapsed, "budget", interval)
			}
		}
	}
}

// Tick advances the simulation by dt seconds. Run calls it; tests may call
// it directly as long as Run is not running.
func (z *Zone) Tick(dt float64) {
	tick := z.tick.Add(1)
	z.events = nil

	z.mu.Lock()
	tasks := z.tasks
	z.tasks = nil
	inputs := z.inputs.drain()
	z.mu.Unlock()

	for _, task := range tasks {
		task()
	}
	z.applyInputs(inputs)

	r := z.resolver
	r.TickCooldowns(dt)
	z.emit(r.TickBuffs(dt)...)
	r.TickRegen(dt)
	z.tickAI(dt)
	z.tickMovement(dt)
	z.emit(r.TickAutoAttacks(dt)...)
	z.emit(r.TickProjectiles(dt)...)
	z.tickDeaths(dt)
	z.tickLoot(dt)
	z.tickSpawners(dt)
	z.world.ClampVitals()

	z.broadcast(tick)
	z.world.Flush()
	z.entities.Store(int64(z.world.Len()))

	if n := z.config.BatchSaveIntervalTicks; n > 0 && tick%uint64(n) == 0 {
		z.batchSave()
	}
}

// Submit queues an input for the next tick.
func (z *Zone) Submit(id uuid.UUID, in Input) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	s, ok := z.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !s.is(StateActive) {
		return ErrNotActive
	}

	accepted, drops := z.inputs.push(queuedInput{session: id, seq: s.seq, input: in})
	if !accepted {
		if drops&(drops-1) == 0 {
			z.logger.Warn("Dropping input over per-tick limit",
				"session", id,
				"kind", in.Kind,
				"drops", drops,
				"limit", z.config.MaxInputsPerTick)
		}
		return ErrInputDropped
	}
	return nil
}

func (z *Zone) Status() Status {
	z.mu.Lock()
	sessions := len(z.sessions)
	z.mu.Unlock()

	return Status{
		ID:       z.def.ID,
		Name:     z.def.Name,
		Tick:     z.tick.Load(),
		Sessions: sessions,
		Entities: int(z.entities.Load()),
	}
}

// post schedules fn to run on the tick goroutine at the start of the next
// tick.
func (z *Zone) post(fn func()) {
	z.mu.Lock()
	z.tasks = append(z.tasks, fn)
	z.mu.Unlock()
}

// call runs fn on the tick goroutine and waits for it. If ctx ends first fn
// still runs later.
func (z *Zone) call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	z.post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.WrapInternal("zone did not answer in time", ctx.Err())
	}
}

func (z *Zone) emit(events ...event.Event) {
	z.events = append(z.events, events...)
}

func (z *Zone) session(id uuid.UUID) *session {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.sessions[id]
}

// activeSessions returns active sessions in join order.
func (z *Zone) activeSessions() []*session {
	z.mu.Lock()
	out := make([]*session, 0, len(z.sessions))
	for _, s := range z.sessions {
		if s.is(StateActive) {
			out = append(out, s)
		}
	}
	z.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].seq < out[j].seq
	})
	return out
}

func (z *Zone) isClosing() bool {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.closing
}

func (z *Zone) equipmentBonuses(e ecs.Entity) gamedata.Bonuses {
	nid, ok := z.world.Network.Get(e)
	if !ok {
		return gamedata.Bonuses{}
	}
	return z.inventories.EquipmentBonuses(nid.Session)
}
