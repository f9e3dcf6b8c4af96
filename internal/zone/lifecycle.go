package zone

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"realm-server/internal/character"
	"realm-server/internal/combat"
	"realm-server/internal/ecs"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"
	"realm-server/internal/inventory"
	"realm-server/internal/savequeue"
	"realm-server/internal/shared/errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

type JoinResult struct {
	Session     uuid.UUID  `json:"session"`
	Entity      ecs.Entity `json:"entity"`
	CharacterID int64      `json:"characterId"`
	Name        string     `json:"name"`
	Class       string     `json:"class"`
	Created     bool       `json:"created"`
}

// Join binds a session to the player's character and spawns it. Database
// work happens on the caller's goroutine; only the spawn runs on the tick.
func (z *Zone) Join(ctx context.Context, id uuid.UUID, username string, sink Sink) (*JoinResult, error) {
	logger := z.logger.With("operation", "join", "session", id, "username", username)
	logger.Debug("Session joining")

	s, err := z.register(id, username, sink)
	if err != nil {
		logger.Warn("Join rejected", "error", err)
		return nil, err
	}

	char, created, err := z.loadOrCreate(ctx, username, logger)
	if err != nil {
		z.abort(s)
		logger.Warn("Join failed", "error", err)
		return nil, err
	}

	snap, err := inventory.UnmarshalSnapshot(char.Inventory)
	if err != nil {
		logger.Warn("Discarding unreadable inventory snapshot", "character_id", char.ID, "error", err)
		snap = nil
	}

	s.characterID = char.ID
	s.name = char.Name

	var result *JoinResult
	if err := z.call(ctx, func() {
		result = z.spawnPlayer(s, char, snap)
	}); err != nil {
		if terr := s.transition(eventAbort); terr == nil {
			z.remove(s)
		} else {
			// The spawn won the race; undo it the normal way.
			_ = z.Leave(s.id)
		}
		logger.Warn("Join abandoned", "error", err)
		return nil, err
	}
	if result == nil {
		z.abort(s)
		return nil, ErrZoneClosed
	}
	result.Created = created

	logger.Info("Session joined",
		"character_id", char.ID,
		"entity", result.Entity,
		"created", created)
	return result, nil
}

func (z *Zone) register(id uuid.UUID, username string, sink Sink) (*session, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if z.closing {
		return nil, ErrZoneClosed
	}
	if _, ok := z.sessions[id]; ok {
		return nil, errors.WrapConflict("session already joined", ErrSessionExists)
	}
	for _, other := range z.sessions {
		if other.username == username && !other.is(StateDetached) {
			return nil, errors.WrapConflict(fmt.Sprintf("%s is already in zone %s", username, z.def.ID), ErrAlreadyInZone)
		}
	}

	z.nextSeq++
	s := newSession(id, z.nextSeq, username, sink)
	z.sessions[id] = s
	return s, nil
}

func (z *Zone) abort(s *session) {
	_ = s.transition(eventAbort)
	z.remove(s)
}

func (z *Zone) remove(s *session) {
	z.mu.Lock()
	if z.sessions[s.id] == s {
		delete(z.sessions, s.id)
	}
	z.inputs.forget(s.id)
	z.mu.Unlock()
}

// loadOrCreate resolves the player and returns their most recent character,
// creating one on first join. A queued save for the character is written
// before the row is read so the session starts from its latest state.
func (z *Zone) loadOrCreate(ctx context.Context, username string, logger *slog.Logger) (*character.Character, bool, error) {
	player, err := z.store.FindOrCreatePlayer(ctx, username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve player: %w", err)
	}
	if player.Banned {
		return nil, false, errors.WrapForbidden("player is banned", character.ErrPlayerBanned)
	}

	char, err := z.store.LoadCharacter(ctx, player.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load character: %w", err)
	}

	if char != nil {
		replayed, err := z.replayPending(ctx, char.ID, logger)
		if err != nil {
			return nil, false, err
		}
		if replayed {
			if char, err = z.store.LoadCharacter(ctx, player.ID); err != nil {
				return nil, false, fmt.Errorf("failed to reload character: %w", err)
			}
			if char == nil {
				return nil, false, errors.WrapNotFound("character vanished after replay", character.ErrCharacterNotFound)
			}
		}
		return char, false, nil
	}

	class, ok := z.data.Class(z.def.DefaultClass)
	if !ok {
		return nil, false, errors.Internalf("zone %s has unknown default class %q", z.def.ID, z.def.DefaultClass)
	}
	base := combat.BaseStats(class)
	derived := combat.DeriveStats(class, base, gamedata.Bonuses{}, nil)
	spawn := z.def.SpawnPoint()

	char, err = z.store.CreateCharacter(ctx, character.NewCharacter{
		PlayerID:  player.ID,
		Name:      username,
		Class:     class.ID,
		Strength:  base.Strength,
		Dexterity: base.Dexterity,
		Intellect: base.Intellect,
		Vitality:  base.Vitality,
		HP:        derived.MaxHP,
		MP:        derived.MaxMP,
		ZoneID:    z.def.ID,
		X:         spawn[0],
		Y:         spawn[1],
		Z:         spawn[2],
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create character: %w", err)
	}
	return char, true, nil
}

func (z *Zone) replayPending(ctx context.Context, characterID int64, logger *slog.Logger) (bool, error) {
	entry, err := z.queue.Take(ctx, characterID)
	if err != nil {
		return false, errors.WrapExternal("failed to read save queue", err)
	}
	if entry == nil {
		return false, nil
	}

	if err := z.store.SaveCharacter(ctx, characterID, entry.State.Update()); err != nil {
		if perr := z.queue.Push(ctx, *entry); perr != nil {
			logger.Error("Failed to requeue pending save", "character_id", characterID, "error", perr)
		}
		return false, fmt.Errorf("failed to replay queued save: %w", err)
	}

	logger.Info("Replayed queued save", "character_id", characterID, "queued_at", entry.QueuedAt)
	return true, nil
}

// spawnPlayer runs on the tick goroutine. It returns nil when the session
// was abandoned or the zone is closing.
func (z *Zone) spawnPlayer(s *session, char *character.Character, snap *inventory.Snapshot) *JoinResult {
	if z.isClosing() {
		return nil
	}
	if err := s.transition(eventActivate); err != nil {
		return nil
	}

	class, ok := z.data.Class(char.Class)
	if !ok {
		z.logger.Warn("Unknown character class, using zone default", "character_id", char.ID, "class", char.Class)
		class, _ = z.data.Class(z.def.DefaultClass)
	}

	pos := mgl64.Vec3{char.X, char.Y, char.Z}
	revive := char.HP <= 0
	if revive || char.ZoneID != z.def.ID {
		pos = z.def.SpawnPoint()
	}

	cs := ecs.CombatStats{
		Class:      class.ID,
		Level:      max(char.Level, 1),
		Experience: max(char.Experience, 0),
		StatPoints: max(char.StatPoints, 0),
		Strength:   char.Strength,
		Dexterity:  char.Dexterity,
		Intellect:  char.Intellect,
		Vitality:   char.Vitality,
	}
	combat.ClampAttributes(class, &cs)

	w := z.world
	e := w.Create()
	w.Positions.Set(e, pos)
	w.Velocities.Set(e, mgl64.Vec3{})
	w.Stats.Set(e, cs)
	w.Healths.Set(e, ecs.Health{Current: char.HP})
	w.Manas.Set(e, ecs.Mana{Current: max(char.MP, 0)})
	w.Cooldowns.Set(e, ecs.SkillCooldown{})
	w.Targets.Set(e, ecs.Target{})
	w.AutoAttacks.Set(e, playerAutoAttack(class))
	w.Network.Set(e, ecs.NetworkIdentity{Session: s.id, CharacterID: char.ID, Name: char.Name})
	w.Tag(e, ecs.TagPlayer)

	z.inventories.Init(s.id, snap)
	z.resolver.Recompute(e)
	if revive {
		restoreVitals(w, e)
	}

	s.entity = e
	z.emit(event.Event{Kind: event.Spawn, Target: e})

	return &JoinResult{
		Session:     s.id,
		Entity:      e,
		CharacterID: char.ID,
		Name:        char.Name,
		Class:       class.ID,
	}
}

// Leave starts tearing a session down. The entity is marked departing on
// the next tick, its state is saved off the tick, and only then are the
// entity and inventory released.
func (z *Zone) Leave(id uuid.UUID) error {
	s := z.session(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if err := s.transition(eventLeave); err != nil {
		return fmt.Errorf("%w: %s", ErrNotActive, s.state.Current())
	}

	z.logger.Debug("Session leaving", "session", id, "character_id", s.characterID)

	z.saves.Add(1)
	z.post(func() {
		state := z.depart(s)
		go z.persist(s, state)
	})
	return nil
}

// depart freezes the session's entity and captures its final state.
func (z *Zone) depart(s *session) character.State {
	w := z.world
	e := s.entity

	w.Tag(e, ecs.TagDeparting)
	w.Velocities.Set(e, mgl64.Vec3{})
	if aa, ok := w.AutoAttacks.Get(e); ok {
		aa.Enabled = false
	}
	// In-flight projectiles would land after the capture below.
	w.Each(missileFilter, func(p ecs.Entity) {
		if w.Projectiles.Value(p).Owner == e {
			w.Destroy(p)
			z.emit(event.Event{Kind: event.Despawn, Target: p})
		}
	})
	s.sink = nil
	return z.capture(s)
}

// capture reads the character state of a session's entity and inventory.
func (z *Zone) capture(s *session) character.State {
	w := z.world
	e := s.entity
	pos := w.Positions.Value(e)
	cs := w.Stats.Value(e)

	state := character.State{
		ZoneID:     z.def.ID,
		X:          pos[0],
		Y:          pos[1],
		Z:          pos[2],
		Level:      cs.Level,
		Experience: cs.Experience,
		StatPoints: cs.StatPoints,
		Strength:   cs.Strength,
		Dexterity:  cs.Dexterity,
		Intellect:  cs.Intellect,
		Vitality:   cs.Vitality,
		HP:         w.Healths.Value(e).Current,
		MP:         w.Manas.Value(e).Current,
	}

	if inv, err := z.inventories.Get(s.id); err == nil {
		raw, err := inv.Snapshot().Marshal()
		if err != nil {
			z.logger.Error("Failed to encode inventory", "session", s.id, "error", err)
		} else {
			state.Inventory = raw
		}
	}
	return state
}

// persist saves a departing session with retries, falls back to the save
// queue, and then schedules the detach.
func (z *Zone) persist(s *session, state character.State) {
	defer z.saves.Done()
	logger := z.logger.With("operation", "persist", "session", s.id, "character_id", s.characterID)

	if err := z.saveWithRetry(s.characterID, state, logger); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), z.config.SaveTimeout)
		qerr := z.queue.Push(ctx, savequeue.Entry{CharacterID: s.characterID, State: state})
		cancel()

		if qerr != nil {
			logger.Error("abandoning save", "error", err, "queue_error", qerr)
		} else {
			logger.Warn("Character save deferred to queue", "error", err)
		}
	}

	z.post(func() {
		z.detach(s)
	})
}

func (z *Zone) saveWithRetry(characterID int64, state character.State, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= z.config.SaveRetries; attempt++ {
		z.persistMu.Lock()
		ctx, cancel := context.WithTimeout(context.Background(), z.config.SaveTimeout)
		err = z.store.SaveCharacter(ctx, characterID, state.Update())
		cancel()
		z.persistMu.Unlock()

		if err == nil {
			logger.Info("Character saved", "attempt", attempt)
			return nil
		}
		logger.Warn("Character save failed", "attempt", attempt, "error", err)
		if attempt < z.config.SaveRetries {
			time.Sleep(z.config.SaveRetryBackoff * time.Duration(attempt))
		}
	}
	return err
}

// detach removes a saved session's entity and inventory.
func (z *Zone) detach(s *session) {
	if s.entity != 0 && z.world.Alive(s.entity) {
		z.removeEntity(s.entity)
	}
	z.inventories.Release(s.id)
	if err := s.transition(eventDetach); err != nil {
		z.logger.Warn("Unexpected session state on detach", "session", s.id, "state", s.state.Current())
	}
	z.remove(s)
	z.logger.Info("Session detached", "session", s.id, "character_id", s.characterID)
}

// batchSave writes every active session in one transaction, off the tick.
// A batch still in flight makes this one a no-op.
func (z *Zone) batchSave() {
	logger := z.logger.With("operation", "batch_save")
	if !z.batching.CompareAndSwap(false, true) {
		logger.Warn("Previous batch save still running, skipping")
		return
	}

	sessions := z.activeSessions()
	entries := make([]character.BatchEntry, 0, len(sessions))
	owners := make([]*session, 0, len(sessions))
	for _, s := range sessions {
		if !z.world.Alive(s.entity) || z.world.Has(s.entity, ecs.TagDeparting) {
			continue
		}
		entries = append(entries, character.BatchEntry{CharacterID: s.characterID, State: z.capture(s)})
		owners = append(owners, s)
	}
	if len(entries) == 0 {
		z.batching.Store(false)
		return
	}

	z.saves.Add(1)
	go func() {
		defer z.saves.Done()
		defer z.batching.Store(false)

		z.persistMu.Lock()
		defer z.persistMu.Unlock()

		// A session that started leaving has a newer save of its own.
		kept := entries[:0]
		for i, e := range entries {
			if owners[i].is(StateActive) {
				kept = append(kept, e)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), z.config.SaveTimeout)
		defer cancel()
		if err := z.store.SaveCharactersBatch(ctx, kept); err != nil {
			logger.Error("Batch save failed", "characters", len(kept), "error", err)
			return
		}
		logger.Info("Batch save completed", "characters", len(kept))
	}()
}

// WaitSaves blocks until every save started so far has finished.
func (z *Zone) WaitSaves(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		z.saves.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown refuses new joins, leaves every active session and waits for
// their saves. The tick loop must still be running.
func (z *Zone) Shutdown(ctx context.Context) error {
	logger := z.logger.With("operation", "shutdown")

	z.mu.Lock()
	z.closing = true
	z.mu.Unlock()

	sessions := z.activeSessions()
	logger.Info("Shutting down zone", "sessions", len(sessions))
	for _, s := range sessions {
		if err := z.Leave(s.id); err != nil {
			logger.Warn("Failed to leave session", "session", s.id, "error", err)
		}
	}

	if err := z.WaitSaves(ctx); err != nil {
		logger.Error("Timed out waiting for saves", "error", err)
		return err
	}
	logger.Info("Zone shut down")
	return nil
}

func playerAutoAttack(class *gamedata.Class) ecs.AutoAttack {
	return ecs.AutoAttack{
		Interval: class.AttackInterval,
		Range:    class.AttackRange,
	}
}

func restoreVitals(w *ecs.World, e ecs.Entity) {
	if h, ok := w.Healths.Get(e); ok {
		h.Current = h.Max
	}
	if m, ok := w.Manas.Get(e); ok {
		m.Current = m.Max
	}
}
