package zone

import (
	"context"
	"sync"
	"testing"
	"time"

	"realm-server/internal/character"
	"realm-server/internal/combat"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"
	"realm-server/internal/savequeue"
	"realm-server/internal/shared/errors"

	"github.com/google/uuid"
)

type fixedRoll float64

func (f fixedRoll) Float64() float64 { return float64(f) }

// fakeStore is an in-memory CharacterStore with a unique name index.
type fakeStore struct {
	mu         sync.Mutex
	players    map[string]*character.Player
	characters map[int64]*character.Character
	nextPlayer int64
	nextChar   int64

	saveErr  error
	saves    int
	batchErr error
	batches  [][]character.BatchEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		players:    make(map[string]*character.Player),
		characters: make(map[int64]*character.Character),
	}
}

func (f *fakeStore) FindOrCreatePlayer(_ context.Context, username string) (*character.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.players[username]; ok {
		p.LastSeenAt = time.Now()
		cp := *p
		return &cp, nil
	}
	f.nextPlayer++
	p := &character.Player{ID: f.nextPlayer, Username: username, JoinedAt: time.Now(), LastSeenAt: time.Now()}
	f.players[username] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) LoadCharacter(_ context.Context, playerID int64) (*character.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *character.Character
	for _, c := range f.characters {
		if c.PlayerID == playerID && (latest == nil || c.UpdatedAt.After(latest.UpdatedAt)) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) CreateCharacter(_ context.Context, nc character.NewCharacter) (*character.Character, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.characters {
		if c.Name == nc.Name {
			return nil, errors.WrapConflict("character name already taken", character.ErrCharacterNameTaken)
		}
	}
	f.nextChar++
	c := &character.Character{
		ID:        f.nextChar,
		PlayerID:  nc.PlayerID,
		Name:      nc.Name,
		Class:     nc.Class,
		Level:     1,
		Strength:  nc.Strength,
		Dexterity: nc.Dexterity,
		Intellect: nc.Intellect,
		Vitality:  nc.Vitality,
		HP:        nc.HP,
		MP:        nc.MP,
		ZoneID:    nc.ZoneID,
		X:         nc.X,
		Y:         nc.Y,
		Z:         nc.Z,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.characters[c.ID] = c
	cp := *c
	return &cp, nil
}

func (f *fakeStore) SaveCharacter(_ context.Context, id int64, upd character.CharacterUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	c, ok := f.characters[id]
	if !ok {
		return errors.WrapNotFound("character not found", character.ErrCharacterNotFound)
	}
	applyUpdate(c, upd)
	f.saves++
	return nil
}

func (f *fakeStore) SaveCharactersBatch(_ context.Context, entries []character.BatchEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	for _, e := range entries {
		if c, ok := f.characters[e.CharacterID]; ok {
			applyUpdate(c, e.State.Update())
		}
	}
	f.batches = append(f.batches, entries)
	return nil
}

// edit changes a stored character the way an operator console would.
func (f *fakeStore) edit(id int64, fn func(c *character.Character)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.characters[id])
	f.characters[id].UpdatedAt = time.Now()
}

func (f *fakeStore) character(id int64) character.Character {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.characters[id]
}

func (f *fakeStore) counts() (players, characters int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.players), len(f.characters)
}

func (f *fakeStore) setSaveErr(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}

func applyUpdate(c *character.Character, u character.CharacterUpdate) {
	if u.ZoneID != nil {
		c.ZoneID = *u.ZoneID
	}
	if u.X != nil {
		c.X = *u.X
	}
	if u.Y != nil {
		c.Y = *u.Y
	}
	if u.Z != nil {
		c.Z = *u.Z
	}
	if u.Level != nil {
		c.Level = *u.Level
	}
	if u.Experience != nil {
		c.Experience = *u.Experience
	}
	if u.StatPoints != nil {
		c.StatPoints = *u.StatPoints
	}
	if u.Strength != nil {
		c.Strength = *u.Strength
	}
	if u.Dexterity != nil {
		c.Dexterity = *u.Dexterity
	}
	if u.Intellect != nil {
		c.Intellect = *u.Intellect
	}
	if u.Vitality != nil {
		c.Vitality = *u.Vitality
	}
	if u.HP != nil {
		c.HP = *u.HP
	}
	if u.MP != nil {
		c.MP = *u.MP
	}
	if u.Inventory != nil {
		c.Inventory = u.Inventory
	}
	c.UpdatedAt = time.Now()
}

type recordingSink struct {
	mu     sync.Mutex
	frames []*event.Frame
	reject bool
}

func (s *recordingSink) Send(frame *event.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject {
		return false
	}
	s.frames = append(s.frames, frame)
	return true
}

func (s *recordingSink) last() *event.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

func testDefinition() Definition {
	return Definition{
		ID:           "test",
		Name:         "Test Zone",
		DefaultClass: "warrior",
		Spawn:        []float64{0, 0, 0},
	}
}

func newTestZone(t *testing.T, def Definition, store CharacterStore, queue SaveQueue, mutate func(*Config)) *Zone {
	t.Helper()
	cfg := Config{
		MaxInputsPerTick: 8,
		SaveRetries:      2,
		SaveRetryBackoff: time.Millisecond,
		SaveTimeout:      time.Second,
		Seed:             1,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	if queue == nil {
		queue = savequeue.New(nil, "test:pending_saves")
	}
	z := New(def, cfg, gamedata.Default(), store, queue)
	z.resolver = combat.NewResolver(z.world, z.data, fixedRoll(0.999), z.equipmentBonuses)
	return z
}

// pump ticks z until done reports true.
func pump(t *testing.T, z *Zone, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out pumping zone ticks")
		}
		z.Tick(0.05)
		time.Sleep(time.Millisecond)
	}
}

type joinOutcome struct {
	result *JoinResult
	err    error
}

func joinPlayer(t *testing.T, z *Zone, username string) (*JoinResult, *recordingSink, error) {
	t.Helper()
	sink := &recordingSink{}
	id := uuid.New()
	done := make(chan joinOutcome, 1)
	go func() {
		res, err := z.Join(context.Background(), id, username, sink)
		done <- joinOutcome{res, err}
	}()

	var out joinOutcome
	pump(t, z, func() bool {
		select {
		case out = <-done:
			return true
		default:
			return false
		}
	})
	return out.result, sink, out.err
}

func mustJoin(t *testing.T, z *Zone, username string) (*JoinResult, *recordingSink) {
	t.Helper()
	res, sink, err := joinPlayer(t, z, username)
	if err != nil {
		t.Fatalf("expected join to succeed, got %v", err)
	}
	return res, sink
}

func leavePlayer(t *testing.T, z *Zone, id uuid.UUID) {
	t.Helper()
	if err := z.Leave(id); err != nil {
		t.Fatalf("expected leave to succeed, got %v", err)
	}
	pump(t, z, func() bool {
		return z.session(id) == nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := z.WaitSaves(ctx); err != nil {
		t.Fatalf("expected saves to finish, got %v", err)
	}
}
