package zone

import (
	stderrors "errors"
	"testing"

	"realm-server/internal/ecs"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"

	"github.com/go-gl/mathgl/mgl64"
)

func dogDefinition(pos []float64) Definition {
	def := testDefinition()
	def.Spawners = []SpawnerDefinition{{
		Monster:        "wild_dog",
		Position:       pos,
		Count:          1,
		RespawnSeconds: 12,
	}}
	return def
}

func onlyMonster(t *testing.T, z *Zone) ecs.Entity {
	t.Helper()
	monsters := z.world.Query(aiFilter)
	if len(monsters) != 1 {
		t.Fatalf("expected one living monster, got %d", len(monsters))
	}
	return monsters[0]
}

func TestSpawnerCreatesMonsterOnFirstTick(t *testing.T) {
	z := newTestZone(t, dogDefinition([]float64{20, 0, 0}), newFakeStore(), nil, nil)
	z.Tick(0.05)

	m := onlyMonster(t, z)
	w := z.world
	if got := w.Positions.Value(m); got != (mgl64.Vec3{20, 0, 0}) {
		t.Fatalf("expected monster at spawner, got %v", got)
	}
	if h := w.Healths.Value(m); h.Current != 60 || h.Max != 60 {
		t.Fatalf("expected wild dog HP 60/60, got %v/%v", h.Current, h.Max)
	}
	mon := w.Monsters.Value(m)
	if mon.Yang < 5 || mon.Yang > 15 {
		t.Fatalf("expected yang rolled in [5, 15], got %d", mon.Yang)
	}
	if w.AI.Value(m).Mode != ecs.AIIdle {
		t.Fatalf("expected idle monster, got %s", w.AI.Value(m).Mode)
	}

	z.Tick(0.05)
	if got := len(z.world.Query(aiFilter)); got != 1 {
		t.Fatalf("expected spawner not to double spawn, got %d monsters", got)
	}
}

func TestMonsterAggroChaseAndLeash(t *testing.T) {
	z := newTestZone(t, dogDefinition([]float64{6, 0, 0}), newFakeStore(), nil, nil)
	res, _ := mustJoin(t, z, "alice")
	w := z.world
	w.Positions.Set(res.Entity, mgl64.Vec3{0, 0, 0})

	m := onlyMonster(t, z)
	w.Positions.Set(m, mgl64.Vec3{6, 0, 0})
	ai, _ := w.AI.Get(m)
	ai.Mode = ecs.AIIdle
	z.disengage(m)

	z.Tick(0.05)
	if got := w.AI.Value(m).Mode; got != ecs.AIChase {
		t.Fatalf("expected chase after aggro, got %s", got)
	}
	if got := w.Targets.Value(m).Entity; got != res.Entity {
		t.Fatalf("expected monster to target player %d, got %d", res.Entity, got)
	}
	if got := w.Positions.Value(m)[0]; got >= 6 {
		t.Fatalf("expected monster to close in, got x %v", got)
	}

	// Player runs far beyond the leash.
	w.Positions.Set(res.Entity, mgl64.Vec3{200, 0, 0})
	w.Positions.Set(m, mgl64.Vec3{40, 0, 0})
	z.Tick(0.05)
	if got := w.AI.Value(m).Mode; got != ecs.AIReturn {
		t.Fatalf("expected return after leash, got %s", got)
	}
	if w.Targets.Value(m).Entity != 0 || w.AutoAttacks.Value(m).Enabled {
		t.Fatalf("expected target and auto-attack cleared on leash")
	}

	h, _ := w.Healths.Get(m)
	h.Current = 10
	for range 400 {
		z.Tick(0.05)
		if w.AI.Value(m).Mode == ecs.AIIdle {
			break
		}
	}
	if got := w.AI.Value(m).Mode; got != ecs.AIIdle {
		t.Fatalf("expected monster home and idle, got %s", got)
	}
	if got := w.Positions.Value(m); got != (mgl64.Vec3{6, 0, 0}) {
		t.Fatalf("expected monster at home, got %v", got)
	}
	if h := w.Healths.Value(m); h.Current != h.Max {
		t.Fatalf("expected monster healed on return, got %v/%v", h.Current, h.Max)
	}
}

func TestMonsterKillRewardsAndLootLock(t *testing.T) {
	z := newTestZone(t, dogDefinition([]float64{2, 0, 0}), newFakeStore(), nil, nil)
	alice, sink := mustJoin(t, z, "alice")
	bob, _ := mustJoin(t, z, "bob")
	w := z.world
	w.Positions.Set(alice.Entity, mgl64.Vec3{0, 0, 0})
	w.Positions.Set(bob.Entity, mgl64.Vec3{1, 0, 0})

	m := onlyMonster(t, z)
	w.Positions.Set(m, mgl64.Vec3{2, 0, 0})
	h, _ := w.Healths.Get(m)
	h.Current = 1
	yang := w.Monsters.Value(m).Yang

	z.Submit(alice.Session, Input{Kind: InputTarget, Target: m})
	z.Submit(alice.Session, Input{Kind: InputAttack, Attack: true})
	z.Tick(0.05)

	if !w.IsDead(m) {
		t.Fatalf("expected monster to die")
	}
	if got := w.Stats.Value(alice.Entity).Experience; got != 40 {
		t.Fatalf("expected 40 experience, got %d", got)
	}

	var yangLoot ecs.Entity
	for _, l := range w.Query(lootFilter) {
		drop := w.Loot.Value(l)
		if drop.OwnerHash != ownerHash(alice.CharacterID) || drop.LockRemaining <= 0 {
			t.Fatalf("expected loot locked to alice, got %+v", drop)
		}
		if drop.Yang > 0 {
			yangLoot = l
		}
	}
	if yangLoot == 0 || w.Loot.Value(yangLoot).Yang != yang {
		t.Fatalf("expected a yang drop of %d", yang)
	}

	deaths := 0
	for _, ev := range sink.last().Events {
		if ev.Kind == event.Death && ev.Target == m {
			deaths++
		}
	}
	if deaths != 1 {
		t.Fatalf("expected one death event, got %d", deaths)
	}

	bobSession := z.session(bob.Session)
	if err := z.pickup(bobSession, bob.Entity, yangLoot); !stderrors.Is(err, ErrLootLocked) {
		t.Fatalf("expected ErrLootLocked for bob, got %v", err)
	}

	z.Submit(alice.Session, Input{Kind: InputPickup, Loot: yangLoot})
	z.Tick(0.05)
	inv, _ := z.inventories.Get(alice.Session)
	if inv.Yang != yang {
		t.Fatalf("expected %d yang after pickup, got %d", yang, inv.Yang)
	}

	sp := w.Query(spawnerFilter)[0]
	if got := w.Spawners.Value(sp); got.Alive != 0 || got.Remaining <= 0 {
		t.Fatalf("expected spawner waiting to respawn, got %+v", got)
	}

	// Corpse lingers, then disappears.
	for range 120 {
		z.Tick(0.05)
	}
	if w.Alive(m) && w.Has(m, ecs.CompMonster) && w.IsDead(m) {
		t.Fatalf("expected corpse to be removed")
	}
}

func TestLeaveCancelsInFlightProjectiles(t *testing.T) {
	store := newFakeStore()
	z := newTestZone(t, dogDefinition([]float64{2, 0, 0}), store, nil, nil)
	alice, _ := mustJoin(t, z, "alice")
	w := z.world

	m := onlyMonster(t, z)
	h, _ := w.Healths.Get(m)
	h.Current = 1

	p := w.Create()
	w.Positions.Set(p, w.Positions.Value(m))
	w.Projectiles.Set(p, ecs.Projectile{Owner: alice.Entity, Target: m, Speed: 10, Damage: 50, Lifetime: 1})

	leavePlayer(t, z, alice.Session)

	if w.IsDead(m) {
		t.Fatalf("expected monster to survive a projectile from a departed player")
	}
	if w.Alive(p) && w.Has(p, ecs.CompProjectile) {
		t.Fatalf("expected projectile to be despawned on leave")
	}
	if got := store.character(alice.CharacterID).Experience; got != 0 {
		t.Fatalf("expected 0 persisted experience, got %d", got)
	}
}

func TestDepartingKillerGetsNoReward(t *testing.T) {
	z := newTestZone(t, dogDefinition([]float64{2, 0, 0}), newFakeStore(), nil, nil)
	alice, _ := mustJoin(t, z, "alice")
	w := z.world
	m := onlyMonster(t, z)

	w.Tag(alice.Entity, ecs.TagDeparting)
	z.reward(m, ecs.Monster{Template: "wild_dog", LastAttacker: alice.Entity, Experience: 40, Yang: 10})

	if got := w.Stats.Value(alice.Entity).Experience; got != 0 {
		t.Fatalf("expected no experience while departing, got %d", got)
	}
	drops := w.Query(lootFilter)
	if len(drops) == 0 {
		t.Fatalf("expected loot to drop")
	}
	for _, l := range drops {
		if drop := w.Loot.Value(l); drop.OwnerHash != 0 || drop.LockRemaining != 0 {
			t.Fatalf("expected unlocked loot, got %+v", drop)
		}
	}
}

func TestLootExpires(t *testing.T) {
	z := newTestZone(t, testDefinition(), newFakeStore(), nil, nil)
	loot := z.spawnLoot(mgl64.Vec3{}, ecs.LootDrop{ItemID: "forge_stone", Quantity: 1, Remaining: 0.1})

	z.Tick(0.05)
	if !z.world.Alive(loot) {
		t.Fatalf("expected loot to still be on the ground")
	}
	z.Tick(0.06)
	if z.world.Alive(loot) {
		t.Fatalf("expected loot to expire")
	}
}

func TestRemoveEntityClearsReferences(t *testing.T) {
	z := newTestZone(t, testDefinition(), newFakeStore(), nil, nil)
	w := z.world

	victim := w.Create()
	w.Positions.Set(victim, mgl64.Vec3{})
	hunter := w.Create()
	w.Targets.Set(hunter, ecs.Target{Entity: victim})
	w.Monsters.Set(hunter, ecs.Monster{LastAttacker: victim})
	missile := w.Create()
	w.Projectiles.Set(missile, ecs.Projectile{Target: victim})

	z.removeEntity(victim)

	if w.Targets.Value(hunter).Entity != 0 {
		t.Fatalf("expected target reference cleared")
	}
	if w.Monsters.Value(hunter).LastAttacker != 0 {
		t.Fatalf("expected last attacker cleared")
	}
	if w.Alive(missile) {
		t.Fatalf("expected projectile aimed at removed entity to be destroyed")
	}
}

func TestParseDefinitions(t *testing.T) {
	data := gamedata.Default()

	defs, err := LoadDefinitions("", data, "warrior")
	if err != nil {
		t.Fatalf("expected embedded zones to load, got %v", err)
	}
	if len(defs) < 2 || defs[0].ID != "village" {
		t.Fatalf("expected village first among embedded zones, got %+v", defs)
	}

	tests := []struct {
		name string
		raw  string
	}{
		{"no zones", ``},
		{"missing id", "[[zone]]\ndefault_class = \"warrior\"\nspawn = [0.0, 0.0, 0.0]\n"},
		{"unknown class", "[[zone]]\nid = \"a\"\ndefault_class = \"bard\"\nspawn = [0.0, 0.0, 0.0]\n"},
		{"short spawn", "[[zone]]\nid = \"a\"\ndefault_class = \"warrior\"\nspawn = [0.0]\n"},
		{"unknown monster", "[[zone]]\nid = \"a\"\ndefault_class = \"warrior\"\nspawn = [0.0, 0.0, 0.0]\n[[zone.spawner]]\nmonster = \"dragon\"\nposition = [0.0, 0.0, 0.0]\n"},
		{"duplicate id", "[[zone]]\nid = \"a\"\ndefault_class = \"warrior\"\nspawn = [0.0, 0.0, 0.0]\n[[zone]]\nid = \"a\"\ndefault_class = \"warrior\"\nspawn = [0.0, 0.0, 0.0]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDefinitions([]byte(tt.raw), data, ""); err == nil {
				t.Fatalf("expected %s to be rejected", tt.name)
			}
		})
	}

	defs, err = ParseDefinitions([]byte("[[zone]]\nid = \"a\"\nspawn = [0.0, 0.0, 0.0]\n"), data, "ninja")
	if err != nil || defs[0].DefaultClass != "ninja" || defs[0].Name != "a" {
		t.Fatalf("expected fallback class and name, got %+v, %v", defs, err)
	}
}

func TestSpawnerPointsSpread(t *testing.T) {
	s := SpawnerDefinition{Position: []float64{10, 0, 10}, Count: 4, Spread: 2}
	points := s.Points()
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}
	for _, p := range points {
		if d := p.Sub(mgl64.Vec3{10, 0, 10}).Len(); d < 1.999 || d > 2.001 {
			t.Fatalf("expected every point 2 units from center, got %v", d)
		}
	}

	single := SpawnerDefinition{Position: []float64{1, 2, 3}, Spread: 5}
	if got := single.Points(); len(got) != 1 || got[0] != (mgl64.Vec3{1, 2, 3}) {
		t.Fatalf("expected single point at center, got %v", got)
	}
}

func TestManagerLookup(t *testing.T) {
	data := gamedata.Default()
	defs, err := LoadDefinitions("", data, "warrior")
	if err != nil {
		t.Fatalf("expected embedded zones to load, got %v", err)
	}
	m := NewManager(defs, Config{Seed: 1}, data, newFakeStore(), nil)

	z, err := m.Zone("")
	if err != nil || z.ID() != "village" {
		t.Fatalf("expected default zone village, got %v, %v", z, err)
	}
	if _, err := m.Zone("atlantis"); !stderrors.Is(err, ErrUnknownZone) {
		t.Fatalf("expected ErrUnknownZone, got %v", err)
	}
	if got := len(m.Statuses()); got != len(defs) {
		t.Fatalf("expected %d statuses, got %d", len(defs), got)
	}
}
