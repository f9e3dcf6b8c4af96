package combat

import (
	"errors"
	"math"
	"testing"

	"realm-server/internal/ecs"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"

	"github.com/go-gl/mathgl/mgl64"
)

type fixedRoll float64

func (f fixedRoll) Float64() float64 { return float64(f) }

// noCrit never rolls under any crit chance.
const noCrit = fixedRoll(0.999)

func newTestResolver(t *testing.T, rng Roller) (*Resolver, *ecs.World) {
	t.Helper()
	w := ecs.NewWorld(16)
	return NewResolver(w, gamedata.Default(), rng, nil), w
}

func spawnCharacter(t *testing.T, r *Resolver, w *ecs.World, classID string, pos mgl64.Vec3) ecs.Entity {
	t.Helper()
	class, ok := r.data.Class(classID)
	if !ok {
		t.Fatalf("unknown class %q", classID)
	}
	e := w.Create()
	w.Positions.Set(e, pos)
	w.Stats.Set(e, BaseStats(class))
	w.Healths.Set(e, ecs.Health{})
	w.Manas.Set(e, ecs.Mana{})
	w.Cooldowns.Set(e, ecs.SkillCooldown{})
	r.Recompute(e)

	h, _ := w.Healths.Get(e)
	h.Current = h.Max
	m, _ := w.Manas.Get(e)
	m.Current = m.Max
	return e
}

func spawnDummy(w *ecs.World, pos mgl64.Vec3, defense, hp float64) ecs.Entity {
	e := w.Create()
	w.Positions.Set(e, pos)
	w.Healths.Set(e, ecs.Health{Current: hp, Max: hp})
	w.Stats.Set(e, ecs.CombatStats{Level: 1, Defense: defense})
	return e
}

func target(w *ecs.World, caster, t ecs.Entity) {
	w.Targets.Set(caster, ecs.Target{Entity: t})
}

func TestHeroMeleeScenario(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{2, 0, 0}, 5, 200)
	target(w, hero, dummy)

	if got := w.Healths.Value(hero); got.Current != 100 || got.Max != 100 {
		t.Fatalf("expected hero HP 100/100, got %v/%v", got.Current, got.Max)
	}
	if got := w.Manas.Value(hero).Current; got != 50 {
		t.Fatalf("expected hero mana 50, got %v", got)
	}
	if got := w.Stats.Value(hero).AttackPower; got != 26 {
		t.Fatalf("expected attack power 26, got %v", got)
	}

	res, err := r.Resolve(hero, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if got := w.Manas.Value(hero).Current; got != 40 {
		t.Fatalf("expected mana 40, got %v", got)
	}
	if got := w.Cooldowns.Value(hero).Remaining[0]; got != 2 {
		t.Fatalf("expected cooldown 2, got %v", got)
	}
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}

	ev := res.Events[0]
	hp := w.Healths.Value(dummy).Current
	if ev.Kind != event.Damage || ev.Amount != 34 || hp != 166 {
		t.Fatalf("expected 34 damage leaving 166, got %+v with hp %v", ev, hp)
	}
	if ev.RemainingHP == nil || *ev.RemainingHP != hp {
		t.Fatalf("expected remaining hp %v in event, got %v", hp, ev.RemainingHP)
	}
}

type snapshot struct {
	mana      float64
	cooldowns [ecs.SkillSlots]float64
	targetHP  float64
	hasBuff   bool
	casterPos mgl64.Vec3
}

func take(w *ecs.World, caster, tgt ecs.Entity) snapshot {
	return snapshot{
		mana:      w.Manas.Value(caster).Current,
		cooldowns: w.Cooldowns.Value(caster).Remaining,
		targetHP:  w.Healths.Value(tgt).Current,
		hasBuff:   w.Buffs.Has(caster),
		casterPos: w.Positions.Value(caster),
	}
}

func TestFailedPreconditionsMutateNothing(t *testing.T) {
	tests := []struct {
		name  string
		slot  int
		setup func(w *ecs.World, caster, tgt ecs.Entity)
		want  error
	}{
		{
			name: "invalid slot",
			slot: 2,
			want: ErrInvalidSlot,
		},
		{
			name:  "dead caster",
			setup: func(w *ecs.World, c, _ ecs.Entity) { w.Tag(c, ecs.TagDead) },
			want:  ErrCasterDead,
		},
		{
			name: "on cooldown",
			setup: func(w *ecs.World, c, _ ecs.Entity) {
				cd, _ := w.Cooldowns.Get(c)
				cd.Remaining[0] = 0.5
			},
			want: ErrOnCooldown,
		},
		{
			name: "not enough mana",
			setup: func(w *ecs.World, c, _ ecs.Entity) {
				m, _ := w.Manas.Get(c)
				m.Current = 9
			},
			want: ErrInsufficientMana,
		},
		{
			name:  "no target",
			setup: func(w *ecs.World, c, _ ecs.Entity) { w.Targets.Set(c, ecs.Target{}) },
			want:  ErrNoTarget,
		},
		{
			name:  "dead target",
			setup: func(w *ecs.World, _, tgt ecs.Entity) { w.Tag(tgt, ecs.TagDead) },
			want:  ErrNoTarget,
		},
		{
			name: "target out of range",
			setup: func(w *ecs.World, _, tgt ecs.Entity) {
				w.Positions.Set(tgt, mgl64.Vec3{3.01, 0, 0})
			},
			want: ErrTargetOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, w := newTestResolver(t, noCrit)
			caster := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
			tgt := spawnDummy(w, mgl64.Vec3{2, 0, 0}, 5, 200)
			target(w, caster, tgt)
			if tt.setup != nil {
				tt.setup(w, caster, tgt)
			}

			before := take(w, caster, tgt)
			res, err := r.Resolve(caster, tt.slot)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(res.Events) != 0 || len(res.Projectiles) != 0 {
				t.Fatalf("expected no output, got %+v", res)
			}
			if after := take(w, caster, tgt); after != before {
				t.Fatalf("state changed: before %+v after %+v", before, after)
			}
		})
	}
}

func TestRangeCheckIsInclusive(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	caster := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	tgt := spawnDummy(w, mgl64.Vec3{3, 0, 0}, 0, 200)
	target(w, caster, tgt)

	if _, err := r.Resolve(caster, 0); err != nil {
		t.Fatalf("expected target at exactly skill range to be hit, got %v", err)
	}
}

func TestScalingValue(t *testing.T) {
	cs := ecs.CombatStats{AttackPower: 20, Dexterity: 10, Vitality: 7}

	tests := []struct {
		attr gamedata.Attribute
		want float64
	}{
		{gamedata.Strength, 20},
		{gamedata.Intellect, 50},
		{gamedata.Dexterity, 30},
	}
	for _, tt := range tests {
		if got := ScalingValue(cs, tt.attr); got != tt.want {
			t.Fatalf("%s: expected %v, got %v", tt.attr, tt.want, got)
		}
	}
}

func TestCritScalesBeforeDefense(t *testing.T) {
	r, w := newTestResolver(t, fixedRoll(0))
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{1, 0, 0}, 5, 200)
	target(w, hero, dummy)

	res, err := r.Resolve(hero, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ev := res.Events[0]
	if !ev.Crit || ev.Amount != 39*1.5-5 {
		t.Fatalf("expected crit for %v, got %+v", 39*1.5-5, ev)
	}
}

func TestMagicalSkillHalvesDefense(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	sura := spawnCharacter(t, r, w, "sura", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{1, 0, 0}, 10, 500)
	target(w, sura, dummy)

	// AP 22, intellect scaling 55 x 0.8 = 44, defense 10 halved.
	res, err := r.Resolve(sura, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := res.Events[0].Amount; math.Abs(got-39) > 1e-9 {
		t.Fatalf("expected 39 damage, got %v", got)
	}
}

func TestMinimumDamage(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	wall := spawnDummy(w, mgl64.Vec3{1, 0, 0}, 1000, 50)
	target(w, hero, wall)

	res, err := r.Resolve(hero, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Events[0].Amount != 1 {
		t.Fatalf("expected minimum damage 1, got %v", res.Events[0].Amount)
	}
}

func TestLethalHitEmitsDeath(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{1, 0, 0}, 0, 10)
	target(w, hero, dummy)

	res, err := r.Resolve(hero, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(res.Events) != 2 || res.Events[1].Kind != event.Death {
		t.Fatalf("expected damage then death, got %+v", res.Events)
	}
	if *res.Events[0].RemainingHP != 0 || !w.IsDead(dummy) {
		t.Fatalf("expected dummy dead at 0 hp")
	}
}

func TestDashStopsOneUnitShort(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	ninja := spawnCharacter(t, r, w, "ninja", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{6, 0, 0}, 0, 500)
	target(w, ninja, dummy)

	if _, err := r.Resolve(ninja, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pos := w.Positions.Value(ninja)
	if !pos.ApproxEqual(mgl64.Vec3{5, 0, 0}) {
		t.Fatalf("expected ninja at (5,0,0), got %v", pos)
	}
}

func TestDashWithinOneUnitDoesNotMove(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	ninja := spawnCharacter(t, r, w, "ninja", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{0.5, 0, 0}, 0, 500)
	target(w, ninja, dummy)

	if _, err := r.Resolve(ninja, 1); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pos := w.Positions.Value(ninja); pos != (mgl64.Vec3{}) {
		t.Fatalf("expected no reposition, got %v", pos)
	}
}

func TestProjectileDamageLandsOnImpact(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	ninja := spawnCharacter(t, r, w, "ninja", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{10, 0, 0}, 5, 500)
	target(w, ninja, dummy)

	res, err := r.Resolve(ninja, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(res.Projectiles) != 1 || res.Events[0].Kind != event.ProjectileSpawn {
		t.Fatalf("expected one projectile spawn, got %+v", res)
	}
	if w.Healths.Value(dummy).Current != 500 {
		t.Fatalf("damage must not apply at cast time")
	}

	// AP 14, dexterity scaling 24 + 7 = 31 x 1.4, defense 5 at 30% penetration.
	spawn := res.Projectiles[0]
	if math.Abs(spawn.Damage-(31*1.4-3.5)) > 1e-9 {
		t.Fatalf("unexpected precomputed damage %v", spawn.Damage)
	}

	if events := r.TickProjectiles(0.25); len(events) != 0 {
		t.Fatalf("expected projectile in flight, got %+v", events)
	}
	events := r.TickProjectiles(0.25)
	if len(events) != 2 || events[0].Kind != event.Damage || events[1].Kind != event.Despawn {
		t.Fatalf("expected damage then despawn, got %+v", events)
	}
	if got := w.Healths.Value(dummy).Current; math.Abs(got-(500-spawn.Damage)) > 1e-9 {
		t.Fatalf("expected hp %v, got %v", 500-spawn.Damage, got)
	}
	if w.Alive(spawn.Entity) {
		t.Fatalf("expected projectile destroyed")
	}
}

func TestProjectileFizzlesOnDeadTarget(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	ninja := spawnCharacter(t, r, w, "ninja", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{10, 0, 0}, 0, 500)
	target(w, ninja, dummy)

	res, err := r.Resolve(ninja, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	w.Tag(dummy, ecs.TagDead)

	events := r.TickProjectiles(0.05)
	if len(events) != 1 || events[0].Kind != event.Despawn {
		t.Fatalf("expected silent despawn, got %+v", events)
	}
	if w.Alive(res.Projectiles[0].Entity) {
		t.Fatalf("expected projectile destroyed")
	}
	if w.Healths.Value(dummy).Current != 500 {
		t.Fatalf("dead target must not take damage")
	}
}

func TestProjectileLandsOnExpiry(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	ninja := spawnCharacter(t, r, w, "ninja", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{10, 0, 0}, 0, 500)
	target(w, ninja, dummy)

	if _, err := r.Resolve(ninja, 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	w.Positions.Set(dummy, mgl64.Vec3{1000, 0, 0})

	events := r.TickProjectiles(2)
	if len(events) != 2 || events[0].Kind != event.Damage {
		t.Fatalf("expected damage on expiry, got %+v", events)
	}
}

func TestSelfBuffAndExpiry(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})

	res, err := r.Resolve(hero, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Events[0].Kind != event.Buff || res.Events[0].BuffID != "berserk" {
		t.Fatalf("expected berserk buff event, got %+v", res.Events)
	}
	if got := w.Stats.Value(hero).AttackPower; got != 41 {
		t.Fatalf("expected buffed AP 41, got %v", got)
	}

	if events := r.TickBuffs(19); len(events) != 0 {
		t.Fatalf("buff expired early")
	}
	events := r.TickBuffs(1)
	if len(events) != 1 || events[0].Kind != event.BuffExpired {
		t.Fatalf("expected expiry event, got %+v", events)
	}
	if w.Buffs.Has(hero) {
		t.Fatalf("expected buff removed")
	}
	if got := w.Stats.Value(hero).AttackPower; got != 26 {
		t.Fatalf("expected AP back to 26, got %v", got)
	}
}

func TestHealTargetsSelfAndClamps(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	shaman := spawnCharacter(t, r, w, "shaman", mgl64.Vec3{})
	other := spawnDummy(w, mgl64.Vec3{1, 0, 0}, 0, 50)
	w.Healths.Set(other, ecs.Health{Current: 10, Max: 50})
	target(w, shaman, other)

	h, _ := w.Healths.Get(shaman)
	h.Current = h.Max - 5

	res, err := r.Resolve(shaman, 1)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := w.Healths.Value(shaman); got.Current != got.Max {
		t.Fatalf("expected full health, got %v/%v", got.Current, got.Max)
	}
	ev := res.Events[0]
	if ev.Kind != event.HealKind || ev.Target != shaman || ev.Amount != 5 {
		t.Fatalf("expected self heal of 5, got %+v", ev)
	}
	if w.Healths.Value(other).Current != 10 {
		t.Fatalf("heal must not affect the selected target")
	}
}

func TestTickCooldownsFloorsAtZero(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	e := w.Create()
	w.Cooldowns.Set(e, ecs.SkillCooldown{Remaining: [ecs.SkillSlots]float64{0.04, 1}})

	r.TickCooldowns(0.05)
	got := w.Cooldowns.Value(e).Remaining
	if got[0] != 0 || math.Abs(got[1]-0.95) > 1e-9 {
		t.Fatalf("unexpected cooldowns %v", got)
	}
}

func TestAutoAttack(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	dummy := spawnDummy(w, mgl64.Vec3{2, 0, 0}, 5, 200)
	target(w, hero, dummy)
	w.AutoAttacks.Set(hero, ecs.AutoAttack{Enabled: true, Interval: 1, Range: 2.5})

	events := r.TickAutoAttacks(0.05)
	if len(events) != 1 || events[0].Amount != 21 || events[0].SkillID != AutoAttackSkillID {
		t.Fatalf("expected 21 auto-attack damage, got %+v", events)
	}
	if events := r.TickAutoAttacks(0.5); len(events) != 0 {
		t.Fatalf("expected interval to gate the next attack")
	}

	w.Positions.Set(dummy, mgl64.Vec3{10, 0, 0})
	if events := r.TickAutoAttacks(1); len(events) != 0 {
		t.Fatalf("expected out of range target to be skipped")
	}
	if got := w.AutoAttacks.Value(hero).Remaining; got != 0 {
		t.Fatalf("expected attack to wait ready, got %v", got)
	}
}

func TestGrantExperienceLevelsUp(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	h, _ := w.Healths.Get(hero)
	h.Current = 1

	events := r.GrantExperience(hero, 450)
	cs := w.Stats.Value(hero)
	if cs.Level != 2 || cs.Experience != 350 || cs.StatPoints != 3 {
		t.Fatalf("expected level 2 with 350 exp and 3 points, got %+v", cs)
	}
	if len(events) != 1 || events[0].Kind != event.LevelUp || events[0].Level != 2 {
		t.Fatalf("expected level up event, got %+v", events)
	}
	if got := w.Healths.Value(hero); got.Current != got.Max || got.Max != 125 {
		t.Fatalf("expected full restore at 125 max hp, got %+v", got)
	}
	if r.GrantExperience(hero, 10) != nil {
		t.Fatalf("expected no event without level up")
	}
}

func TestGrantExperienceSkipsDeparting(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})
	w.Tag(hero, ecs.TagDeparting)

	if events := r.GrantExperience(hero, 450); events != nil {
		t.Fatalf("expected no events, got %+v", events)
	}
	if cs := w.Stats.Value(hero); cs.Level != 1 || cs.Experience != 0 {
		t.Fatalf("expected untouched progression, got %+v", cs)
	}
}

func TestAllocateStat(t *testing.T) {
	r, w := newTestResolver(t, noCrit)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})

	if err := r.AllocateStat(hero, gamedata.Strength); !errors.Is(err, ErrNoStatPoints) {
		t.Fatalf("expected ErrNoStatPoints, got %v", err)
	}

	cs, _ := w.Stats.Get(hero)
	cs.StatPoints = 1
	if err := r.AllocateStat(hero, "luck"); !errors.Is(err, ErrInvalidAttribute) {
		t.Fatalf("expected ErrInvalidAttribute, got %v", err)
	}
	if err := r.AllocateStat(hero, gamedata.Strength); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	got := w.Stats.Value(hero)
	if got.Strength != 13 || got.StatPoints != 0 || got.AttackPower != 28 {
		t.Fatalf("expected STR 13, 0 points, AP 28, got %+v", got)
	}
}

func TestEquipmentBonusesFeedDerivedStats(t *testing.T) {
	w := ecs.NewWorld(4)
	bonus := func(ecs.Entity) gamedata.Bonuses {
		return gamedata.Bonuses{Attack: 10, Defense: 4, CritChance: 1}
	}
	r := NewResolver(w, gamedata.Default(), noCrit, bonus)
	hero := spawnCharacter(t, r, w, "warrior", mgl64.Vec3{})

	cs := w.Stats.Value(hero)
	if cs.AttackPower != 36 || cs.Defense != 10 || cs.CritChance != MaxCritChance {
		t.Fatalf("unexpected derived stats %+v", cs)
	}
}
