// Package combat resolves skills, auto-attacks and projectiles against a
// zone's component store.
package combat

import (
	"errors"

	"realm-server/internal/ecs"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrInvalidSlot      = errors.New("invalid skill slot")
	ErrCasterDead       = errors.New("caster is dead")
	ErrNoSkill          = errors.New("no skill bound to slot")
	ErrOnCooldown       = errors.New("skill on cooldown")
	ErrInsufficientMana = errors.New("insufficient mana")
	ErrNoTarget         = errors.New("no valid target")
	ErrTargetOutOfRange = errors.New("target out of range")
	ErrNoStatPoints     = errors.New("no unspent stat points")
	ErrInvalidAttribute = errors.New("invalid attribute")
	ErrNotAllocatable   = errors.New("entity has no class")
)

// dashStopDistance is how far short of its target a dash ends.
const dashStopDistance = 1.0

// BonusFunc reports the equipment bonuses of an entity.
type BonusFunc func(e ecs.Entity) gamedata.Bonuses

// ProjectileSpawn describes a projectile created by a skill.
type ProjectileSpawn struct {
	Entity  ecs.Entity
	Owner   ecs.Entity
	Target  ecs.Entity
	SkillID string
	Damage  float64
	Crit    bool
	Magical bool
}

type Result struct {
	Events      []event.Event
	Projectiles []ProjectileSpawn
}

// Resolver applies combat rules to one world. Like the world, it belongs to
// a single zone goroutine.
type Resolver struct {
	world     *ecs.World
	data      *gamedata.Data
	rng       Roller
	equipment BonusFunc
}

func NewResolver(world *ecs.World, data *gamedata.Data, rng Roller, equipment BonusFunc) *Resolver {
	if equipment == nil {
		equipment = func(ecs.Entity) gamedata.Bonuses { return gamedata.Bonuses{} }
	}
	return &Resolver{
		world:     world,
		data:      data,
		rng:       rng,
		equipment: equipment,
	}
}

// Resolve casts the skill bound to slot. A failed precondition returns its
// sentinel error and leaves the world untouched.
func (r *Resolver) Resolve(caster ecs.Entity, slot int) (Result, error) {
	w := r.world

	if slot < 0 || slot >= ecs.SkillSlots {
		return Result{}, ErrInvalidSlot
	}
	if w.IsDead(caster) || w.Has(caster, ecs.TagDeparting) {
		return Result{}, ErrCasterDead
	}

	cs, ok := w.Stats.Get(caster)
	if !ok {
		return Result{}, ErrNoSkill
	}
	skill, ok := r.data.ClassSkill(cs.Class, slot)
	if !ok {
		return Result{}, ErrNoSkill
	}

	cd, ok := w.Cooldowns.Get(caster)
	if !ok {
		return Result{}, ErrNoSkill
	}
	if cd.Remaining[slot] > 0 {
		return Result{}, ErrOnCooldown
	}

	mana, ok := w.Manas.Get(caster)
	if !ok || mana.Current < skill.ManaCost {
		return Result{}, ErrInsufficientMana
	}

	var target ecs.Entity
	if skill.Type.Targeted() {
		target = w.Targets.Value(caster).Entity
		if target == 0 || target == caster || !w.Match(target, ecs.Targetable) {
			return Result{}, ErrNoTarget
		}
		d := w.Positions.Value(target).Sub(w.Positions.Value(caster))
		if d.Dot(d) > skill.Range*skill.Range {
			return Result{}, ErrTargetOutOfRange
		}
	}

	mana.Current -= skill.ManaCost
	cd.Remaining[slot] = skill.Cooldown

	switch skill.Type {
	case gamedata.InstantMelee:
		return r.melee(caster, target, skill, 0), nil
	case gamedata.DashMelee:
		r.dash(caster, target)
		return r.melee(caster, target, skill, skill.ArmorPenetration), nil
	case gamedata.RangedProjectile:
		return r.projectile(caster, target, skill), nil
	case gamedata.SelfBuff:
		return r.selfBuff(caster, skill), nil
	case gamedata.Heal:
		return r.heal(caster, skill), nil
	}
	return Result{}, ErrNoSkill
}

func (r *Resolver) skillHit(caster, target ecs.Entity, skill *gamedata.Skill, armorPen, critMult float64) (float64, bool) {
	cs := r.world.Stats.Value(caster)
	raw := ScalingValue(cs, skill.Scaling) * skill.Multiplier
	if skill.Magical {
		raw += cs.SpellPower
	}
	return resolveHit(hit{
		raw:        raw,
		critChance: cs.CritChance,
		critMult:   critMult,
		defense:    r.world.Stats.Value(target).Defense,
		armorPen:   armorPen,
		magical:    skill.Magical,
	}, r.rng)
}

func (r *Resolver) melee(caster, target ecs.Entity, skill *gamedata.Skill, armorPen float64) Result {
	dmg, crit := r.skillHit(caster, target, skill, armorPen, meleeCritMultiplier)
	return Result{Events: r.damage(caster, target, skill.ID, dmg, crit)}
}

// damage applies dmg and returns the damage event, plus a death event when
// the hit was lethal.
func (r *Resolver) damage(source, target ecs.Entity, skillID string, dmg float64, crit bool) []event.Event {
	hp, killed := r.world.ApplyDamage(target, source, dmg)
	events := []event.Event{{
		Kind:        event.Damage,
		Caster:      source,
		Target:      target,
		SkillID:     skillID,
		Amount:      dmg,
		Crit:        crit,
		RemainingHP: event.HP(hp),
	}}
	if killed {
		events = append(events, event.Event{Kind: event.Death, Caster: source, Target: target})
	}
	return events
}

func (r *Resolver) dash(caster, target ecs.Entity) {
	from, ok := r.world.Positions.Get(caster)
	if !ok {
		return
	}
	to := r.world.Positions.Value(target)
	d := to.Sub(*from)
	dist := d.Len()
	if dist <= dashStopDistance {
		return
	}
	*from = from.Add(d.Mul((dist - dashStopDistance) / dist))
}

func (r *Resolver) projectile(caster, target ecs.Entity, skill *gamedata.Skill) Result {
	critMult := meleeCritMultiplier
	if c, ok := r.data.Class(r.world.Stats.Value(caster).Class); ok && c.CritMultiplier > 0 {
		critMult = c.CritMultiplier
	}
	dmg, crit := r.skillHit(caster, target, skill, skill.ArmorPenetration, critMult)

	w := r.world
	p := w.Create()
	w.Positions.Set(p, w.Positions.Value(caster))
	w.Projectiles.Set(p, ecs.Projectile{
		Owner:    caster,
		Target:   target,
		SkillID:  skill.ID,
		Speed:    skill.ProjectileSpeed,
		Damage:   dmg,
		Magical:  skill.Magical,
		Crit:     crit,
		Lifetime: skill.ProjectileLifetime,
	})

	return Result{
		Events: []event.Event{{
			Kind:    event.ProjectileSpawn,
			Caster:  caster,
			Target:  target,
			SkillID: skill.ID,
			Crit:    crit,
		}},
		Projectiles: []ProjectileSpawn{{
			Entity:  p,
			Owner:   caster,
			Target:  target,
			SkillID: skill.ID,
			Damage:  dmg,
			Crit:    crit,
			Magical: skill.Magical,
		}},
	}
}

func (r *Resolver) selfBuff(caster ecs.Entity, skill *gamedata.Skill) Result {
	r.world.Buffs.Set(caster, ecs.Buff{
		ID:        skill.BuffID,
		Stat:      ecs.BuffStat(skill.BuffStat),
		Remaining: skill.BuffDuration,
		Magnitude: skill.BuffMagnitude,
	})
	r.Recompute(caster)

	return Result{Events: []event.Event{{
		Kind:     event.Buff,
		Caster:   caster,
		Target:   caster,
		SkillID:  skill.ID,
		BuffID:   skill.BuffID,
		Amount:   skill.BuffMagnitude,
		Duration: skill.BuffDuration,
	}}}
}

// heal only ever targets the caster.
func (r *Resolver) heal(caster ecs.Entity, skill *gamedata.Skill) Result {
	amount := ScalingValue(r.world.Stats.Value(caster), skill.Scaling) * skill.Multiplier
	before := r.world.Healths.Value(caster).Current
	hp := r.world.Heal(caster, amount)

	return Result{Events: []event.Event{{
		Kind:        event.HealKind,
		Caster:      caster,
		Target:      caster,
		SkillID:     skill.ID,
		Amount:      hp - before,
		RemainingHP: event.HP(hp),
	}}}
}

// Recompute rewrites e's derived stats and vitals caps from its class,
// attributes, equipment and buff. Entities without a known class (monsters)
// are left alone.
func (r *Resolver) Recompute(e ecs.Entity) {
	w := r.world
	cs, ok := w.Stats.Get(e)
	if !ok {
		return
	}
	class, ok := r.data.Class(cs.Class)
	if !ok {
		return
	}

	var buff *ecs.Buff
	if b, ok := w.Buffs.Get(e); ok {
		buff = b
	}
	d := DeriveStats(class, *cs, r.equipment(e), buff)

	cs.AttackPower = d.AttackPower
	cs.Defense = d.Defense
	cs.SpellPower = d.SpellPower
	cs.CritChance = d.CritChance
	cs.MoveSpeed = d.MoveSpeed

	if h, ok := w.Healths.Get(e); ok {
		h.Max = d.MaxHP
		h.Regen = class.HPRegen
		h.Current = min(h.Current, h.Max)
	}
	if m, ok := w.Manas.Get(e); ok {
		m.Max = d.MaxMP
		m.Regen = class.MPRegen
		m.Current = min(m.Current, m.Max)
	}
}

func inRange(a, b mgl64.Vec3, r float64) bool {
	d := b.Sub(a)
	return d.Dot(d) <= r*r
}
