package combat

import (
	"realm-server/internal/ecs"
	"realm-server/internal/event"
)

const (
	// AutoAttackSkillID tags damage events produced by basic attacks.
	AutoAttackSkillID = "auto_attack"
	// projectileHitRadius is the distance at which a projectile impacts.
	projectileHitRadius = 0.5
)

var (
	cooldownFilter   = ecs.Filter{All: ecs.MaskOf(ecs.CompSkillCooldown)}
	buffFilter       = ecs.Filter{All: ecs.MaskOf(ecs.CompBuff)}
	projectileFilter = ecs.Filter{All: ecs.MaskOf(ecs.CompProjectile, ecs.CompPosition)}
	attackerFilter   = ecs.Filter{
		All:  ecs.MaskOf(ecs.CompAutoAttack, ecs.CompTarget, ecs.CompPosition, ecs.CompCombatStats),
		None: ecs.MaskOf(ecs.TagDead, ecs.TagDeparting),
	}
)

// TickCooldowns counts every skill cooldown down by dt, stopping at zero.
func (r *Resolver) TickCooldowns(dt float64) {
	r.world.Each(cooldownFilter, func(e ecs.Entity) {
		cd, _ := r.world.Cooldowns.Get(e)
		for i := range cd.Remaining {
			cd.Remaining[i] = max(cd.Remaining[i]-dt, 0)
		}
	})
}

// TickBuffs ages active buffs and removes expired ones.
func (r *Resolver) TickBuffs(dt float64) []event.Event {
	var events []event.Event
	r.world.Each(buffFilter, func(e ecs.Entity) {
		b, _ := r.world.Buffs.Get(e)
		b.Remaining -= dt
		if b.Remaining > 0 {
			return
		}
		id := b.ID
		r.world.Buffs.Remove(e)
		r.Recompute(e)
		events = append(events, event.Event{Kind: event.BuffExpired, Target: e, BuffID: id})
	})
	return events
}

// TickRegen restores health and mana of living entities.
func (r *Resolver) TickRegen(dt float64) {
	r.world.Each(ecs.Living, func(e ecs.Entity) {
		if h := r.world.Healths.Value(e); h.Regen > 0 && h.Current < h.Max {
			r.world.Heal(e, h.Regen*dt)
		}
		if m, ok := r.world.Manas.Get(e); ok && m.Regen > 0 && m.Current < m.Max {
			r.world.RestoreMana(e, m.Regen*dt)
		}
	})
}

// TickProjectiles moves projectiles toward their targets. A projectile
// delivers its precomputed damage when it gets within hit radius or when
// its lifetime runs out, as long as the target can still be hit. If the
// target is gone or dead the projectile despawns without effect.
func (r *Resolver) TickProjectiles(dt float64) []event.Event {
	w := r.world
	var events []event.Event

	w.Each(projectileFilter, func(p ecs.Entity) {
		proj := w.Projectiles.Value(p)
		pos, _ := w.Positions.Get(p)

		if !w.Match(proj.Target, ecs.Targetable) {
			w.Destroy(p)
			events = append(events, event.Event{Kind: event.Despawn, Target: p})
			return
		}

		to := w.Positions.Value(proj.Target)
		d := to.Sub(*pos)
		dist := d.Len()
		step := proj.Speed * dt
		if step >= dist {
			*pos = to
			dist = 0
		} else {
			*pos = pos.Add(d.Mul(step / dist))
			dist -= step
		}

		proj.Lifetime -= dt
		if dist > projectileHitRadius && proj.Lifetime > 0 {
			w.Projectiles.Set(p, proj)
			return
		}

		events = append(events, r.damage(proj.Owner, proj.Target, proj.SkillID, proj.Damage, proj.Crit)...)
		w.Destroy(p)
		events = append(events, event.Event{Kind: event.Despawn, Target: p})
	})
	return events
}

// TickAutoAttacks fires basic attacks whose interval has elapsed and whose
// target is in range. A ready attack waits at zero until it can land.
func (r *Resolver) TickAutoAttacks(dt float64) []event.Event {
	w := r.world
	var events []event.Event

	w.Each(attackerFilter, func(e ecs.Entity) {
		aa, _ := w.AutoAttacks.Get(e)
		if !aa.Enabled {
			return
		}
		aa.Remaining = max(aa.Remaining-dt, 0)
		if aa.Remaining > 0 {
			return
		}

		target := w.Targets.Value(e).Entity
		if target == e || !w.Match(target, ecs.Targetable) {
			return
		}
		if !inRange(w.Positions.Value(e), w.Positions.Value(target), aa.Range) {
			return
		}

		cs := w.Stats.Value(e)
		dmg, crit := resolveHit(hit{
			raw:        cs.AttackPower,
			critChance: cs.CritChance,
			critMult:   meleeCritMultiplier,
			defense:    w.Stats.Value(target).Defense,
		}, r.rng)
		aa.Remaining = aa.Interval
		events = append(events, r.damage(e, target, AutoAttackSkillID, dmg, crit)...)
	})
	return events
}
