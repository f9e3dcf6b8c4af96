package zone

import (
	"realm-server/internal/ecs"
	"realm-server/internal/event"

	"github.com/go-gl/mathgl/mgl64"
)

// returnArriveDistance is how close a returning monster must get to home.
const returnArriveDistance = 0.5

var (
	movingFilter = ecs.Filter{
		All:  ecs.MaskOf(ecs.CompPosition, ecs.CompVelocity),
		None: ecs.MaskOf(ecs.TagDead, ecs.TagDeparting),
	}
	aiFilter = ecs.Filter{
		All:  ecs.MaskOf(ecs.CompMonster, ecs.CompAIState, ecs.CompPosition, ecs.CompCombatStats),
		None: ecs.MaskOf(ecs.TagDead),
	}
	playerFilter = ecs.Filter{
		All:  ecs.MaskOf(ecs.CompPosition, ecs.CompHealth, ecs.TagPlayer),
		None: ecs.MaskOf(ecs.TagDead, ecs.TagDeparting),
	}
	corpseFilter  = ecs.Filter{All: ecs.MaskOf(ecs.CompMonster, ecs.TagDead)}
	lootFilter    = ecs.Filter{All: ecs.MaskOf(ecs.CompLootDrop, ecs.CompPosition)}
	spawnerFilter = ecs.Filter{All: ecs.MaskOf(ecs.CompSpawner)}
	targetFilter  = ecs.Filter{All: ecs.MaskOf(ecs.CompTarget)}
	monsterFilter = ecs.Filter{All: ecs.MaskOf(ecs.CompMonster)}
	missileFilter = ecs.Filter{All: ecs.MaskOf(ecs.CompProjectile)}
)

func (z *Zone) tickMovement(dt float64) {
	w := z.world
	w.Each(movingFilter, func(e ecs.Entity) {
		v := w.Velocities.Value(e)
		if v.Len() == 0 {
			return
		}
		p, _ := w.Positions.Get(e)
		*p = p.Add(v.Mul(dt))
	})
}

// tickAI drives monsters through idle, chase, attack and return. Movement
// itself happens in tickMovement; AI only sets velocities.
func (z *Zone) tickAI(dt float64) {
	w := z.world
	w.Each(aiFilter, func(e ecs.Entity) {
		ai, _ := w.AI.Get(e)
		pos := w.Positions.Value(e)
		speed := w.Stats.Value(e).MoveSpeed

		switch ai.Mode {
		case ecs.AIIdle:
			t := z.acquire(e, pos, ai.AggroRange)
			if t == 0 {
				return
			}
			z.engage(e, t)
			ai.Mode = ecs.AIChase
			fallthrough

		case ecs.AIChase, ecs.AIAttack:
			target := w.Targets.Value(e).Entity
			if !z.huntable(target) || pos.Sub(ai.Home).Len() > ai.LeashRange {
				z.disengage(e)
				ai.Mode = ecs.AIReturn
				return
			}
			tpos := w.Positions.Value(target)
			reach := w.AutoAttacks.Value(e).Range
			d := tpos.Sub(pos)
			if d.Dot(d) <= reach*reach {
				ai.Mode = ecs.AIAttack
				w.Velocities.Set(e, mgl64.Vec3{})
			} else {
				ai.Mode = ecs.AIChase
				w.Velocities.Set(e, d.Normalize().Mul(speed))
			}

		case ecs.AIReturn:
			d := ai.Home.Sub(pos)
			dist := d.Len()
			if dist <= returnArriveDistance {
				w.Positions.Set(e, ai.Home)
				w.Velocities.Set(e, mgl64.Vec3{})
				restoreVitals(w, e)
				ai.Mode = ecs.AIIdle
				return
			}
			step := speed
			if dt > 0 && speed*dt > dist {
				step = dist / dt
			}
			w.Velocities.Set(e, d.Mul(step/dist))
		}
	})
}

// acquire picks whoever last hit the monster, otherwise the nearest player
// inside aggro range. Ties go to the lower entity id.
func (z *Zone) acquire(e ecs.Entity, pos mgl64.Vec3, aggro float64) ecs.Entity {
	w := z.world
	if m, ok := w.Monsters.Get(e); ok && z.huntable(m.LastAttacker) {
		return m.LastAttacker
	}

	var best ecs.Entity
	bestDist := aggro * aggro
	w.Each(playerFilter, func(p ecs.Entity) {
		d := w.Positions.Value(p).Sub(pos)
		if dist := d.Dot(d); dist <= bestDist && (best == 0 || dist < bestDist) {
			best, bestDist = p, dist
		}
	})
	return best
}

func (z *Zone) huntable(t ecs.Entity) bool {
	return t != 0 && z.world.Match(t, playerFilter)
}

func (z *Zone) engage(e, target ecs.Entity) {
	w := z.world
	w.Targets.Set(e, ecs.Target{Entity: target})
	if aa, ok := w.AutoAttacks.Get(e); ok {
		aa.Enabled = true
	}
}

func (z *Zone) disengage(e ecs.Entity) {
	w := z.world
	w.Targets.Set(e, ecs.Target{})
	w.Velocities.Set(e, mgl64.Vec3{})
	if aa, ok := w.AutoAttacks.Get(e); ok {
		aa.Enabled = false
	}
	if m, ok := w.Monsters.Get(e); ok {
		m.LastAttacker = 0
	}
}

// tickDeaths rewards each freshly killed monster once, then removes its
// corpse when the corpse timer runs out.
func (z *Zone) tickDeaths(dt float64) {
	w := z.world
	w.Each(corpseFilter, func(e ecs.Entity) {
		m, _ := w.Monsters.Get(e)
		if !m.Rewarded {
			m.Rewarded = true
			if tpl, ok := z.data.Monster(m.Template); ok {
				m.CorpseRemaining = tpl.CorpseSeconds
			}
			snapshot := *m
			w.Velocities.Set(e, mgl64.Vec3{})
			if sp, ok := w.Spawners.Get(snapshot.Spawner); ok && sp.Alive == e {
				sp.Alive = 0
				sp.Remaining = sp.RespawnDelay
			}
			// Rewards may create entities, which can move column storage.
			z.reward(e, snapshot)
			m, _ = w.Monsters.Get(e)
		}

		m.CorpseRemaining -= dt
		if m.CorpseRemaining <= 0 {
			z.removeEntity(e)
		}
	})
}

// reward credits experience to the killer and drops yang and loot locked to
// them. A killer whose session is leaving has already been captured, so the
// drop is left unlocked instead.
func (z *Zone) reward(e ecs.Entity, m ecs.Monster) {
	w := z.world
	killer := m.LastAttacker
	if killer == 0 || !w.Alive(killer) || !w.Has(killer, ecs.TagPlayer) || w.Has(killer, ecs.TagDeparting) {
		killer = 0
	}

	var owner uint64
	lock := 0.0
	if killer != 0 {
		z.emit(z.resolver.GrantExperience(killer, m.Experience)...)
		owner = ownerHash(w.Network.Value(killer).CharacterID)
		lock = lootLockSeconds
	}

	pos := w.Positions.Value(e)
	if m.Yang > 0 {
		z.spawnLoot(pos, ecs.LootDrop{Yang: m.Yang, OwnerHash: owner, LockRemaining: lock, Remaining: lootLifetime})
	}

	tpl, ok := z.data.Monster(m.Template)
	if !ok {
		return
	}
	for _, entry := range tpl.Loot {
		if z.rng.Float64() >= entry.Chance {
			continue
		}
		qty := entry.Min
		if entry.Max > entry.Min {
			qty += z.rng.IntN(entry.Max - entry.Min + 1)
		}
		if qty <= 0 {
			continue
		}
		z.spawnLoot(pos, ecs.LootDrop{
			ItemID:        entry.ItemID,
			Quantity:      qty,
			OwnerHash:     owner,
			LockRemaining: lock,
			Remaining:     lootLifetime,
		})
	}
}

func (z *Zone) spawnLoot(pos mgl64.Vec3, drop ecs.LootDrop) ecs.Entity {
	w := z.world
	e := w.Create()
	w.Positions.Set(e, pos)
	w.Loot.Set(e, drop)
	z.emit(event.Event{
		Kind:     event.LootDrop,
		Target:   e,
		ItemID:   drop.ItemID,
		Quantity: drop.Quantity,
		Amount:   float64(drop.Yang),
	})
	return e
}

func (z *Zone) tickLoot(dt float64) {
	w := z.world
	w.Each(lootFilter, func(e ecs.Entity) {
		l, _ := w.Loot.Get(e)
		l.LockRemaining = max(l.LockRemaining-dt, 0)
		l.Remaining -= dt
		if l.Remaining <= 0 {
			z.removeEntity(e)
		}
	})
}

func (z *Zone) tickSpawners(dt float64) {
	w := z.world
	w.Each(spawnerFilter, func(e ecs.Entity) {
		sp, _ := w.Spawners.Get(e)
		if sp.Alive != 0 {
			return
		}
		sp.Remaining -= dt
		if sp.Remaining > 0 {
			return
		}
		template, point := sp.Template, sp.Point
		monster := z.spawnMonster(e, template, point)
		if sp, ok := w.Spawners.Get(e); ok {
			sp.Alive = monster
			sp.Remaining = sp.RespawnDelay
		}
	})
}

// placeSpawners creates one spawner entity per monster slot of the zone
// definition. Each fires on the first tick.
func (z *Zone) placeSpawners() {
	w := z.world
	for _, def := range z.def.Spawners {
		for _, point := range def.Points() {
			e := w.Create()
			w.Spawners.Set(e, ecs.Spawner{
				Template:     def.Monster,
				Point:        point,
				RespawnDelay: def.RespawnSeconds,
			})
		}
	}
}

func (z *Zone) spawnMonster(spawner ecs.Entity, templateID string, point mgl64.Vec3) ecs.Entity {
	tpl, ok := z.data.Monster(templateID)
	if !ok {
		z.logger.Error("Unknown monster template", "template", templateID)
		return 0
	}

	var yang int64
	if tpl.YangMax > 0 {
		yang = tpl.YangMin
		if tpl.YangMax > tpl.YangMin {
			yang += z.rng.Int64N(tpl.YangMax - tpl.YangMin + 1)
		}
	}

	w := z.world
	e := w.Create()
	w.Positions.Set(e, point)
	w.Velocities.Set(e, mgl64.Vec3{})
	w.Healths.Set(e, ecs.Health{Current: tpl.HP, Max: tpl.HP, Regen: tpl.HPRegen})
	w.Stats.Set(e, ecs.CombatStats{
		Level:       tpl.Level,
		AttackPower: tpl.AttackPower,
		Defense:     tpl.Defense,
		MoveSpeed:   tpl.MoveSpeed,
	})
	w.Targets.Set(e, ecs.Target{})
	w.AutoAttacks.Set(e, ecs.AutoAttack{Interval: tpl.AttackInterval, Range: tpl.AttackRange})
	w.AI.Set(e, ecs.AIState{
		Mode:       ecs.AIIdle,
		Home:       point,
		AggroRange: tpl.AggroRange,
		LeashRange: tpl.LeashRange,
	})
	w.Monsters.Set(e, ecs.Monster{
		Template:   tpl.ID,
		Name:       tpl.Name,
		Level:      tpl.Level,
		Experience: tpl.Experience,
		Yang:       yang,
		Spawner:    spawner,
	})
	z.emit(event.Event{Kind: event.Spawn, Target: e})
	return e
}

// removeEntity destroys e, clears every reference to it, and announces the
// despawn.
func (z *Zone) removeEntity(e ecs.Entity) {
	w := z.world
	w.Each(targetFilter, func(o ecs.Entity) {
		if t, _ := w.Targets.Get(o); t.Entity == e {
			t.Entity = 0
		}
	})
	w.Each(monsterFilter, func(o ecs.Entity) {
		if m, _ := w.Monsters.Get(o); m.LastAttacker == e {
			m.LastAttacker = 0
		}
	})
	w.Each(missileFilter, func(o ecs.Entity) {
		if p, _ := w.Projectiles.Get(o); p.Target == e || p.Owner == e {
			w.Destroy(o)
			z.emit(event.Event{Kind: event.Despawn, Target: o})
		}
	})
	w.Destroy(e)
	z.emit(event.Event{Kind: event.Despawn, Target: e})
}
