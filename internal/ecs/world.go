package ecs

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Entity is an index into every component column. 0 is never allocated and
// stands for "no entity".
type Entity uint32

const defaultCapacity = 256

// World is the component store for one zone. It is not safe for concurrent
// use; the owning zone goroutine is the only caller.
type World struct {
	masks     []Mask
	allocated []bool
	free      []Entity
	pending   []Entity
	next      Entity
	alive     int
	columns   []column

	Positions   *Column[mgl64.Vec3]
	Velocities  *Column[mgl64.Vec3]
	Healths     *Column[Health]
	Manas       *Column[Mana]
	Stats       *Column[CombatStats]
	Targets     *Column[Target]
	AutoAttacks *Column[AutoAttack]
	AI          *Column[AIState]
	Monsters    *Column[Monster]
	Loot        *Column[LootDrop]
	Spawners    *Column[Spawner]
	Cooldowns   *Column[SkillCooldown]
	Buffs       *Column[Buff]
	Projectiles *Column[Projectile]
	Network     *Column[NetworkIdentity]
}

// NewWorld creates an empty world with room for capacity entities before
// the first reallocation.
func NewWorld(capacity int) *World {
	if capacity <= 0 {
		capacity = defaultCapacity
	}

	w := &World{next: 1}

	w.Positions = newColumn[mgl64.Vec3](w, CompPosition)
	w.Velocities = newColumn[mgl64.Vec3](w, CompVelocity)
	w.Healths = newColumn[Health](w, CompHealth)
	w.Manas = newColumn[Mana](w, CompMana)
	w.Stats = newColumn[CombatStats](w, CompCombatStats)
	w.Targets = newColumn[Target](w, CompTarget)
	w.AutoAttacks = newColumn[AutoAttack](w, CompAutoAttack)
	w.AI = newColumn[AIState](w, CompAIState)
	w.Monsters = newColumn[Monster](w, CompMonster)
	w.Loot = newColumn[LootDrop](w, CompLootDrop)
	w.Spawners = newColumn[Spawner](w, CompSpawner)
	w.Cooldowns = newColumn[SkillCooldown](w, CompSkillCooldown)
	w.Buffs = newColumn[Buff](w, CompBuff)
	w.Projectiles = newColumn[Projectile](w, CompProjectile)
	w.Network = newColumn[NetworkIdentity](w, CompNetworkIdentity)

	w.grow(capacity + 1)
	return w
}

func (w *World) grow(n int) {
	if n <= len(w.masks) {
		return
	}
	w.masks = append(w.masks, make([]Mask, n-len(w.masks))...)
	w.allocated = append(w.allocated, make([]bool, n-len(w.allocated))...)
	for _, c := range w.columns {
		c.grow(n)
	}
}

// Create allocates an entity with no components. Recycled ids are handed
// out oldest-first.
func (w *World) Create() Entity {
	var e Entity
	if len(w.free) > 0 {
		e = w.free[0]
		w.free = w.free[1:]
	} else {
		e = w.next
		w.next++
		if int(e) >= len(w.masks) {
			w.grow(2 * len(w.masks))
		}
	}

	w.allocated[e] = true
	w.masks[e] = 0
	w.alive++
	return e
}

// Destroy removes every component from e and schedules its id for reuse.
// The id is not handed out again until Flush, so events produced during the
// current tick never point at a different occupant.
func (w *World) Destroy(e Entity) {
	if !w.Alive(e) {
		return
	}
	for _, c := range w.columns {
		c.clear(e)
	}
	w.masks[e] = 0
	w.allocated[e] = false
	w.alive--
	w.pending = append(w.pending, e)
}

// Flush releases ids destroyed since the last Flush. Call once at the end of
// every tick.
func (w *World) Flush() {
	if len(w.pending) == 0 {
		return
	}
	w.free = append(w.free, w.pending...)
	w.pending = w.pending[:0]
}

func (w *World) Alive(e Entity) bool {
	return e != 0 && int(e) < len(w.allocated) && w.allocated[e]
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.alive
}

func (w *World) Mask(e Entity) Mask {
	if !w.Alive(e) {
		return 0
	}
	return w.masks[e]
}

func (w *World) Has(e Entity, id ComponentID) bool {
	return w.Mask(e).Has(id)
}

// Tag sets a payload-free marker. Tagging twice is a no-op.
func (w *World) Tag(e Entity, id ComponentID) {
	if !w.Alive(e) {
		return
	}
	w.masks[e] = w.masks[e].With(id)
}

func (w *World) Untag(e Entity, id ComponentID) {
	if !w.Alive(e) {
		return
	}
	w.masks[e] = w.masks[e].Without(id)
}

// IsDead reports whether e is missing or carries the Dead tag.
func (w *World) IsDead(e Entity) bool {
	return !w.Alive(e) || w.masks[e].Has(TagDead)
}
