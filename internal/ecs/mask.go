package ecs

import "math/bits"

// ComponentID identifies a component column or a payload-free tag.
type ComponentID uint8

const (
	CompPosition ComponentID = iota
	CompVelocity
	CompHealth
	CompMana
	CompCombatStats
	CompTarget
	CompAutoAttack
	CompAIState
	CompMonster
	CompLootDrop
	CompSpawner
	CompSkillCooldown
	CompBuff
	CompProjectile
	CompNetworkIdentity

	// Tags carry no payload.
	TagDead
	TagPlayer
	TagDeparting

	componentCount
)

var componentNames = [componentCount]string{
	CompPosition:        "position",
	CompVelocity:        "velocity",
	CompHealth:          "health",
	CompMana:            "mana",
	CompCombatStats:     "combat_stats",
	CompTarget:          "target",
	CompAutoAttack:      "auto_attack",
	CompAIState:         "ai_state",
	CompMonster:         "monster",
	CompLootDrop:        "loot_drop",
	CompSpawner:         "spawner",
	CompSkillCooldown:   "skill_cooldown",
	CompBuff:            "buff",
	CompProjectile:      "projectile",
	CompNetworkIdentity: "network_identity",
	TagDead:             "dead",
	TagPlayer:           "player",
	TagDeparting:        "departing",
}

func (id ComponentID) String() string {
	if id >= componentCount {
		return "unknown"
	}
	return componentNames[id]
}

// Mask records which components an entity currently has.
type Mask uint32

// MaskOf builds a mask with the given components set.
func MaskOf(ids ...ComponentID) Mask {
	var m Mask
	for _, id := range ids {
		m = m.With(id)
	}
	return m
}

func (m Mask) With(id ComponentID) Mask {
	return m | 1<<id
}

func (m Mask) Without(id ComponentID) Mask {
	return m &^ (1 << id)
}

func (m Mask) Has(id ComponentID) bool {
	return m&(1<<id) != 0
}

// ContainsAll returns true if every bit set in other is also set in m.
func (m Mask) ContainsAll(other Mask) bool {
	return m&other == other
}

// ContainsAny returns true if any bit set in other is also set in m.
func (m Mask) ContainsAny(other Mask) bool {
	return m&other != 0
}

func (m Mask) IsZero() bool {
	return m == 0
}

func (m Mask) Count() int {
	return bits.OnesCount32(uint32(m))
}
