// Package event defines what a zone broadcasts to its sessions each tick.
package event

import (
	"realm-server/internal/ecs"
)

type Kind string

const (
	Damage          Kind = "damage"
	HealKind        Kind = "heal"
	Buff            Kind = "buff"
	BuffExpired     Kind = "buff_expired"
	ProjectileSpawn Kind = "projectile_spawn"
	Spawn           Kind = "spawn"
	Despawn         Kind = "despawn"
	Death           Kind = "death"
	LevelUp         Kind = "level_up"
	LootDrop        Kind = "loot_drop"
	LootPickup      Kind = "loot_pickup"
	Upgrade         Kind = "upgrade"
	ItemUsed        Kind = "item_used"
)

// Event is one observable change. Fields that do not apply to a kind are
// left zero and omitted on the wire.
type Event struct {
	Kind        Kind       `json:"kind"`
	Caster      ecs.Entity `json:"caster,omitempty"`
	Target      ecs.Entity `json:"target,omitempty"`
	SkillID     string     `json:"skillId,omitempty"`
	Amount      float64    `json:"amount,omitempty"`
	Crit        bool       `json:"crit,omitempty"`
	RemainingHP *float64   `json:"remainingHp,omitempty"`
	BuffID      string     `json:"buffId,omitempty"`
	Duration    float64    `json:"duration,omitempty"`
	ItemID      string     `json:"itemId,omitempty"`
	Quantity    int        `json:"quantity,omitempty"`
	Level       int        `json:"level,omitempty"`
	Outcome     string     `json:"outcome,omitempty"`
}

// HP returns a pointer suitable for Event.RemainingHP.
func HP(v float64) *float64 {
	return &v
}

// EntityState is the per-tick snapshot of a visible entity.
type EntityState struct {
	ID        ecs.Entity `json:"id"`
	Kind      string     `json:"kind"`
	Name      string     `json:"name,omitempty"`
	X         float64    `json:"x"`
	Y         float64    `json:"y"`
	Z         float64    `json:"z"`
	HP        float64    `json:"hp,omitempty"`
	MaxHP     float64    `json:"maxHp,omitempty"`
	MP        float64    `json:"mp,omitempty"`
	MaxMP     float64    `json:"maxMp,omitempty"`
	Level     int        `json:"level,omitempty"`
	Dead      bool       `json:"dead,omitempty"`
	BuffID    string     `json:"buffId,omitempty"`
	AIMode    string     `json:"aiMode,omitempty"`
	ItemID    string     `json:"itemId,omitempty"`
	Quantity  int        `json:"quantity,omitempty"`
	Yang      int64      `json:"yang,omitempty"`
	Cooldowns []float64  `json:"cooldowns,omitempty"`
}

// InventoryState is sent only to the owning session, and only on ticks
// where its inventory changed.
type InventoryState struct {
	Slots     []SlotState `json:"slots"`
	Equipment []SlotState `json:"equipment"`
	Yang      int64       `json:"yang"`
}

type SlotState struct {
	Index        int    `json:"index"`
	ItemID       string `json:"itemId"`
	Quantity     int    `json:"quantity"`
	UpgradeLevel int    `json:"upgradeLevel"`
}

// Frame is one tick's broadcast as seen by a single session.
type Frame struct {
	Zone      string          `json:"zone"`
	Tick      uint64          `json:"tick"`
	You       ecs.Entity      `json:"you,omitempty"`
	Events    []Event         `json:"events,omitempty"`
	Entities  []EntityState   `json:"entities"`
	Inventory *InventoryState `json:"inventory,omitempty"`
}
