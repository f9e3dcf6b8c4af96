package ecs

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// SkillSlots is the number of skill slots every actor has.
const SkillSlots = 2

type Health struct {
	Current float64
	Max     float64
	Regen   float64
}

type Mana struct {
	Current float64
	Max     float64
	Regen   float64
}

// CombatStats holds allocatable attributes and the values derived from them.
// Derived fields are rewritten by the combat package whenever attributes,
// level, equipment or buffs change.
type CombatStats struct {
	Class      string
	Level      int
	Experience int64
	StatPoints int

	Strength  int
	Dexterity int
	Intellect int
	Vitality  int

	AttackPower float64
	Defense     float64
	SpellPower  float64
	CritChance  float64
	MoveSpeed   float64
}

type Target struct {
	Entity Entity
}

type AutoAttack struct {
	Enabled   bool
	Interval  float64
	Remaining float64
	Range     float64
}

type AIMode uint8

const (
	AIIdle AIMode = iota
	AIChase
	AIAttack
	AIReturn
)

func (m AIMode) String() string {
	switch m {
	case AIIdle:
		return "idle"
	case AIChase:
		return "chase"
	case AIAttack:
		return "attack"
	case AIReturn:
		return "return"
	default:
		return "unknown"
	}
}

type AIState struct {
	Mode       AIMode
	Home       mgl64.Vec3
	AggroRange float64
	LeashRange float64
}

type Monster struct {
	Template        string
	Name            string
	Level           int
	Experience      int64
	Yang            int64
	Spawner         Entity
	LastAttacker    Entity
	Rewarded        bool
	CorpseRemaining float64
}

// LootDrop is an item (or yang pile) lying on the ground. While
// LockRemaining is positive only the owner identified by OwnerHash may pick
// it up.
type LootDrop struct {
	ItemID        string
	Quantity      int
	UpgradeLevel  int
	Yang          int64
	OwnerHash     uint64
	LockRemaining float64
	Remaining     float64
}

type Spawner struct {
	Template     string
	Point        mgl64.Vec3
	RespawnDelay float64
	Remaining    float64
	Alive        Entity
}

type SkillCooldown struct {
	Remaining [SkillSlots]float64
}

type BuffStat string

const (
	BuffStatAttack    BuffStat = "attack"
	BuffStatDefense   BuffStat = "defense"
	BuffStatMoveSpeed BuffStat = "move_speed"
)

type Buff struct {
	ID        string
	Stat      BuffStat
	Remaining float64
	Magnitude float64
}

type Projectile struct {
	Owner    Entity
	Target   Entity
	SkillID  string
	Speed    float64
	Damage   float64
	Magical  bool
	Crit     bool
	Lifetime float64
}

// NetworkIdentity binds an entity to the session that controls it.
type NetworkIdentity struct {
	Session     uuid.UUID
	CharacterID int64
	Name        string
}
