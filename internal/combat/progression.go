package combat

import (
	"realm-server/internal/ecs"
	"realm-server/internal/event"
	"realm-server/internal/gamedata"
)

const (
	MaxLevel           = 99
	StatPointsPerLevel = 3
)

// ExpToNext is the experience needed to advance past level.
func ExpToNext(level int) int64 {
	return int64(level) * int64(level) * 100
}

// GrantExperience adds experience and applies any level ups. Each level
// awards stat points; reaching a new level fully restores health and mana.
// Dead and departing entities earn nothing.
func (r *Resolver) GrantExperience(e ecs.Entity, amount int64) []event.Event {
	w := r.world
	cs, ok := w.Stats.Get(e)
	if !ok || amount <= 0 || w.IsDead(e) || w.Has(e, ecs.TagDeparting) {
		return nil
	}

	cs.Experience += amount
	leveled := false
	for cs.Level < MaxLevel && cs.Experience >= ExpToNext(cs.Level) {
		cs.Experience -= ExpToNext(cs.Level)
		cs.Level++
		cs.StatPoints += StatPointsPerLevel
		leveled = true
	}
	if cs.Level >= MaxLevel {
		cs.Experience = 0
	}
	if !leveled {
		return nil
	}

	level := cs.Level
	r.Recompute(e)
	if h, ok := w.Healths.Get(e); ok {
		h.Current = h.Max
	}
	if m, ok := w.Manas.Get(e); ok {
		m.Current = m.Max
	}
	return []event.Event{{Kind: event.LevelUp, Target: e, Level: level}}
}

// AllocateStat spends one stat point on attr.
func (r *Resolver) AllocateStat(e ecs.Entity, attr gamedata.Attribute) error {
	cs, ok := r.world.Stats.Get(e)
	if !ok {
		return ErrNotAllocatable
	}
	if _, ok := r.data.Class(cs.Class); !ok {
		return ErrNotAllocatable
	}
	if cs.StatPoints <= 0 {
		return ErrNoStatPoints
	}

	switch attr {
	case gamedata.Strength:
		cs.Strength++
	case gamedata.Dexterity:
		cs.Dexterity++
	case gamedata.Intellect:
		cs.Intellect++
	case gamedata.Vitality:
		cs.Vitality++
	default:
		return ErrInvalidAttribute
	}
	cs.StatPoints--
	r.Recompute(e)
	return nil
}

// ClampAttributes raises any attribute below the class floor back to it.
func ClampAttributes(c *gamedata.Class, cs *ecs.CombatStats) {
	cs.Strength = max(cs.Strength, c.Base.Strength)
	cs.Dexterity = max(cs.Dexterity, c.Base.Dexterity)
	cs.Intellect = max(cs.Intellect, c.Base.Intellect)
	cs.Vitality = max(cs.Vitality, c.Base.Vitality)
	cs.StatPoints = max(cs.StatPoints, 0)
	cs.Level = max(cs.Level, 1)
}
