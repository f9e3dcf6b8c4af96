package combat

import (
	"realm-server/internal/ecs"
	"realm-server/internal/gamedata"
)

const (
	MaxCritChance     = 0.75
	critPerDexterity  = 0.005
	hpPerVitality     = 10
	mpPerIntellect    = 5
	attackPerStrength = 2
	attackPerLevel    = 2
)

// Derived is everything computed from attributes, level, equipment and the
// active buff.
type Derived struct {
	AttackPower float64
	Defense     float64
	SpellPower  float64
	CritChance  float64
	MoveSpeed   float64
	MaxHP       float64
	MaxMP       float64
}

// DeriveStats computes derived values for a character of class c.
func DeriveStats(c *gamedata.Class, cs ecs.CombatStats, eq gamedata.Bonuses, buff *ecs.Buff) Derived {
	level := max(cs.Level, 1)

	d := Derived{
		AttackPower: float64(cs.Strength*attackPerStrength+level*attackPerLevel) + eq.Attack,
		Defense:     float64(cs.Vitality) + eq.Defense,
		SpellPower:  eq.SpellPower,
		CritChance:  min(float64(cs.Dexterity)*critPerDexterity+eq.CritChance, MaxCritChance),
		MoveSpeed:   c.MoveSpeed + eq.MoveSpeed,
		MaxHP:       c.BaseHP + float64(cs.Vitality*hpPerVitality) + float64(level-1)*c.HPPerLevel,
		MaxMP:       c.BaseMP + float64(cs.Intellect*mpPerIntellect) + float64(level-1)*c.MPPerLevel,
	}

	if buff != nil {
		switch buff.Stat {
		case ecs.BuffStatAttack:
			d.AttackPower += buff.Magnitude
		case ecs.BuffStatDefense:
			d.Defense += buff.Magnitude
		case ecs.BuffStatMoveSpeed:
			d.MoveSpeed += buff.Magnitude
		}
	}
	return d
}

// BaseStats returns the level 1 combat stats of a fresh character.
func BaseStats(c *gamedata.Class) ecs.CombatStats {
	return ecs.CombatStats{
		Class:     c.ID,
		Level:     1,
		Strength:  c.Base.Strength,
		Dexterity: c.Base.Dexterity,
		Intellect: c.Base.Intellect,
		Vitality:  c.Base.Vitality,
	}
}

// ScalingValue maps a skill's scaling attribute to the number its
// multiplier applies to.
func ScalingValue(cs ecs.CombatStats, attr gamedata.Attribute) float64 {
	switch attr {
	case gamedata.Strength:
		return cs.AttackPower
	case gamedata.Intellect:
		return cs.AttackPower * 2.5
	case gamedata.Dexterity:
		return float64(cs.Dexterity)*2.0 + cs.AttackPower*0.5
	case gamedata.Vitality:
		return float64(cs.Vitality)
	}
	return 0
}
