package gamedata

type SkillType string

const (
	InstantMelee     SkillType = "instant_melee"
	RangedProjectile SkillType = "ranged_projectile"
	DashMelee        SkillType = "dash_melee"
	SelfBuff         SkillType = "self_buff"
	Heal             SkillType = "heal"
)

func (t SkillType) Valid() bool {
	switch t {
	case InstantMelee, RangedProjectile, DashMelee, SelfBuff, Heal:
		return true
	}
	return false
}

// Targeted reports whether the skill needs a selected target in range.
func (t SkillType) Targeted() bool {
	return t != SelfBuff && t != Heal
}

type Skill struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	Type             SkillType `yaml:"type"`
	Scaling          Attribute `yaml:"scaling"`
	Multiplier       float64   `yaml:"multiplier"`
	Magical          bool      `yaml:"magical"`
	ManaCost         float64   `yaml:"mana_cost"`
	Cooldown         float64   `yaml:"cooldown"`
	Range            float64   `yaml:"range"`
	ArmorPenetration float64   `yaml:"armor_penetration"`

	ProjectileSpeed    float64 `yaml:"projectile_speed"`
	ProjectileLifetime float64 `yaml:"projectile_lifetime"`

	BuffID        string  `yaml:"buff_id"`
	BuffStat      string  `yaml:"buff_stat"`
	BuffDuration  float64 `yaml:"buff_duration"`
	BuffMagnitude float64 `yaml:"buff_magnitude"`
}
