package gamedata

// Attribute names one of the four allocatable stats.
type Attribute string

const (
	Strength  Attribute = "strength"
	Dexterity Attribute = "dexterity"
	Intellect Attribute = "intellect"
	Vitality  Attribute = "vitality"
)

func (a Attribute) Valid() bool {
	switch a {
	case Strength, Dexterity, Intellect, Vitality:
		return true
	}
	return false
}

type Attributes struct {
	Strength  int `yaml:"strength"`
	Dexterity int `yaml:"dexterity"`
	Intellect int `yaml:"intellect"`
	Vitality  int `yaml:"vitality"`
}

// Get returns the value of a single attribute.
func (a Attributes) Get(attr Attribute) int {
	switch attr {
	case Strength:
		return a.Strength
	case Dexterity:
		return a.Dexterity
	case Intellect:
		return a.Intellect
	case Vitality:
		return a.Vitality
	}
	return 0
}

// Class is a playable class template. Base attributes are also the floor
// below which a character's attributes may never drop.
type Class struct {
	ID             string     `yaml:"id"`
	Name           string     `yaml:"name"`
	Base           Attributes `yaml:"base"`
	BaseHP         float64    `yaml:"base_hp"`
	BaseMP         float64    `yaml:"base_mp"`
	HPPerLevel     float64    `yaml:"hp_per_level"`
	MPPerLevel     float64    `yaml:"mp_per_level"`
	HPRegen        float64    `yaml:"hp_regen"`
	MPRegen        float64    `yaml:"mp_regen"`
	CritMultiplier float64    `yaml:"crit_multiplier"`
	MoveSpeed      float64    `yaml:"move_speed"`
	AttackRange    float64    `yaml:"attack_range"`
	AttackInterval float64    `yaml:"attack_interval"`
	Skills         []string   `yaml:"skills"` // index = skill slot
}
