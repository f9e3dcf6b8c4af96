package gamedata

type LootEntry struct {
	ItemID string  `yaml:"item"`
	Chance float64 `yaml:"chance"`
	Min    int     `yaml:"min"`
	Max    int     `yaml:"max"`
}

type Monster struct {
	ID             string      `yaml:"id"`
	Name           string      `yaml:"name"`
	Level          int         `yaml:"level"`
	HP             float64     `yaml:"hp"`
	HPRegen        float64     `yaml:"hp_regen"`
	Defense        float64     `yaml:"defense"`
	AttackPower    float64     `yaml:"attack_power"`
	AttackRange    float64     `yaml:"attack_range"`
	AttackInterval float64     `yaml:"attack_interval"`
	MoveSpeed      float64     `yaml:"move_speed"`
	AggroRange     float64     `yaml:"aggro_range"`
	LeashRange     float64     `yaml:"leash_range"`
	Experience     int64       `yaml:"experience"`
	YangMin        int64       `yaml:"yang_min"`
	YangMax        int64       `yaml:"yang_max"`
	CorpseSeconds  float64     `yaml:"corpse_seconds"`
	Loot           []LootEntry `yaml:"loot"`
}
