package gamedata

import "math"

// Odds are the four outcome probabilities of one upgrade attempt. They sum
// to 1.
type Odds struct {
	Success   float64 `yaml:"success"`
	Fail      float64 `yaml:"fail"`
	Downgrade float64 `yaml:"downgrade"`
	Destroy   float64 `yaml:"destroy"`
}

func (o Odds) Sum() float64 {
	return o.Success + o.Fail + o.Downgrade + o.Destroy
}

type UpgradeTier struct {
	Tier        int    `yaml:"tier"`
	Material    string `yaml:"material"`
	Odds        Odds   `yaml:"odds"`
	DowngradeTo int    `yaml:"downgrade_to"`
	Protected   *Odds  `yaml:"protected"` // nil = protection changes nothing
}

// OddsFor returns the odds that apply with or without a protective item.
func (t *UpgradeTier) OddsFor(protected bool) Odds {
	if protected && t.Protected != nil {
		return *t.Protected
	}
	return t.Odds
}

type UpgradeTable struct {
	MaxTier        int           `yaml:"max_tier"`
	ProtectionItem string        `yaml:"protection_item"`
	Tiers          []UpgradeTier `yaml:"tiers"`
}

// Tier returns the entry used when upgrading an item currently at level.
func (t *UpgradeTable) Tier(level int) (*UpgradeTier, bool) {
	if level < 0 || level >= t.MaxTier {
		return nil, false
	}
	for i := range t.Tiers {
		if t.Tiers[i].Tier == level {
			return &t.Tiers[i], true
		}
	}
	return nil, false
}

func approxOne(v float64) bool {
	return math.Abs(v-1) < 1e-6
}
