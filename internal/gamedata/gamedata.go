package gamedata

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/game.yaml
var defaultData []byte

// Data holds every static table the simulation reads. It is immutable after
// Load and safe to share between zones.
type Data struct {
	classes  map[string]*Class
	skills   map[string]*Skill
	items    map[string]*Item
	monsters map[string]*Monster
	Upgrade  UpgradeTable
}

type file struct {
	Classes  []Class      `yaml:"classes"`
	Skills   []Skill      `yaml:"skills"`
	Items    []Item       `yaml:"items"`
	Monsters []Monster    `yaml:"monsters"`
	Upgrade  UpgradeTable `yaml:"upgrade"`
}

// Load reads game data from path, or the embedded defaults when path is
// empty.
func Load(path string) (*Data, error) {
	logger := slog.With("component", "gamedata", "operation", "Load")

	raw := defaultData
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read game data: %w", err)
		}
		raw = b
		source = path
	}

	d, err := Parse(raw)
	if err != nil {
		logger.Error("Invalid game data", "source", source, "error", err)
		return nil, err
	}

	logger.Info("Game data loaded",
		"source", source,
		"classes", len(d.classes),
		"skills", len(d.skills),
		"items", len(d.items),
		"monsters", len(d.monsters),
		"upgrade_tiers", len(d.Upgrade.Tiers))
	return d, nil
}

// Default returns the embedded tables. It panics if they are invalid, which
// only a broken build can cause.
func Default() *Data {
	d, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("embedded game data: %v", err))
	}
	return d
}

func Parse(raw []byte) (*Data, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse game data: %w", err)
	}

	d := &Data{
		classes:  make(map[string]*Class, len(f.Classes)),
		skills:   make(map[string]*Skill, len(f.Skills)),
		items:    make(map[string]*Item, len(f.Items)),
		monsters: make(map[string]*Monster, len(f.Monsters)),
		Upgrade:  f.Upgrade,
	}
	for i := range f.Classes {
		d.classes[f.Classes[i].ID] = &f.Classes[i]
	}
	for i := range f.Skills {
		d.skills[f.Skills[i].ID] = &f.Skills[i]
	}
	for i := range f.Items {
		d.items[f.Items[i].ID] = &f.Items[i]
	}
	for i := range f.Monsters {
		d.monsters[f.Monsters[i].ID] = &f.Monsters[i]
	}

	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("validate game data: %w", err)
	}
	return d, nil
}

func (d *Data) validate() error {
	for id, s := range d.skills {
		if !s.Type.Valid() {
			return fmt.Errorf("skill %q: unknown type %q", id, s.Type)
		}
		if s.Type != SelfBuff && !s.Scaling.Valid() {
			return fmt.Errorf("skill %q: unknown scaling %q", id, s.Scaling)
		}
		if s.Type == RangedProjectile && (s.ProjectileSpeed <= 0 || s.ProjectileLifetime <= 0) {
			return fmt.Errorf("skill %q: projectile needs speed and lifetime", id)
		}
		if s.Type == SelfBuff {
			switch s.BuffStat {
			case "attack", "defense", "move_speed":
			default:
				return fmt.Errorf("skill %q: unknown buff stat %q", id, s.BuffStat)
			}
			if s.BuffDuration <= 0 {
				return fmt.Errorf("skill %q: buff duration must be positive", id)
			}
		}
		if s.ArmorPenetration < 0 || s.ArmorPenetration > 1 {
			return fmt.Errorf("skill %q: armor penetration out of range", id)
		}
	}

	for id, c := range d.classes {
		if len(c.Skills) > 2 {
			return fmt.Errorf("class %q: at most 2 skills, got %d", id, len(c.Skills))
		}
		for _, sid := range c.Skills {
			if sid == "" {
				continue
			}
			if _, ok := d.skills[sid]; !ok {
				return fmt.Errorf("class %q: unknown skill %q", id, sid)
			}
		}
	}

	for id, it := range d.items {
		if it.MaxStack < 1 {
			return fmt.Errorf("item %q: max_stack must be at least 1", id)
		}
		if it.Slot != "" && it.Slot.Index() < 0 {
			return fmt.Errorf("item %q: unknown slot %q", id, it.Slot)
		}
		if it.Slot != "" && it.MaxStack != 1 {
			return fmt.Errorf("item %q: equippable items cannot stack", id)
		}
	}

	for id, m := range d.monsters {
		for _, l := range m.Loot {
			if _, ok := d.items[l.ItemID]; !ok {
				return fmt.Errorf("monster %q: unknown loot item %q", id, l.ItemID)
			}
		}
	}

	return d.validateUpgrade()
}

func (d *Data) validateUpgrade() error {
	u := &d.Upgrade
	if _, ok := d.items[u.ProtectionItem]; !ok {
		return fmt.Errorf("upgrade: unknown protection item %q", u.ProtectionItem)
	}
	for _, t := range u.Tiers {
		if t.Tier < 0 || t.Tier >= u.MaxTier {
			return fmt.Errorf("upgrade tier %d: outside [0, %d)", t.Tier, u.MaxTier)
		}
		if _, ok := d.items[t.Material]; !ok {
			return fmt.Errorf("upgrade tier %d: unknown material %q", t.Tier, t.Material)
		}
		if !approxOne(t.Odds.Sum()) {
			return fmt.Errorf("upgrade tier %d: odds sum to %f", t.Tier, t.Odds.Sum())
		}
		if t.Odds.Downgrade > 0 && (t.DowngradeTo < 0 || t.DowngradeTo >= t.Tier) {
			return fmt.Errorf("upgrade tier %d: downgrade_to %d must be below the tier", t.Tier, t.DowngradeTo)
		}
		if t.Odds.Destroy > 0 && t.Protected == nil {
			return fmt.Errorf("upgrade tier %d: destructive tier needs protected odds", t.Tier)
		}
		if t.Protected != nil {
			if !approxOne(t.Protected.Sum()) {
				return fmt.Errorf("upgrade tier %d: protected odds sum to %f", t.Tier, t.Protected.Sum())
			}
			if t.Odds.Destroy > 0 && t.Protected.Destroy >= t.Odds.Destroy {
				return fmt.Errorf("upgrade tier %d: protection must lower destroy odds", t.Tier)
			}
		}
	}
	return nil
}

func (d *Data) Class(id string) (*Class, bool) {
	c, ok := d.classes[id]
	return c, ok
}

func (d *Data) Skill(id string) (*Skill, bool) {
	s, ok := d.skills[id]
	return s, ok
}

func (d *Data) Item(id string) (*Item, bool) {
	it, ok := d.items[id]
	return it, ok
}

func (d *Data) Monster(id string) (*Monster, bool) {
	m, ok := d.monsters[id]
	return m, ok
}

// ClassSkill returns the skill a class has bound to slot.
func (d *Data) ClassSkill(classID string, slot int) (*Skill, bool) {
	c, ok := d.classes[classID]
	if !ok || slot < 0 || slot >= len(c.Skills) || c.Skills[slot] == "" {
		return nil, false
	}
	return d.Skill(c.Skills[slot])
}
