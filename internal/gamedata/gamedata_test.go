package gamedata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultTablesLoad(t *testing.T) {
	d := Default()

	for _, id := range []string{"warrior", "ninja", "sura", "shaman"} {
		c, ok := d.Class(id)
		if !ok {
			t.Fatalf("expected class %q", id)
		}
		if len(c.Skills) != 2 {
			t.Fatalf("class %q: expected 2 skills, got %d", id, len(c.Skills))
		}
	}

	s, ok := d.ClassSkill("warrior", 0)
	if !ok || s.Type != InstantMelee {
		t.Fatalf("expected warrior slot 0 to be instant melee, got %+v", s)
	}
	if _, ok := d.ClassSkill("warrior", 2); ok {
		t.Fatalf("expected no skill in slot 2")
	}
	if _, ok := d.ClassSkill("nobody", 0); ok {
		t.Fatalf("expected no skill for unknown class")
	}
}

func TestUpgradeTable(t *testing.T) {
	d := Default()
	u := d.Upgrade

	if _, ok := u.Tier(u.MaxTier); ok {
		t.Fatalf("expected no entry at max tier %d", u.MaxTier)
	}
	if _, ok := u.Tier(-1); ok {
		t.Fatalf("expected no entry for negative tier")
	}

	for level := 0; level < u.MaxTier; level++ {
		tier, ok := u.Tier(level)
		if !ok {
			t.Fatalf("expected entry for tier %d", level)
		}
		if tier.Odds.Destroy > 0 {
			p := tier.OddsFor(true)
			if p.Destroy >= tier.Odds.Destroy {
				t.Fatalf("tier %d: protection must lower destroy odds", level)
			}
		}
	}

	low, _ := u.Tier(1)
	if low.OddsFor(true) != low.Odds {
		t.Fatalf("tier without protected odds must ignore protection")
	}
}

func TestItemBonusesAt(t *testing.T) {
	d := Default()
	sword, ok := d.Item("wooden_sword")
	if !ok {
		t.Fatalf("expected wooden_sword")
	}
	b := sword.BonusesAt(3)
	if b.Attack != 17 {
		t.Fatalf("expected attack 17 at +3, got %f", b.Attack)
	}
	if !sword.Equippable() || sword.Stackable() {
		t.Fatalf("sword must be equippable and not stackable")
	}
	if SlotNecklace.Index() != len(EquipSlots)-1 {
		t.Fatalf("unexpected necklace index %d", SlotNecklace.Index())
	}
	if EquipSlot("cape").Index() != -1 {
		t.Fatalf("unknown slot must have index -1")
	}
}

func TestParseRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "odds do not sum to one",
			yaml: `
items:
  - { id: stone, max_stack: 10 }
upgrade:
  max_tier: 1
  protection_item: stone
  tiers:
    - { tier: 0, material: stone, odds: { success: 0.5, fail: 0.2 } }
`,
			want: "odds sum",
		},
		{
			name: "unknown skill on class",
			yaml: `
classes:
  - { id: knight, skills: [slash] }
items:
  - { id: stone, max_stack: 10 }
upgrade: { max_tier: 0, protection_item: stone }
`,
			want: "unknown skill",
		},
		{
			name: "stackable equipment",
			yaml: `
items:
  - { id: ring, max_stack: 5, slot: earring }
upgrade: { max_tier: 0, protection_item: ring }
`,
			want: "cannot stack",
		},
		{
			name: "destructive tier without protection",
			yaml: `
items:
  - { id: stone, max_stack: 10 }
upgrade:
  max_tier: 2
  protection_item: stone
  tiers:
    - { tier: 1, material: stone, downgrade_to: 0, odds: { success: 0.5, downgrade: 0.25, destroy: 0.25 } }
`,
			want: "needs protected odds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.yaml")
	if err := os.WriteFile(path, defaultData, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := d.Monster("wolf"); !ok {
		t.Fatalf("expected wolf template")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
