package gamedata

// EquipSlot is an equipment category. The zero value means the item cannot
// be equipped.
type EquipSlot string

const (
	SlotWeapon   EquipSlot = "weapon"
	SlotHelmet   EquipSlot = "helmet"
	SlotArmor    EquipSlot = "armor"
	SlotBoots    EquipSlot = "boots"
	SlotShield   EquipSlot = "shield"
	SlotEarring  EquipSlot = "earring"
	SlotBracelet EquipSlot = "bracelet"
	SlotNecklace EquipSlot = "necklace"
)

// EquipSlots lists every category in storage order.
var EquipSlots = [...]EquipSlot{
	SlotWeapon,
	SlotHelmet,
	SlotArmor,
	SlotBoots,
	SlotShield,
	SlotEarring,
	SlotBracelet,
	SlotNecklace,
}

// Index returns the storage index of the slot, or -1.
func (s EquipSlot) Index() int {
	for i, slot := range EquipSlots {
		if slot == s {
			return i
		}
	}
	return -1
}

// Bonuses is the stat contribution of equipment.
type Bonuses struct {
	Attack     float64 `yaml:"attack" json:"attack"`
	Defense    float64 `yaml:"defense" json:"defense"`
	SpellPower float64 `yaml:"spell_power" json:"spellPower"`
	CritChance float64 `yaml:"crit_chance" json:"critChance"`
	MoveSpeed  float64 `yaml:"move_speed" json:"moveSpeed"`
}

func (b Bonuses) Add(o Bonuses) Bonuses {
	return Bonuses{
		Attack:     b.Attack + o.Attack,
		Defense:    b.Defense + o.Defense,
		SpellPower: b.SpellPower + o.SpellPower,
		CritChance: b.CritChance + o.CritChance,
		MoveSpeed:  b.MoveSpeed + o.MoveSpeed,
	}
}

func (b Bonuses) Scale(f float64) Bonuses {
	return Bonuses{
		Attack:     b.Attack * f,
		Defense:    b.Defense * f,
		SpellPower: b.SpellPower * f,
		CritChance: b.CritChance * f,
		MoveSpeed:  b.MoveSpeed * f,
	}
}

type Item struct {
	ID       string    `yaml:"id"`
	Name     string    `yaml:"name"`
	MaxStack int       `yaml:"max_stack"`
	Slot     EquipSlot `yaml:"slot"`
	Class    string    `yaml:"class"` // empty = any class
	Level    int       `yaml:"level"`

	Consumable bool    `yaml:"consumable"`
	Heal       float64 `yaml:"heal"`
	Mana       float64 `yaml:"mana"`

	Bonuses      Bonuses `yaml:"bonuses"`
	UpgradeBonus Bonuses `yaml:"upgrade_bonus"` // per upgrade level
}

func (i *Item) Stackable() bool {
	return i.MaxStack > 1
}

func (i *Item) Equippable() bool {
	return i.Slot != ""
}

// BonusesAt returns the item's bonuses at the given upgrade level.
func (i *Item) BonusesAt(upgradeLevel int) Bonuses {
	return i.Bonuses.Add(i.UpgradeBonus.Scale(float64(upgradeLevel)))
}
