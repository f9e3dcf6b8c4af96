package inventory

import "realm-server/internal/gamedata"

// Roller supplies uniform values in [0, 1).
type Roller interface {
	Float64() float64
}

// Outcome is the result of one upgrade attempt.
type Outcome uint8

const (
	Success Outcome = iota
	Fail
	Downgrade
	Destroy
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case Downgrade:
		return "downgrade"
	case Destroy:
		return "destroy"
	default:
		return "unknown"
	}
}

type UpgradeResult struct {
	Outcome        Outcome
	ItemID         string
	From           int
	To             int // 0 when destroyed
	UsedProtection bool
}

// Upgrade attempts to raise the upgrade level of the item in slot idx. All
// preconditions are checked before the material, and the protection item
// when requested, are consumed. Only then is the outcome rolled.
func (inv *Inventory) Upgrade(idx int, useProtection bool, rng Roller) (UpgradeResult, error) {
	s, err := inv.slot(idx)
	if err != nil {
		return UpgradeResult{}, err
	}
	if s.Empty() {
		return UpgradeResult{}, ErrSlotEmpty
	}
	item, ok := inv.data.Item(s.ItemID)
	if !ok || !item.Equippable() {
		return UpgradeResult{}, ErrNotEquippable
	}
	table := &inv.data.Upgrade
	tier, ok := table.Tier(s.UpgradeLevel)
	if !ok {
		return UpgradeResult{}, ErrMaxUpgrade
	}
	if inv.Count(tier.Material) < 1 {
		return UpgradeResult{}, ErrMissingMaterial
	}
	if useProtection && inv.Count(table.ProtectionItem) < 1 {
		return UpgradeResult{}, ErrMissingProtection
	}

	inv.consume(tier.Material)
	if useProtection {
		inv.consume(table.ProtectionItem)
	}

	res := UpgradeResult{
		ItemID:         s.ItemID,
		From:           s.UpgradeLevel,
		UsedProtection: useProtection,
	}
	res.Outcome = roll(tier.OddsFor(useProtection), rng)

	switch res.Outcome {
	case Success:
		s.UpgradeLevel++
		res.To = s.UpgradeLevel
	case Fail:
		res.To = s.UpgradeLevel
	case Downgrade:
		s.UpgradeLevel = tier.DowngradeTo
		res.To = s.UpgradeLevel
	case Destroy:
		*s = Slot{}
		res.To = 0
	}
	inv.dirty = true
	return res, nil
}

// roll picks an outcome by walking the cumulative odds. Any rounding
// remainder falls to Fail.
func roll(o gamedata.Odds, rng Roller) Outcome {
	r := rng.Float64()
	switch {
	case r < o.Success:
		return Success
	case r < o.Success+o.Fail:
		return Fail
	case r < o.Success+o.Fail+o.Downgrade:
		return Downgrade
	case r < o.Success+o.Fail+o.Downgrade+o.Destroy:
		return Destroy
	}
	return Fail
}
