package combat

// Roller supplies uniform values in [0, 1). *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

const (
	meleeCritMultiplier = 1.5
	minDamage           = 1
)

type hit struct {
	raw        float64
	critChance float64
	critMult   float64
	defense    float64
	armorPen   float64
	magical    bool
}

// resolveHit rolls the crit and applies mitigation. Crit scales the raw
// value before defense is subtracted.
func resolveHit(h hit, rng Roller) (float64, bool) {
	crit := h.critChance > 0 && rng.Float64() < h.critChance
	raw := h.raw
	if crit {
		raw *= h.critMult
	}

	mitigation := h.defense * (1 - h.armorPen)
	if h.magical {
		mitigation *= 0.5
	}
	return max(raw-mitigation, minDamage), crit
}
