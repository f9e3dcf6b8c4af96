package zone

import (
	_ "embed"
	"fmt"
	"log/slog"
	"math"
	"os"

	"realm-server/internal/gamedata"

	"github.com/BurntSushi/toml"
	"github.com/go-gl/mathgl/mgl64"
)

//go:embed data/zones.toml
var defaultZones []byte

type SpawnerDefinition struct {
	Monster        string    `toml:"monster"`
	Position       []float64 `toml:"position"`
	Count          int       `toml:"count"`
	Spread         float64   `toml:"spread"`
	RespawnSeconds float64   `toml:"respawn_seconds"`
}

// Definition describes one zone: where players appear and what lives there.
type Definition struct {
	ID           string              `toml:"id"`
	Name         string              `toml:"name"`
	DefaultClass string              `toml:"default_class"`
	Spawn        []float64           `toml:"spawn"`
	Spawners     []SpawnerDefinition `toml:"spawner"`
}

type definitionsFile struct {
	Zones []Definition `toml:"zone"`
}

// SpawnPoint returns the player spawn position.
func (d Definition) SpawnPoint() mgl64.Vec3 {
	return vec(d.Spawn)
}

// Points spreads the spawner's monsters evenly on a circle around its
// position.
func (s SpawnerDefinition) Points() []mgl64.Vec3 {
	center := vec(s.Position)
	count := max(s.Count, 1)
	points := make([]mgl64.Vec3, count)
	for i := range points {
		if count == 1 || s.Spread <= 0 {
			points[i] = center
			continue
		}
		angle := 2 * math.Pi * float64(i) / float64(count)
		points[i] = center.Add(mgl64.Vec3{math.Cos(angle) * s.Spread, 0, math.Sin(angle) * s.Spread})
	}
	return points
}

// LoadDefinitions reads zone definitions from path, or the embedded
// defaults when path is empty, and checks them against the game data. Zones
// that name no default class get defaultClass.
func LoadDefinitions(path string, data *gamedata.Data, defaultClass string) ([]Definition, error) {
	logger := slog.With("component", "zone", "operation", "LoadDefinitions")

	raw := defaultZones
	source := "embedded"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read zone definitions %s: %w", path, err)
		}
		raw = b
		source = path
	}

	defs, err := ParseDefinitions(raw, data, defaultClass)
	if err != nil {
		logger.Error("Invalid zone definitions", "source", source, "error", err)
		return nil, err
	}

	logger.Info("Zone definitions loaded", "source", source, "zones", len(defs))
	return defs, nil
}

func ParseDefinitions(raw []byte, data *gamedata.Data, defaultClass string) ([]Definition, error) {
	var f definitionsFile
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse zone definitions: %w", err)
	}
	if len(f.Zones) == 0 {
		return nil, fmt.Errorf("no zones defined")
	}

	seen := make(map[string]bool, len(f.Zones))
	for i := range f.Zones {
		d := &f.Zones[i]
		if d.ID == "" {
			return nil, fmt.Errorf("zone %d: missing id", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("zone %s: duplicate id", d.ID)
		}
		seen[d.ID] = true

		if d.Name == "" {
			d.Name = d.ID
		}
		if d.DefaultClass == "" {
			d.DefaultClass = defaultClass
		}
		if _, ok := data.Class(d.DefaultClass); !ok {
			return nil, fmt.Errorf("zone %s: unknown default class %q", d.ID, d.DefaultClass)
		}
		if len(d.Spawn) != 3 {
			return nil, fmt.Errorf("zone %s: spawn must have 3 coordinates", d.ID)
		}
		for j, s := range d.Spawners {
			if _, ok := data.Monster(s.Monster); !ok {
				return nil, fmt.Errorf("zone %s spawner %d: unknown monster %q", d.ID, j, s.Monster)
			}
			if len(s.Position) != 3 {
				return nil, fmt.Errorf("zone %s spawner %d: position must have 3 coordinates", d.ID, j)
			}
			if s.Count < 0 || s.RespawnSeconds < 0 {
				return nil, fmt.Errorf("zone %s spawner %d: count and respawn_seconds must not be negative", d.ID, j)
			}
		}
	}
	return f.Zones, nil
}

func vec(v []float64) mgl64.Vec3 {
	var out mgl64.Vec3
	copy(out[:], v)
	return out
}
