package data

import (
	"fmt"
	"os"

	"github.com/rockfall/arena/internal/world"
	"gopkg.in/yaml.v3"
)

// MapInfo is one playable arena, loaded from maps.yaml.
type MapInfo struct {
	Name   string  `yaml:"name"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// MapTable resolves map names to arena dimensions.
type MapTable struct {
	maps map[string]MapInfo
}

type mapListFile struct {
	Maps []MapInfo `yaml:"maps"`
}

// LoadMapTable loads map definitions from YAML.
func LoadMapTable(path string) (*MapTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map list %s: %w", path, err)
	}
	return ParseMapTable(raw)
}

func ParseMapTable(raw []byte) (*MapTable, error) {
	var file mapListFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse map list: %w", err)
	}
	t := &MapTable{maps: make(map[string]MapInfo, len(file.Maps))}
	for _, m := range file.Maps {
		if m.Name == "" || m.Width <= 2*world.PlayerRadius || m.Height <= 2*world.PlayerRadius {
			return nil, fmt.Errorf("map %q: invalid dimensions %vx%v", m.Name, m.Width, m.Height)
		}
		t.maps[m.Name] = m
	}
	return t, nil
}

func (t *MapTable) Count() int { return len(t.maps) }

// Arena returns the arena for name, or the default arena for unknown maps.
func (t *MapTable) Arena(name string) world.Arena {
	if t != nil {
		if m, ok := t.maps[name]; ok {
			return world.Arena{Width: m.Width, Height: m.Height}
		}
	}
	return world.DefaultArena
}
