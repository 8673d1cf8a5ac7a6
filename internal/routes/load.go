package routes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"controlroom.busops.org/internal/appconf"
)

//go:embed default_routes.yaml
var defaultRoutes []byte

// file is the on-disk layout of a route table.
type file struct {
	CongestionZone appconf.BoundingBox `json:"congestion_zone" yaml:"congestion_zone"`
	Routes         []Route             `json:"routes" yaml:"routes"`
}

// Format selects the route file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// Parse decodes a route table document.
func Parse(data []byte, format Format) (*Table, error) {
	var f file
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("decode route table: %w", err)
	}
	if len(f.Routes) == 0 {
		return nil, fmt.Errorf("%w: route table is empty", ErrInvalidRoute)
	}
	return NewTable(f.Routes, f.CongestionZone)
}

// LoadFile reads a route table from a .yaml, .yml or .json file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}
	format := FormatYAML
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	t, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Default is the built-in Bengaluru route set.
func Default() *Table {
	t, err := Parse(defaultRoutes, FormatYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded route table: %v", err))
	}
	return t
}
