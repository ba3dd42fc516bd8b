// Package source locates catalog documents: bundled seeds, local files and
// remote URLs listed in a catalogs.toml manifest. It returns raw bytes;
// decoding belongs to the caller.
package source

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed seed/*.json
var seeds embed.FS

// Bundled seed names.
const (
	SeedMotor   = "motor_model.json"
	SeedModules = "modules.json"
	SeedCompat  = "ra_sample.json"
)

// Bundled returns an embedded seed document.
func Bundled(name string) ([]byte, error) {
	data, err := seeds.ReadFile("seed/" + name)
	if err != nil {
		return nil, fmt.Errorf("bundled seed %s: %w", name, err)
	}
	return data, nil
}

// BundledNames lists the embedded seeds.
func BundledNames() []string {
	entries, _ := fs.ReadDir(seeds, "seed")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}
