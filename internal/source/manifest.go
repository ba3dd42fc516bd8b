package source

import (
	"errors"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"catalogexplorer/pkg/domain"
)

// Origin says where a catalog document comes from.
type Origin string

const (
	OriginBundled Origin = "bundled"
	OriginFile    Origin = "file"
	OriginURL     Origin = "url"
)

// CompatURL is the published compatibility document.
const CompatURL = "https://ngv.rs/a?alias=leighs.micro.webapp.demo7.nano.data.1.eval_kits_sw.json&dr=true"

// Spec declares one catalog.
type Spec struct {
	Name        string      `toml:"name"`
	Title       string      `toml:"title"`
	Kind        domain.Kind `toml:"kind"`
	Source      Origin      `toml:"source"`
	Path        string      `toml:"path"`     // bundled seed name or file path
	URL         string      `toml:"url"`      // Source == url
	Fallback    string      `toml:"fallback"` // bundled seed used when loading fails
	GroupBy     string      `toml:"group_by"`
	PrefsPrefix string      `toml:"prefs_prefix"`
	ExportName  string      `toml:"export_name"`
}

// Location renders the path or URL the document is read from.
func (s Spec) Location() string {
	if s.Source == OriginURL {
		return s.URL
	}
	return s.Path
}

// Prefix returns the preference namespace, defaulting to the catalog name.
func (s Spec) Prefix() string {
	if s.PrefsPrefix != "" {
		return s.PrefsPrefix
	}
	return s.Name
}

// Filename returns the default export filename.
func (s Spec) Filename() string {
	if s.ExportName != "" {
		return s.ExportName
	}
	return s.Name + ".json"
}

// Manifest is the parsed catalogs.toml.
type Manifest struct {
	Catalogs []Spec `toml:"catalog"`
}

// DefaultManifest describes the three bundled explorers.
func DefaultManifest() Manifest {
	return Manifest{Catalogs: []Spec{
		{
			Name: "motor", Title: "Motor Control Explorer", Kind: domain.KindTable,
			Source: OriginBundled, Path: SeedMotor, GroupBy: "MCU (MCB)",
		},
		{
			Name: "modules", Title: "Embedded SW Module Explorer", Kind: domain.KindModules,
			Source: OriginBundled, Path: SeedModules, PrefsPrefix: "mods", ExportName: "modules.json",
		},
		{
			Name: "ra", Title: "RA Eval Kits & SW Projects", Kind: domain.KindCompat,
			Source: OriginURL, URL: CompatURL, Fallback: SeedCompat,
		},
	}}
}

// LoadManifest reads path, or returns DefaultManifest when path is empty.
func LoadManifest(path string) (Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	for i := range m.Catalogs {
		if m.Catalogs[i].Source == "" {
			m.Catalogs[i].Source = OriginBundled
		}
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks names are unique and each entry is loadable.
func (m Manifest) Validate() error {
	if len(m.Catalogs) == 0 {
		return errors.New("manifest declares no catalogs")
	}
	seen := make(map[string]struct{}, len(m.Catalogs))
	var errs []error
	for _, c := range m.Catalogs {
		if c.Name == "" {
			errs = append(errs, errors.New("catalog without name"))
			continue
		}
		if _, dup := seen[c.Name]; dup {
			errs = append(errs, fmt.Errorf("catalog %s declared twice", c.Name))
		}
		seen[c.Name] = struct{}{}
		if _, err := domain.ParseKind(string(c.Kind)); err != nil {
			errs = append(errs, fmt.Errorf("catalog %s: %w", c.Name, err))
		}
		switch c.Source {
		case OriginBundled, OriginFile:
			if c.Path == "" {
				errs = append(errs, fmt.Errorf("catalog %s: path required for %s source", c.Name, c.Source))
			}
		case OriginURL:
			if c.URL == "" {
				errs = append(errs, fmt.Errorf("catalog %s: url required", c.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("catalog %s: unknown source %q", c.Name, c.Source))
		}
	}
	return errors.Join(errs...)
}
