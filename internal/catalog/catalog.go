// Package catalog owns the loaded catalogs: their datasets, derived indexes,
// view state and persisted preferences. Each catalog is guarded by its own
// RWMutex; indexes are rebuilt wholesale whenever the dataset is replaced.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalogexplorer/internal/filter"
	"catalogexplorer/internal/index"
	"catalogexplorer/internal/observability"
	"catalogexplorer/internal/prefs"
	"catalogexplorer/internal/source"
	"catalogexplorer/internal/transfer"
	"catalogexplorer/internal/view"
	"catalogexplorer/pkg/domain"
)

var (
	// ErrCatalogNotFound is returned for unknown catalog names.
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrUnsupported is returned when an operation does not apply to a catalog's kind.
	ErrUnsupported = errors.New("operation not supported for this catalog kind")
	// ErrItemNotFound is returned for unknown compat names and selections.
	ErrItemNotFound = errors.New("item not found")
)

// Origins beyond the manifest sources.
const (
	OriginImported source.Origin = "import"
	OriginRestored source.Origin = "prefs"
)

// dataset is the decoded document of one catalog; only the field of its kind is set.
type dataset struct {
	records []domain.Record
	modules []domain.Module
	compat  domain.CompatRoot
}

func decode(kind domain.Kind, data []byte) (dataset, error) {
	switch kind {
	case domain.KindTable:
		recs, err := transfer.DecodeTable(data)
		return dataset{records: recs}, err
	case domain.KindModules:
		mods, err := transfer.DecodeModules(data)
		return dataset{modules: mods}, err
	case domain.KindCompat:
		root, err := transfer.DecodeCompat(data)
		return dataset{compat: root}, err
	}
	return dataset{}, fmt.Errorf("unknown catalog kind %q", kind)
}

// Catalog is one loaded catalog.
type Catalog struct {
	spec    source.Spec
	prefs   prefs.Store
	logger  *zap.Logger
	metrics *observability.Metrics

	mu       sync.RWMutex
	data     dataset
	columns  []string
	compatIx index.CompatIndex
	origin   source.Origin
	warning  string
	fallback bool
	updated  time.Time

	tableView  *view.State[domain.Record]
	moduleView *view.State[domain.Module]
	compatView *view.CompatState
}

func newCatalog(spec source.Spec, store prefs.Store, logger *zap.Logger, metrics *observability.Metrics) *Catalog {
	c := &Catalog{
		spec:       spec,
		prefs:      store,
		logger:     logger.With(zap.String("catalog", spec.Name)),
		metrics:    metrics,
		tableView:  view.New(nil, func(a, b domain.Record) bool { return a.Equal(b) }),
		moduleView: view.New(nil, domain.SameModule),
		compatView: view.NewCompatState(),
	}
	c.tableView.SetGroupKey(spec.GroupBy)
	return c
}

// Name returns the catalog name.
func (c *Catalog) Name() string { return c.spec.Name }

// Kind returns the catalog kind.
func (c *Catalog) Kind() domain.Kind { return c.spec.Kind }

// Spec returns the manifest entry.
func (c *Catalog) Spec() source.Spec { return c.spec }

// install replaces the dataset and rebuilds everything derived from it.
func (c *Catalog) install(ds dataset, origin source.Origin, warning string, fallback bool) {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = ds
	c.origin = origin
	c.warning = warning
	c.fallback = fallback
	c.updated = time.Now().UTC()
	switch c.spec.Kind {
	case domain.KindTable:
		c.columns = index.Columns(ds.records)
		if c.tableView.GroupKey() == "" && len(c.columns) > 0 {
			c.tableView.SetGroupKey(c.columns[0])
		}
		c.tableView.Replace(ds.records)
	case domain.KindModules:
		c.moduleView.Replace(ds.modules)
	case domain.KindCompat:
		c.compatIx = index.BuildCompat(ds.compat)
		c.compatView.Revalidate(c.compatIx)
	}
	c.metrics.ObserveIndexBuild(c.spec.Name, time.Since(start))
	c.metrics.SetFallback(c.spec.Name, fallback)
}

// value returns the dataset in its document shape. Callers hold c.mu.
func (c *Catalog) value() any {
	switch c.spec.Kind {
	case domain.KindTable:
		if c.data.records == nil {
			return []domain.Record{}
		}
		return c.data.records
	case domain.KindModules:
		if c.data.modules == nil {
			return []domain.Module{}
		}
		return c.data.modules
	default:
		return c.data.compat
	}
}

func (c *Catalog) size() int {
	switch c.spec.Kind {
	case domain.KindTable:
		return len(c.data.records)
	case domain.KindModules:
		return len(c.data.modules)
	default:
		return c.data.compat.Associations()
	}
}

// Info summarises a catalog for listings.
type Info struct {
	Name     string        `json:"name"`
	Title    string        `json:"title,omitempty"`
	Kind     domain.Kind   `json:"kind"`
	Origin   source.Origin `json:"origin"`
	Location string        `json:"location,omitempty"`
	Size     int           `json:"size"`
	Fallback bool          `json:"fallback"`
	Warning  string        `json:"warning,omitempty"`
	Updated  time.Time     `json:"updated"`
}

// Info returns the catalog summary.
func (c *Catalog) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Info{
		Name:     c.spec.Name,
		Title:    c.spec.Title,
		Kind:     c.spec.Kind,
		Origin:   c.origin,
		Location: c.spec.Location(),
		Size:     c.size(),
		Fallback: c.fallback,
		Warning:  c.warning,
		Updated:  c.updated,
	}
}

// Description is the detailed view of a catalog's shape.
type Description struct {
	Info
	Columns   []string       `json:"columns,omitempty"`
	GroupBy   string         `json:"group_by,omitempty"`
	GroupKeys []string       `json:"group_keys"`
	Counts    map[string]int `json:"counts"`
}

// Describe returns the columns, group keys and group sizes under the active grouping.
func (c *Catalog) Describe() Description {
	info := c.Info()
	c.mu.RLock()
	defer c.mu.RUnlock()
	d := Description{Info: info}
	switch c.spec.Kind {
	case domain.KindTable:
		d.Columns = append([]string(nil), c.columns...)
		d.GroupBy = c.tableView.GroupKey()
		g := index.GroupRecords(c.data.records, d.GroupBy)
		d.GroupKeys, d.Counts = g.Keys, g.Counts()
	case domain.KindModules:
		d.GroupBy = "class"
		g := index.GroupModules(c.data.modules)
		d.GroupKeys, d.Counts = g.Keys, g.Counts()
	case domain.KindCompat:
		d.GroupKeys = []string{string(index.ModeProjects), string(index.ModeKits)}
		d.Counts = map[string]int{
			string(index.ModeProjects): len(c.compatIx.Names(index.ModeProjects)),
			string(index.ModeKits):     len(c.compatIx.Names(index.ModeKits)),
			"associations":             c.data.compat.Associations(),
		}
	}
	return d
}

func recordHaystack(r domain.Record) string {
	parts := make([]string, 0, r.Len())
	for _, f := range r.Fields() {
		parts = append(parts, r.Text(f))
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Records returns the table records matching query. A non-empty group
// restricts the result to records in that group of the active grouping key.
func (c *Catalog) Records(query, group string) ([]domain.Record, error) {
	if c.spec.Kind != domain.KindTable {
		return nil, ErrUnsupported
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.records(query, group), nil
}

func (c *Catalog) records(query, group string) []domain.Record {
	recs := c.data.records
	if group != "" {
		recs = index.GroupRecords(recs, c.tableView.GroupKey()).Get(group)
	}
	return filter.Apply(recs, query, recordHaystack)
}

// Modules returns the modules matching query, narrowed to class first when set.
func (c *Catalog) Modules(query, class string) ([]domain.Module, error) {
	if c.spec.Kind != domain.KindModules {
		return nil, ErrUnsupported
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.modules(query, class), nil
}

func (c *Catalog) modules(query, class string) []domain.Module {
	mods := c.data.modules
	if class != "" {
		mods = index.GroupModules(mods).Get(class)
	}
	return filter.Apply(mods, query, domain.Module.Haystack)
}

// GroupRecords groups the table by field; empty field uses the active grouping key.
func (c *Catalog) GroupRecords(field string) (index.Grouping[domain.Record], error) {
	if c.spec.Kind != domain.KindTable {
		return index.Grouping[domain.Record]{}, ErrUnsupported
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if field == "" {
		field = c.tableView.GroupKey()
	}
	return index.GroupRecords(c.data.records, field), nil
}

// GroupModules groups modules by class.
func (c *Catalog) GroupModules() (index.Grouping[domain.Module], error) {
	if c.spec.Kind != domain.KindModules {
		return index.Grouping[domain.Module]{}, ErrUnsupported
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return index.GroupModules(c.data.modules), nil
}

// Compat returns the compatibility index.
func (c *Catalog) Compat() (index.CompatIndex, error) {
	if c.spec.Kind != domain.KindCompat {
		return index.CompatIndex{}, ErrUnsupported
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compatIx, nil
}

// NameCount is a compat list entry with its counterpart count.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// CompatNames lists names of one side matching query, with counterpart counts.
func (c *Catalog) CompatNames(mode index.Mode, query string) ([]NameCount, error) {
	idx, err := c.Compat()
	if err != nil {
		return nil, err
	}
	names := filter.Names(idx.Names(mode), query)
	out := make([]NameCount, 0, len(names))
	for _, n := range names {
		out = append(out, NameCount{Name: n, Count: idx.Count(mode, n)})
	}
	return out, nil
}

// Counterpart is one entry of a detail card: a kit for a project, or a
// project for a kit, with its example links.
type Counterpart struct {
	Name    string        `json:"name"`
	KitRoot string        `json:"kit_root,omitempty"`
	Links   []domain.Link `json:"links"`
}

// Detail is the card shown for a picked compat name.
type Detail struct {
	Mode         index.Mode    `json:"mode"`
	Name         string        `json:"name"`
	KitRoot      string        `json:"kit_root,omitempty"`
	Counterparts []Counterpart `json:"counterparts"`
}

// CompatDetail returns the detail card for name on the mode side.
func (c *Catalog) CompatDetail(mode index.Mode, name string) (Detail, error) {
	idx, err := c.Compat()
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Mode: mode, Name: name, Counterparts: []Counterpart{}}
	if mode == index.ModeKits {
		node, ok := idx.Kits[name]
		if !ok {
			return Detail{}, fmt.Errorf("kit %s: %w", name, ErrItemNotFound)
		}
		d.KitRoot = node.KitRoot
		for _, p := range node.Projects {
			d.Counterparts = append(d.Counterparts, Counterpart{Name: p, Links: links(node.LinksByProject[p])})
		}
		return d, nil
	}
	node, ok := idx.Projects[name]
	if !ok {
		return Detail{}, fmt.Errorf("project %s: %w", name, ErrItemNotFound)
	}
	for _, k := range node.Kits {
		cp := Counterpart{Name: k, Links: links(node.LinksByKit[k])}
		if kit, ok := idx.Kits[k]; ok {
			cp.KitRoot = kit.KitRoot
		}
		d.Counterparts = append(d.Counterparts, cp)
	}
	return d, nil
}

func links(ms []domain.Mapping) []domain.Link {
	out := make([]domain.Link, 0, len(ms))
	for _, m := range ms {
		out = append(out, domain.LinkFor(m))
	}
	return out
}

// Import replaces the dataset with data. A rejected document leaves the
// current dataset untouched and returns the *transfer.ImportError.
func (c *Catalog) Import(ctx context.Context, data []byte) error {
	ds, err := decode(c.spec.Kind, data)
	if err != nil {
		c.metrics.CountImport(c.spec.Name, "rejected")
		c.logger.Info("import rejected", zap.Error(err))
		return err
	}
	c.install(ds, OriginImported, "", false)
	c.metrics.CountImport(c.spec.Name, "ok")
	c.logger.Info("dataset imported", zap.Int("size", c.Info().Size))
	c.persistData(ctx)
	return nil
}

func (c *Catalog) persistData(ctx context.Context) {
	if c.prefs == nil {
		return
	}
	c.mu.RLock()
	raw, err := json.Marshal(c.value())
	c.mu.RUnlock()
	if err != nil {
		c.logger.Warn("encode dataset for prefs", zap.Error(err))
		return
	}
	if err := c.prefs.Put(ctx, prefs.Key(c.spec.Prefix(), prefs.FieldData), string(raw)); err != nil {
		c.logger.Warn("persist dataset", zap.Error(err))
	}
}

// Export renders the dataset as two-space indented JSON and returns the
// suggested download filename.
func (c *Catalog) Export() ([]byte, string, error) {
	data, err := c.Encode(transfer.FormatJSON)
	return data, c.spec.Filename(), err
}

// Encode renders the dataset in format.
func (c *Catalog) Encode(format transfer.Format) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch format {
	case transfer.FormatJSON:
		return transfer.EncodeJSON(c.value())
	case transfer.FormatYAML:
		return transfer.EncodeYAML(c.value())
	case transfer.FormatCSV:
		switch c.spec.Kind {
		case domain.KindTable:
			return transfer.EncodeCSV(c.columns, transfer.TableRows(c.data.records, c.columns))
		case domain.KindModules:
			return transfer.EncodeCSV(transfer.ModuleHeader, transfer.ModuleRows(c.data.modules))
		default:
			return transfer.EncodeCSV(transfer.CompatHeader, transfer.CompatRows(c.data.compat))
		}
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// Filename returns the export filename for format.
func (c *Catalog) Filename(format transfer.Format) string {
	base := strings.TrimSuffix(c.spec.Filename(), ".json")
	return base + "." + format.Extension()
}
