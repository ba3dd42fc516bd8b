package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"catalogexplorer/internal/observability"
	"catalogexplorer/internal/prefs"
	"catalogexplorer/internal/source"
)

// Registry holds the catalogs declared by a manifest. The set of catalogs is
// fixed at construction; their datasets change through Load, Import and Reload.
type Registry struct {
	catalogs map[string]*Catalog
	order    []string

	loader  *source.Loader
	prefs   prefs.Store
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithLoader replaces the default document loader.
func WithLoader(l *source.Loader) Option { return func(r *Registry) { r.loader = l } }

// WithPrefs persists view state and imported datasets to s.
func WithPrefs(s prefs.Store) Option { return func(r *Registry) { r.prefs = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.logger = l } }

// WithMetrics records index builds, imports and fallbacks into m.
func WithMetrics(m *observability.Metrics) Option { return func(r *Registry) { r.metrics = m } }

// New builds an unloaded registry for m.
func New(m source.Manifest, opts ...Option) *Registry {
	r := &Registry{catalogs: make(map[string]*Catalog, len(m.Catalogs))}
	for _, opt := range opts {
		opt(r)
	}
	if r.loader == nil {
		r.loader = source.NewLoader()
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	for _, spec := range m.Catalogs {
		r.catalogs[spec.Name] = newCatalog(spec, r.prefs, r.logger, r.metrics)
		r.order = append(r.order, spec.Name)
	}
	return r
}

// Load populates every catalog in parallel. Load failures never fail the
// call: the fallback seed or an empty dataset is installed with a warning.
// A cancelled ctx abandons outstanding loads and leaves their catalogs as
// they were.
func (r *Registry) Load(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range r.order {
		c := r.catalogs[name]
		g.Go(func() error { return r.load(gctx, c) })
	}
	return g.Wait()
}

func (r *Registry) load(ctx context.Context, c *Catalog) error {
	if r.restoreData(ctx, c) {
		c.restoreView(ctx)
		return nil
	}
	spec := c.spec
	validate := func(data []byte) error {
		_, err := decode(spec.Kind, data)
		return err
	}
	res, err := r.loader.Load(ctx, spec, validate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.logger.Debug("load abandoned", zap.Error(ctxErr))
			return ctxErr
		}
		c.logger.Warn("catalog load failed", zap.String("location", spec.Location()), zap.Error(err))
		c.install(dataset{}, spec.Source, err.Error(), false)
		c.restoreView(ctx)
		return nil
	}
	ds, err := decode(spec.Kind, res.Data)
	if err != nil {
		c.logger.Warn("fallback document rejected", zap.Error(err))
		c.install(dataset{}, res.Origin, err.Error(), false)
		c.restoreView(ctx)
		return nil
	}
	if res.Fallback {
		c.logger.Warn("using fallback sample",
			zap.String("location", spec.Location()),
			zap.String("fallback", spec.Fallback),
			zap.Error(res.Cause))
	}
	c.install(ds, res.Origin, res.Warning, res.Fallback)
	c.restoreView(ctx)
	c.logger.Info("catalog loaded", zap.String("origin", string(res.Origin)), zap.Int("size", c.Info().Size))
	return nil
}

// restoreData installs a dataset persisted by a previous import.
func (r *Registry) restoreData(ctx context.Context, c *Catalog) bool {
	if r.prefs == nil {
		return false
	}
	raw, ok, err := r.prefs.Get(ctx, prefs.Key(c.spec.Prefix(), prefs.FieldData))
	if err != nil {
		c.logger.Warn("read stored dataset", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	ds, err := decode(c.spec.Kind, []byte(raw))
	if err != nil {
		c.logger.Warn("stored dataset unreadable, reloading source", zap.Error(err))
		return false
	}
	c.install(ds, OriginRestored, "", false)
	c.logger.Info("catalog restored from prefs", zap.Int("size", c.Info().Size))
	return true
}

// Get returns the named catalog.
func (r *Registry) Get(name string) (*Catalog, error) {
	c, ok := r.catalogs[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrCatalogNotFound)
	}
	return c, nil
}

// Names lists catalog names in manifest order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// List summarises every catalog in manifest order.
func (r *Registry) List() []Info {
	out := make([]Info, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.catalogs[name].Info())
	}
	return out
}

// Prefs returns the preference store, which may be nil.
func (r *Registry) Prefs() prefs.Store { return r.prefs }

// Reload rereads a file-backed catalog from disk. A document that fails to
// decode is rejected like an import and the current dataset stays.
func (r *Registry) Reload(ctx context.Context, name string) error {
	c, err := r.Get(name)
	if err != nil {
		return err
	}
	if c.spec.Source != source.OriginFile {
		return fmt.Errorf("reload %s: %w", name, ErrUnsupported)
	}
	spec := c.spec
	spec.Fallback = ""
	res, err := r.loader.Load(ctx, spec, nil)
	if err != nil {
		c.logger.Warn("reload failed", zap.Error(err))
		return err
	}
	ds, err := decode(spec.Kind, res.Data)
	if err != nil {
		c.logger.Warn("reload rejected", zap.Error(err))
		return err
	}
	c.install(ds, source.OriginFile, "", false)
	if r.prefs != nil {
		if err := r.prefs.Delete(ctx, prefs.Key(spec.Prefix(), prefs.FieldData)); err != nil {
			c.logger.Warn("clear stored dataset", zap.Error(err))
		}
	}
	c.logger.Info("catalog reloaded", zap.Int("size", c.Info().Size))
	return nil
}

// Watch reloads file-backed catalogs when their files change, until ctx is
// done or the returned stop function is called. It is a no-op without file
// catalogs.
func (r *Registry) Watch(ctx context.Context) (stop func(), err error) {
	byPath := make(map[string]string)
	var paths []string
	for _, name := range r.order {
		spec := r.catalogs[name].spec
		if spec.Source != source.OriginFile {
			continue
		}
		abs, err := filepath.Abs(spec.Path)
		if err != nil {
			return nil, err
		}
		byPath[abs] = name
		paths = append(paths, abs)
	}
	if len(paths) == 0 {
		return func() {}, nil
	}
	w, err := source.NewWatcher(paths, func(err error) {
		r.logger.Warn("watch error", zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case path, ok := <-w.Changes:
				if !ok {
					return
				}
				if err := r.Reload(ctx, byPath[path]); err != nil && !errors.Is(err, context.Canceled) {
					r.logger.Debug("reload skipped", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			w.Stop()
			wg.Wait()
		})
	}, nil
}
