package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"catalogexplorer/internal/index"
	"catalogexplorer/internal/prefs"
	"catalogexplorer/pkg/domain"
)

// ViewState is the browsing state of a catalog.
type ViewState struct {
	GroupKey string     `json:"group_key,omitempty"`
	Query    string     `json:"query"`
	Class    string     `json:"class,omitempty"`
	Selected any        `json:"selected,omitempty"`
	Mode     index.Mode `json:"mode,omitempty"`
	Picked   string     `json:"picked,omitempty"`
	Visible  int        `json:"visible"`
}

// ViewUpdate changes view fields. Nil fields are left as they are.
// Select carries the record (or module, matched by name and class) to select.
type ViewUpdate struct {
	GroupKey *string         `json:"group_key,omitempty"`
	Query    *string         `json:"query,omitempty"`
	Class    *string         `json:"class,omitempty"`
	Select   json.RawMessage `json:"select,omitempty"`
	Mode     *string         `json:"mode,omitempty"`
	Picked   *string         `json:"picked,omitempty"`
}

// View returns the current view state.
func (c *Catalog) View() ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewLocked()
}

func (c *Catalog) viewLocked() ViewState {
	switch c.spec.Kind {
	case domain.KindTable:
		v := ViewState{GroupKey: c.tableView.GroupKey(), Query: c.tableView.Query(), Class: c.tableView.Class()}
		if sel, ok := c.tableView.Selected(); ok {
			v.Selected = sel
		}
		v.Visible = len(c.records(v.Query, v.Class))
		return v
	case domain.KindModules:
		v := ViewState{GroupKey: "class", Query: c.moduleView.Query(), Class: c.moduleView.Class()}
		if sel, ok := c.moduleView.Selected(); ok {
			v.Selected = sel
		}
		v.Visible = len(c.modules(v.Query, v.Class))
		return v
	default:
		return ViewState{
			Query:   c.compatView.Query,
			Mode:    c.compatView.Mode,
			Picked:  c.compatView.Picked,
			Visible: len(c.compatView.Visible(c.compatIx)),
		}
	}
}

// UpdateView applies upd and persists the changed preferences.
func (c *Catalog) UpdateView(ctx context.Context, upd ViewUpdate) (ViewState, error) {
	c.mu.Lock()
	changed, err := c.applyLocked(upd)
	v := c.viewLocked()
	c.mu.Unlock()
	if err != nil {
		return ViewState{}, err
	}
	c.persistPrefs(ctx, changed)
	return v, nil
}

func (c *Catalog) applyLocked(upd ViewUpdate) (map[string]string, error) {
	changed := make(map[string]string)
	switch c.spec.Kind {
	case domain.KindTable:
		if len(upd.Select) > 0 {
			var rec domain.Record
			if err := json.Unmarshal(upd.Select, &rec); err != nil {
				return nil, fmt.Errorf("decode selection: %w", err)
			}
			if !c.tableView.Select(rec) {
				return nil, fmt.Errorf("selection: %w", ErrItemNotFound)
			}
		}
		if upd.GroupKey != nil {
			c.tableView.SetGroupKey(*upd.GroupKey)
			changed[prefs.FieldGroup] = *upd.GroupKey
		}
		if upd.Query != nil {
			c.tableView.SetQuery(*upd.Query)
			changed[prefs.FieldQuery] = *upd.Query
		}
		if upd.Class != nil {
			c.tableView.SetClass(*upd.Class)
			changed[prefs.FieldClass] = *upd.Class
		}
	case domain.KindModules:
		if len(upd.Select) > 0 {
			var m domain.Module
			if err := json.Unmarshal(upd.Select, &m); err != nil {
				return nil, fmt.Errorf("decode selection: %w", err)
			}
			if !c.moduleView.Select(m) {
				return nil, fmt.Errorf("module %s/%s: %w", m.Class, m.Module, ErrItemNotFound)
			}
		}
		if upd.Query != nil {
			c.moduleView.SetQuery(*upd.Query)
			changed[prefs.FieldQuery] = *upd.Query
		}
		if upd.Class != nil {
			c.moduleView.SetClass(*upd.Class)
			changed[prefs.FieldClass] = *upd.Class
		}
	case domain.KindCompat:
		next := *c.compatView
		if upd.Mode != nil {
			mode, ok := index.ParseMode(*upd.Mode)
			if !ok {
				return nil, fmt.Errorf("unknown mode %q", *upd.Mode)
			}
			next.SetMode(mode)
			changed[prefs.FieldMode] = string(mode)
		}
		if upd.Query != nil {
			next.Query = *upd.Query
			changed[prefs.FieldQuery] = *upd.Query
		}
		if upd.Picked != nil {
			if *upd.Picked == "" {
				next.Picked = ""
			} else if !next.Pick(c.compatIx, *upd.Picked) {
				return nil, fmt.Errorf("%s %s: %w", next.Mode, *upd.Picked, ErrItemNotFound)
			}
		}
		// A mode switch clears the pick, so the stored value follows it.
		if upd.Mode != nil || upd.Picked != nil {
			changed[prefs.FieldPicked] = next.Picked
		}
		*c.compatView = next
	}
	return changed, nil
}

func (c *Catalog) persistPrefs(ctx context.Context, changed map[string]string) {
	if c.prefs == nil {
		return
	}
	for field, value := range changed {
		if err := c.prefs.Put(ctx, prefs.Key(c.spec.Prefix(), field), value); err != nil {
			c.logger.Warn("persist preference", zap.String("field", field), zap.Error(err))
		}
	}
}

// restoreView reapplies persisted preferences. Unreadable values are skipped.
func (c *Catalog) restoreView(ctx context.Context) {
	if c.prefs == nil {
		return
	}
	var upd ViewUpdate
	get := func(field string) *string {
		v, ok, err := c.prefs.Get(ctx, prefs.Key(c.spec.Prefix(), field))
		if err != nil {
			c.logger.Warn("read preference", zap.String("field", field), zap.Error(err))
			return nil
		}
		if !ok {
			return nil
		}
		return &v
	}
	upd.Query = get(prefs.FieldQuery)
	switch c.spec.Kind {
	case domain.KindTable:
		upd.GroupKey = get(prefs.FieldGroup)
		upd.Class = get(prefs.FieldClass)
	case domain.KindModules:
		upd.Class = get(prefs.FieldClass)
	case domain.KindCompat:
		upd.Mode = get(prefs.FieldMode)
		upd.Picked = get(prefs.FieldPicked)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.applyLocked(upd); err != nil {
		// A stale pick no longer in the dataset is dropped.
		upd.Picked = nil
		if _, err := c.applyLocked(upd); err != nil {
			c.logger.Debug("discard stored view", zap.Error(err))
		}
	}
}
