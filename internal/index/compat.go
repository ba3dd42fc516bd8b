package index

import (
	"sort"

	"catalogexplorer/pkg/domain"
)

// Mode selects which side of the compatibility catalog is browsed.
type Mode string

const (
	ModeProjects Mode = "projects"
	ModeKits     Mode = "kits"
)

// ProjectNode lists the kits a software project runs on.
type ProjectNode struct {
	Name       string                      `json:"name"`
	Kits       []string                    `json:"kits"`
	LinksByKit map[string][]domain.Mapping `json:"links_by_kit"`
}

// KitNode lists the software projects available for an evaluation kit.
type KitNode struct {
	Name           string                      `json:"name"`
	Projects       []string                    `json:"projects"`
	LinksByProject map[string][]domain.Mapping `json:"links_by_project"`
	KitRoot        string                      `json:"kit_root,omitempty"`
}

// CompatIndex holds both directions of the project/kit association.
type CompatIndex struct {
	Projects map[string]*ProjectNode `json:"projects"`
	Kits     map[string]*KitNode     `json:"kits"`

	uniqueProjects []string
}

// BuildCompat indexes a compatibility document in both directions. The
// project side is seeded from the canonical project list; nodes for projects
// or kits that only appear inside associations are created on demand.
func BuildCompat(root domain.CompatRoot) CompatIndex {
	idx := CompatIndex{
		Projects:       make(map[string]*ProjectNode),
		Kits:           make(map[string]*KitNode),
		uniqueProjects: append([]string(nil), root.UniqueProjects...),
	}
	for _, name := range root.UniqueProjects {
		idx.Projects[name] = newProjectNode(name)
	}

	kitRoots := make(map[string]string, len(root.EvalKits))
	for _, k := range root.EvalKits {
		kitRoots[k.Name] = k.GithubPath
	}

	for _, blk := range root.Projects {
		proj, ok := idx.Projects[blk.Project]
		if !ok {
			proj = newProjectNode(blk.Project)
			idx.Projects[blk.Project] = proj
		}
		for _, m := range blk.Mappings {
			proj.LinksByKit[m.EvalKitName] = append(proj.LinksByKit[m.EvalKitName], m)

			kit, ok := idx.Kits[m.EvalKitName]
			if !ok {
				kit = &KitNode{Name: m.EvalKitName, LinksByProject: make(map[string][]domain.Mapping)}
				idx.Kits[m.EvalKitName] = kit
			}
			kit.LinksByProject[blk.Project] = append(kit.LinksByProject[blk.Project], m)
		}
	}

	for _, p := range idx.Projects {
		p.Kits = sortedKeys(p.LinksByKit)
	}
	for _, k := range idx.Kits {
		k.Projects = sortedKeys(k.LinksByProject)
		k.KitRoot = kitRoots[k.Name]
	}
	return idx
}

func newProjectNode(name string) *ProjectNode {
	return &ProjectNode{Name: name, Kits: []string{}, LinksByKit: make(map[string][]domain.Mapping)}
}

func sortedKeys(m map[string][]domain.Mapping) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Names returns the sorted names for a browsing mode. Projects use the
// canonical project list when it is non-empty and fall back to the index keys.
func (idx CompatIndex) Names(mode Mode) []string {
	var out []string
	switch mode {
	case ModeKits:
		out = make([]string, 0, len(idx.Kits))
		for k := range idx.Kits {
			out = append(out, k)
		}
	default:
		if len(idx.uniqueProjects) > 0 {
			out = append([]string(nil), idx.uniqueProjects...)
		} else {
			out = make([]string, 0, len(idx.Projects))
			for k := range idx.Projects {
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Count returns the number of counterpart entries for a name: kits for a
// project, projects for a kit. Unknown names count zero.
func (idx CompatIndex) Count(mode Mode, name string) int {
	if mode == ModeKits {
		if k, ok := idx.Kits[name]; ok {
			return len(k.Projects)
		}
		return 0
	}
	if p, ok := idx.Projects[name]; ok {
		return len(p.Kits)
	}
	return 0
}

// ParseMode validates a browsing mode, defaulting to projects.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeProjects:
		return ModeProjects, true
	case ModeKits:
		return ModeKits, true
	}
	return "", false
}
