package domain

import "strings"

// EvalKit is a hardware evaluation kit and the root of its example tree.
type EvalKit struct {
	Name       string `json:"eval_kit_name"`
	GithubPath string `json:"eval_kit_github_path"`
}

// Mapping associates one software project with one evaluation kit plus
// optional links into the example tree.
type Mapping struct {
	EvalKitName   string `json:"eval_kit_name"`
	GithubPath    string `json:"github_path"`
	ConfigXMLPath string `json:"config_xml_path,omitempty"`
	RAConfigPath  string `json:"ra_config_path,omitempty"`
	ReadmePath    string `json:"readme_path,omitempty"`
}

// ProjectBlock groups the mappings published for a project. Several blocks
// may share the same project name.
type ProjectBlock struct {
	Project  string    `json:"sw_project_name"`
	Mappings []Mapping `json:"eval_kit_to_sw_project_mapping"`
}

// CompatRoot is the compatibility catalog document.
type CompatRoot struct {
	EvalKits       []EvalKit      `json:"eval_kits"`
	UniqueProjects []string       `json:"unique_sw_projects"`
	Projects       []ProjectBlock `json:"sw_projects_to_eval_kit"`
}

// Associations returns the number of project/kit mappings in the document.
func (r CompatRoot) Associations() int {
	n := 0
	for _, blk := range r.Projects {
		n += len(blk.Mappings)
	}
	return n
}

// Link is the display form of a mapping.
type Link struct {
	Label  string `json:"label"`
	Github string `json:"github"`
	Config string `json:"config,omitempty"`
	RACfg  string `json:"ra_cfg,omitempty"`
	Readme string `json:"readme,omitempty"`
}

// LinkFor derives the display link of a mapping. The label is the last path
// segment of the example path, or "example" when that segment is empty.
func LinkFor(m Mapping) Link {
	label := m.GithubPath
	if i := strings.LastIndex(label, "/"); i >= 0 {
		label = label[i+1:]
	}
	if label == "" {
		label = "example"
	}
	return Link{
		Label:  label,
		Github: m.GithubPath,
		Config: m.ConfigXMLPath,
		RACfg:  m.RAConfigPath,
		Readme: m.ReadmePath,
	}
}
