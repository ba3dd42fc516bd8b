package transfer

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"catalogexplorer/pkg/domain"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an export format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatYAML:
		return "application/yaml"
	default:
		return "application/json"
	}
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatYAML {
		return "yaml"
	}
	return string(f)
}

// EncodeJSON pretty-prints v with a two-space indent. HTML characters are
// written literally.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// EncodeYAML renders v as block-style YAML. The value goes through its JSON
// form first so record field order and JSON field names carry over.
func EncodeYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("decode yaml node: %w", err)
	}
	blockStyle(&node)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style &^= yaml.FlowStyle
	}
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// EncodeCSV writes a header row followed by rows.
func EncodeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TableRows flattens records into CSV rows over columns.
func TableRows(records []domain.Record, columns []string) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = r.Text(c)
		}
		rows = append(rows, row)
	}
	return rows
}

// ModuleHeader is the CSV header for module exports.
var ModuleHeader = []string{"module", "class", "name", "type", "unit", "range", "values", "default"}

// ModuleRows emits one CSV row per module parameter. Modules without
// parameters still produce a row so they are not lost.
func ModuleRows(mods []domain.Module) [][]string {
	var rows [][]string
	for _, m := range mods {
		if len(m.Config) == 0 {
			rows = append(rows, []string{m.Module, m.Class, "", "", "", "", "", ""})
			continue
		}
		for _, p := range m.Config {
			rows = append(rows, []string{
				m.Module, m.Class, p.Name, p.Type, p.Unit, p.Range(),
				domain.FormatValue(p.Values), formatDefault(p.Default),
			})
		}
	}
	return rows
}

// formatDefault renders a default the way the detail table shows it: as JSON.
func formatDefault(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return domain.FormatValue(v)
	}
	return string(b)
}

// CompatHeader is the CSV header for compatibility exports.
var CompatHeader = []string{"sw_project_name", "eval_kit_name", "github_path", "config_xml_path", "ra_config_path", "readme_path"}

// CompatRows emits one CSV row per association.
func CompatRows(root domain.CompatRoot) [][]string {
	rows := make([][]string, 0, root.Associations())
	for _, blk := range root.Projects {
		for _, m := range blk.Mappings {
			rows = append(rows, []string{blk.Project, m.EvalKitName, m.GithubPath, m.ConfigXMLPath, m.RAConfigPath, m.ReadmePath})
		}
	}
	return rows
}
