package openapi

import (
	"bytes"
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestDocumentReturnsCopyAndMatchesFile(t *testing.T) {
	want, err := os.ReadFile("explorer.yaml")
	if err != nil {
		t.Fatalf("read explorer.yaml: %v", err)
	}
	doc := Document()
	if !bytes.Equal(doc, want) {
		t.Fatalf("Document does not match embedded contents")
	}
	doc[0] ^= 0xFF
	if !bytes.Equal(Document(), want) {
		t.Fatalf("Document mutation leaked into embedded content")
	}
}

func TestDocumentListsRoutes(t *testing.T) {
	var parsed struct {
		OpenAPI string                    `yaml:"openapi"`
		Paths   map[string]map[string]any `yaml:"paths"`
	}
	if err := yaml.Unmarshal(Document(), &parsed); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.OpenAPI == "" {
		t.Fatalf("missing openapi version")
	}
	routes := map[string][]string{
		"/api/v1/catalogs":                          {"get"},
		"/api/v1/catalogs/{name}/import":            {"post"},
		"/api/v1/catalogs/{name}/view":              {"get", "put"},
		"/api/v1/catalogs/{name}/compat/{mode}":     {"get"},
		"/api/v1/exports":                           {"post"},
		"/api/v1/exports/{id}/artifacts/{artifact}": {"get"},
		"/api/v1/prefs/{key}":                       {"get", "put"},
	}
	for path, methods := range routes {
		ops, ok := parsed.Paths[path]
		if !ok {
			t.Errorf("missing path %s", path)
			continue
		}
		for _, m := range methods {
			if _, ok := ops[m]; !ok {
				t.Errorf("%s missing %s", path, m)
			}
		}
	}
}
