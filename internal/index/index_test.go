package index_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"catalogexplorer/internal/index"
	"catalogexplorer/pkg/domain"
)

func TestGroupModulesByClass(t *testing.T) {
	mods := []domain.Module{
		{Module: "UART", Class: "Communication"},
		{Module: "ADC", Class: "Analog"},
	}
	g := index.GroupModules(mods)
	if diff := cmp.Diff([]string{"Analog", "Communication"}, g.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	for _, k := range g.Keys {
		if len(g.Groups[k]) != 1 {
			t.Fatalf("group %s has %d members, want 1", k, len(g.Groups[k]))
		}
	}
	if diff := cmp.Diff(map[string]int{"Analog": 1, "Communication": 1}, g.Counts()); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupRecordsIsPartition(t *testing.T) {
	var records []domain.Record
	for i := 0; i < 25; i++ {
		r := domain.NewRecord("id", json.Number(fmt.Sprint(i)))
		switch i % 4 {
		case 0:
			r.Set("mcu", "RA6T2")
		case 1:
			r.Set("mcu", "RA2T1")
		case 2:
			r.Set("mcu", "")
		}
		records = append(records, r)
	}
	g := index.GroupRecords(records, "mcu")
	if g.Total() != len(records) {
		t.Fatalf("grouped %d records, want %d", g.Total(), len(records))
	}
	seen := make(map[string]int)
	for _, k := range g.Keys {
		prev := -1
		for _, r := range g.Groups[k] {
			id := r.Text("id")
			seen[id]++
			var n int
			fmt.Sscan(id, &n)
			if n <= prev {
				t.Fatalf("group %s lost input order at id %d", k, n)
			}
			prev = n
		}
	}
	if len(seen) != len(records) {
		t.Fatalf("expected %d distinct records, saw %d", len(records), len(seen))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("record %s appears %d times", id, n)
		}
	}
	if diff := cmp.Diff([]string{"RA2T1", "RA6T2", domain.UnknownKey}, g.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestGroupEmptyInput(t *testing.T) {
	g := index.GroupRecords(nil, "anything")
	if len(g.Keys) != 0 || g.Total() != 0 {
		t.Fatalf("expected empty grouping, got %+v", g)
	}
	if got := index.Columns(nil); len(got) != 0 {
		t.Fatalf("expected no columns, got %v", got)
	}
}

func compatFixture() domain.CompatRoot {
	return domain.CompatRoot{
		EvalKits: []domain.EvalKit{
			{Name: "ck_ra6m5", GithubPath: "https://example.test/ck_ra6m5/"},
			{Name: "ek_ra2a1", GithubPath: "https://example.test/ek_ra2a1/"},
		},
		UniqueProjects: []string{"freertos", "_quickstart", "adc"},
		Projects: []domain.ProjectBlock{
			{Project: "freertos", Mappings: []domain.Mapping{
				{EvalKitName: "ck_ra6m5", GithubPath: "https://example.test/ck_ra6m5/freertos/freertos_ck_ra6m5_ep"},
			}},
			{Project: "_quickstart", Mappings: []domain.Mapping{
				{EvalKitName: "ek_ra2a1", GithubPath: "https://example.test/ek_ra2a1/_quickstart/a"},
			}},
			{Project: "freertos", Mappings: []domain.Mapping{
				{EvalKitName: "ek_ra2a1", GithubPath: "https://example.test/ek_ra2a1/freertos/b"},
				{EvalKitName: "ck_ra6m5", GithubPath: "https://example.test/ck_ra6m5/freertos/c"},
			}},
			{Project: "orphan", Mappings: []domain.Mapping{
				{EvalKitName: "ek_ra8m1", GithubPath: "https://example.test/ek_ra8m1/orphan/d"},
			}},
		},
	}
}

func TestBuildCompatAggregatesBlocks(t *testing.T) {
	idx := index.BuildCompat(compatFixture())

	free := idx.Projects["freertos"]
	if free == nil {
		t.Fatalf("freertos missing")
	}
	if diff := cmp.Diff([]string{"ck_ra6m5", "ek_ra2a1"}, free.Kits); diff != "" {
		t.Fatalf("freertos kits (-want +got):\n%s", diff)
	}
	if n := len(free.LinksByKit["ck_ra6m5"]); n != 2 {
		t.Fatalf("expected 2 ck_ra6m5 links for freertos, got %d", n)
	}
	if p := idx.Projects["adc"]; p == nil || len(p.Kits) != 0 {
		t.Fatalf("seeded project without mappings should exist with no kits: %+v", p)
	}
	if _, ok := idx.Projects["orphan"]; !ok {
		t.Fatalf("project missing from canonical list must be created on demand")
	}
	kit := idx.Kits["ek_ra8m1"]
	if kit == nil || kit.KitRoot != "" {
		t.Fatalf("kit without eval_kits entry should exist without root: %+v", kit)
	}
	if got := idx.Kits["ck_ra6m5"].KitRoot; got != "https://example.test/ck_ra6m5/" {
		t.Fatalf("kit root = %q", got)
	}
}

func TestBuildCompatIsSymmetric(t *testing.T) {
	root := compatFixture()
	idx := index.BuildCompat(root)
	for pname, p := range idx.Projects {
		for kit, links := range p.LinksByKit {
			k, ok := idx.Kits[kit]
			if !ok {
				t.Fatalf("kit %s referenced by %s missing from kits index", kit, pname)
			}
			if diff := cmp.Diff(links, k.LinksByProject[pname]); diff != "" {
				t.Fatalf("links for %s/%s differ (-project +kit):\n%s", pname, kit, diff)
			}
		}
	}
	for kname, k := range idx.Kits {
		for proj := range k.LinksByProject {
			if _, ok := idx.Projects[proj].LinksByKit[kname]; !ok {
				t.Fatalf("project %s missing kit %s", proj, kname)
			}
		}
	}
	var projectSide, kitSide int
	for _, p := range idx.Projects {
		for _, links := range p.LinksByKit {
			projectSide += len(links)
		}
	}
	for _, k := range idx.Kits {
		for _, links := range k.LinksByProject {
			kitSide += len(links)
		}
	}
	if projectSide != root.Associations() || kitSide != root.Associations() {
		t.Fatalf("associations project=%d kit=%d want %d", projectSide, kitSide, root.Associations())
	}
}

func TestCompatNames(t *testing.T) {
	idx := index.BuildCompat(compatFixture())
	if diff := cmp.Diff([]string{"_quickstart", "adc", "freertos"}, idx.Names(index.ModeProjects)); diff != "" {
		t.Fatalf("project names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"ck_ra6m5", "ek_ra2a1", "ek_ra8m1"}, idx.Names(index.ModeKits)); diff != "" {
		t.Fatalf("kit names (-want +got):\n%s", diff)
	}
	if got := idx.Count(index.ModeProjects, "freertos"); got != 2 {
		t.Fatalf("freertos count = %d", got)
	}
	if got := idx.Count(index.ModeKits, "ek_ra2a1"); got != 2 {
		t.Fatalf("ek_ra2a1 count = %d", got)
	}

	root := compatFixture()
	root.UniqueProjects = nil
	idx = index.BuildCompat(root)
	if diff := cmp.Diff([]string{"_quickstart", "freertos", "orphan"}, idx.Names(index.ModeProjects)); diff != "" {
		t.Fatalf("fallback project names (-want +got):\n%s", diff)
	}
}

func TestBuildCompatEmptyDocument(t *testing.T) {
	idx := index.BuildCompat(domain.CompatRoot{})
	if len(idx.Projects) != 0 || len(idx.Kits) != 0 {
		t.Fatalf("expected empty indexes")
	}
	if names := idx.Names(index.ModeKits); len(names) != 0 {
		t.Fatalf("expected no names, got %v", names)
	}
}
