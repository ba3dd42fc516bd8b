package filter_test

import (
	"reflect"
	"testing"

	"catalogexplorer/internal/filter"
	"catalogexplorer/pkg/domain"
)

func seedModules() []domain.Module {
	return []domain.Module{
		{Module: "UART", Class: "Communication", Config: []domain.Param{
			{Name: "baud_rate", Type: "integer"},
			{Name: "parity", Type: "enum", Values: []any{"none", "even", "odd"}},
		}},
		{Module: "SPI", Class: "Communication", Config: []domain.Param{
			{Name: "clock_hz", Type: "integer"},
			{Name: "mode", Type: "enum", Values: []any{"MODE0", "MODE1", "MODE2", "MODE3"}},
		}},
		{Module: "ADC", Class: "Analog", Config: []domain.Param{
			{Name: "resolution", Type: "enum", Values: []any{"8", "10", "12"}},
		}},
	}
}

func TestTokenize(t *testing.T) {
	got := filter.Tokenize("  SPI \t Mode\n")
	want := []string{"spi", "mode"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	if toks := filter.Tokenize("   "); len(toks) != 0 {
		t.Fatalf("expected no tokens, got %v", toks)
	}
}

func TestApplyAllTokensMustMatch(t *testing.T) {
	mods := seedModules()
	got := filter.Apply(mods, "spi mode", domain.Module.Haystack)
	if len(got) != 1 || got[0].Module != "SPI" {
		t.Fatalf("expected only SPI, got %+v", got)
	}
	got = filter.Apply(mods, "uart mode", domain.Module.Haystack)
	if len(got) != 0 {
		t.Fatalf("expected no match for uart mode, got %+v", got)
	}
}

func TestApplyEmptyQueryReturnsInput(t *testing.T) {
	mods := seedModules()
	got := filter.Apply(mods, "  ", domain.Module.Haystack)
	if len(got) != len(mods) {
		t.Fatalf("expected %d modules, got %d", len(mods), len(got))
	}
	for i := range mods {
		if got[i].Module != mods[i].Module {
			t.Fatalf("order changed at %d: %s", i, got[i].Module)
		}
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	mods := seedModules()
	for _, q := range []string{"communication", "enum", "MODE", "integer baud", "zzz", ""} {
		once := filter.Apply(mods, q, domain.Module.Haystack)
		twice := filter.Apply(once, q, domain.Module.Haystack)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("query %q not idempotent: %v vs %v", q, once, twice)
		}
	}
}

func TestApplyMatchesValuesJoinedWithCommas(t *testing.T) {
	got := filter.Apply(seedModules(), "8,10", domain.Module.Haystack)
	if len(got) != 1 || got[0].Module != "ADC" {
		t.Fatalf("expected ADC, got %+v", got)
	}
}

func TestNamesCaseInsensitive(t *testing.T) {
	names := []string{"ck_ra6m5", "ek_ra2a1", "EK_RA8M1"}
	got := filter.Names(names, "EK_")
	want := []string{"ek_ra2a1", "EK_RA8M1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
}
