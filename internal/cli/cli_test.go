package cli_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"catalogexplorer/internal/cli"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("os/signal.signal_recv"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)
}

const testManifest = `
[[catalog]]
name = "motor"
kind = "table"
path = "motor_model.json"
group_by = "MCU (MCB)"

[[catalog]]
name = "modules"
kind = "modules"
path = "modules.json"
prefs_prefix = "mods"
export_name = "modules.json"

[[catalog]]
name = "ra"
kind = "compat"
path = "ra_sample.json"
`

type env struct {
	dir    string
	config string
}

// newEnv writes a bundled-only manifest and a config file pointing the
// preference store at a sqlite database inside a temp dir.
func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	manifest := filepath.Join(dir, "catalogs.toml")
	if err := os.WriteFile(manifest, []byte(testManifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cfg := filepath.Join(dir, "explorer.yaml")
	body := "manifest: " + manifest + "\n" +
		"prefs:\n  driver: sqlite\n  sqlite_path: " + filepath.Join(dir, "prefs.db") + "\n" +
		"blob:\n  driver: memory\n"
	if err := os.WriteFile(cfg, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env{dir: dir, config: cfg}
}

func (e env) run(ctx context.Context, t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := cli.NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (e env) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(context.Background(), t, "", args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func TestListShowsCatalogs(t *testing.T) {
	out := newEnv(t).mustRun(t, "list")
	for _, want := range []string{"motor", "modules", "ra", "bundled", "table", "compat"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}

func TestBrowseCommands(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{name: "group table", args: []string{"group", "motor"}, want: []string{"MCU (MCB)", "RA6T2", "Unknown"}},
		{name: "group modules", args: []string{"group", "modules"}, want: []string{"Networking", "SPI"}},
		{name: "search modules", args: []string{"search", "modules", "spi", "mode"}, want: []string{"SPI", "1 of 9 modules"}},
		{name: "search class", args: []string{"search", "modules", "--class", "Networking"}, want: []string{"3 of 9 modules"}},
		{name: "search table", args: []string{"search", "motor", "sensorless"}, want: []string{"MTR-ALPHA-02"}, not: []string{"MTR-ALPHA-01"}},
		{name: "compat projects", args: []string{"compat", "ra", "projects"}, want: []string{"freertos", "_quickstart"}},
		{name: "compat kit detail", args: []string{"compat", "ra", "kits", "ek_ra2a1"}, want: []string{"ek_ra2a1", "_quickstart"}, not: []string{"freertos"}},
		{name: "compat filter", args: []string{"compat", "ra", "kits", "--q", "ck"}, want: []string{"ck_ra6m5"}, not: []string{"ek_ra2a1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.mustRun(t, tt.args...)
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("missing %q:\n%s", w, out)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(out, n) {
					t.Errorf("unexpected %q:\n%s", n, out)
				}
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown catalog", args: []string{"search", "nope"}, want: "catalog not found"},
		{name: "bad mode", args: []string{"compat", "ra", "boards"}, want: "unknown compat mode"},
		{name: "unknown pick", args: []string{"compat", "ra", "kits", "missing"}, want: "item not found"},
		{name: "unsupported format", args: []string{"export", "motor", "-f", "pdf"}, want: "unsupported export format"},
		{name: "missing file", args: []string{"import", "motor", filepath.Join(e.dir, "absent.json")}, want: "reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(context.Background(), t, "", tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestImportPersistsAcrossRuns(t *testing.T) {
	e := newEnv(t)
	doc := `[{"Motor":"ONLY","MCU (MCB)":"RA8T1","Sensor":"Hall"}]`
	out, err := e.run(context.Background(), t, doc, "import", "motor", "-")
	if err != nil {
		t.Fatalf("import: %v\n%s", err, out)
	}
	if !strings.Contains(out, "imported 1 entries into motor") {
		t.Fatalf("unexpected import output %q", out)
	}

	out = e.mustRun(t, "search", "motor")
	if !strings.Contains(out, "ONLY") || !strings.Contains(out, "1 of 1 records") {
		t.Fatalf("imported dataset not restored:\n%s", out)
	}
	if out := e.mustRun(t, "list"); !strings.Contains(out, "prefs") {
		t.Fatalf("expected restored origin in list:\n%s", out)
	}
}

func TestImportRejectsBadDocument(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run(context.Background(), t, `{"not":"an array"}`, "import", "motor", "-"); err == nil {
		t.Fatalf("expected rejection")
	}
	if out := e.mustRun(t, "search", "motor"); !strings.Contains(out, "8 of 8 records") {
		t.Fatalf("rejected import must keep the bundled dataset:\n%s", out)
	}
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun(t, "export", "modules", "-f", "csv", "-o", "-")
	if !strings.HasPrefix(out, "module,class,name,type,unit,range,values,default\n") {
		t.Fatalf("unexpected csv export:\n%s", out)
	}

	target := filepath.Join(e.dir, "ra.yaml")
	out = e.mustRun(t, "export", "ra", "--format", "yaml", "--output", target)
	if !strings.Contains(out, "wrote "+target) {
		t.Fatalf("unexpected output %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "ck_ra6m5") {
		t.Fatalf("yaml export missing kit:\n%s", data)
	}
}

// cancelOnWrite cancels once the output contains marker.
type cancelOnWrite struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	marker string
	cancel context.CancelFunc
}

func (w *cancelOnWrite) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	if strings.Contains(w.buf.String(), w.marker) {
		w.cancel()
	}
	return n, err
}

func (w *cancelOnWrite) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestServeStopsWithContext(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := &cancelOnWrite{marker: "listening on", cancel: cancel}
	cmd := cli.NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", e.config, "serve", "--addr", "127.0.0.1:0", "--watch"})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("serve: %v\n%s", err, out)
	}
	if !strings.Contains(out.String(), "listening on 127.0.0.1:") {
		t.Fatalf("unexpected serve output %q", out)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("serve only stopped at the deadline")
	}
}

func TestServeWatchToleratesMissingDirectory(t *testing.T) {
	e := newEnv(t)
	manifest := filepath.Join(e.dir, "catalogs.toml")
	local := filepath.Join(e.dir, "missing", "local.json")
	doc := testManifest + "\n[[catalog]]\nname = \"local\"\nkind = \"modules\"\nsource = \"file\"\npath = \"" + filepath.ToSlash(local) + "\"\n"
	if err := os.WriteFile(manifest, []byte(doc), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out := &cancelOnWrite{marker: "listening on", cancel: cancel}
	cmd := cli.NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", e.config, "serve", "--addr", "127.0.0.1:0", "--watch"})
	if err := cmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("serve: %v\n%s", err, out)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Fatalf("serve hung with an unwatchable catalog")
	}
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	if _, err := e.run(context.Background(), t, "", "list", "--prefs-driver", "redis"); err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Fatalf("expected driver error, got %v", err)
	}
}
