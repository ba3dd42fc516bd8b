package catalogs_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"catalogexplorer/internal/adapters/catalogs"
	"catalogexplorer/internal/blob"
	"catalogexplorer/internal/catalog"
	"catalogexplorer/internal/observability"
	"catalogexplorer/internal/prefs"
	"catalogexplorer/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

// bundledManifest swaps the remote compat catalog for its bundled sample.
func bundledManifest() source.Manifest {
	m := source.DefaultManifest()
	m.Catalogs[2].Source = source.OriginBundled
	m.Catalogs[2].Path = source.SeedCompat
	m.Catalogs[2].URL = ""
	return m
}

type fixture struct {
	handler *catalogs.Handler
	worker  *catalogs.Worker
	reg     *catalog.Registry
	store   blob.Store
	audit   *catalogs.MemoryAuditLog
	metrics *observability.Metrics
}

func newFixture(t *testing.T, store blob.Store) *fixture {
	t.Helper()
	metrics := observability.NewMetrics()
	reg := catalog.New(bundledManifest(), catalog.WithPrefs(prefs.NewMemory()), catalog.WithMetrics(metrics))
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	audit := &catalogs.MemoryAuditLog{}
	worker := catalogs.NewWorker(reg, store, catalogs.WithAudit(audit), catalogs.WithWorkerMetrics(metrics))
	worker.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := worker.Stop(ctx); err != nil {
			t.Errorf("stop worker: %v", err)
		}
	})
	return &fixture{
		handler: catalogs.NewHandler(reg, worker, metrics, nil),
		worker:  worker,
		reg:     reg,
		store:   store,
		audit:   audit,
		metrics: metrics,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndList(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	if rec := f.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/catalogs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Catalogs []catalog.Info `json:"catalogs"`
	}
	decodeBody(t, rec, &payload)
	got := make([]string, 0, len(payload.Catalogs))
	for _, c := range payload.Catalogs {
		got = append(got, c.Name)
	}
	if diff := cmp.Diff([]string{"motor", "modules", "ra"}, got); diff != "" {
		t.Fatalf("catalogs mismatch (-want +got):\n%s", diff)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/catalogs/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown catalog, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/openapi.yaml", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/v1/exports:") {
		t.Fatalf("openapi: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, "/api/v1/catalogs", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDescribeAndRecords(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	rec := f.do(t, http.MethodGet, "/api/v1/catalogs/modules", "")
	var desc struct {
		Catalog catalog.Description `json:"catalog"`
	}
	decodeBody(t, rec, &desc)
	want := []string{"Analog", "Communication", "Compute/ML", "Networking", "Timing"}
	if diff := cmp.Diff(want, desc.Catalog.GroupKeys); diff != "" {
		t.Fatalf("group keys mismatch (-want +got):\n%s", diff)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/catalogs/modules/records?q=spi+mode", "")
	var recs struct {
		Records []map[string]any `json:"records"`
		Count   int              `json:"count"`
	}
	decodeBody(t, rec, &recs)
	if recs.Count != 1 || recs.Records[0]["module"] != "SPI" {
		t.Fatalf("unexpected search result %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/api/v1/catalogs/motor/records?class=RA6T3", "")
	decodeBody(t, rec, &recs)
	if recs.Count != 2 {
		t.Fatalf("expected two RA6T3 motors, got %d", recs.Count)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/catalogs/motor/groups?by=Sensor", "")
	var groups struct {
		Grouping struct {
			Key  string   `json:"key"`
			Keys []string `json:"keys"`
		} `json:"grouping"`
	}
	decodeBody(t, rec, &groups)
	if groups.Grouping.Key != "Sensor" || len(groups.Grouping.Keys) != 5 {
		t.Fatalf("unexpected grouping %+v", groups.Grouping)
	}

	if rec := f.do(t, http.MethodGet, "/api/v1/catalogs/ra/records", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for compat records, got %d", rec.Code)
	}
}

func TestImportRejectsAndAccepts(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	rec := f.do(t, http.MethodPost, "/api/v1/catalogs/modules/import", `{"module":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var e struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &e)
	if e.Error != "Invalid format: expected an array of modules" {
		t.Fatalf("unexpected error message %q", e.Error)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/catalogs/modules/import", `[{"module":"X"`)
	decodeBody(t, rec, &e)
	if rec.Code != http.StatusBadRequest || !strings.HasPrefix(e.Error, "Failed to parse JSON: ") {
		t.Fatalf("unexpected parse failure %d %q", rec.Code, e.Error)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/catalogs/modules/import", `[{"module":"CAN","class":"Communication","config":[]}]`)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: %d %s", rec.Code, rec.Body.String())
	}
	var info struct {
		Catalog catalog.Info `json:"catalog"`
	}
	decodeBody(t, rec, &info)
	if info.Catalog.Size != 1 || info.Catalog.Origin != catalog.OriginImported {
		t.Fatalf("unexpected info %+v", info.Catalog)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/prefs/mods:data", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "CAN") {
		t.Fatalf("imported dataset not persisted: %d %s", rec.Code, rec.Body.String())
	}
}

func TestExportDownload(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	rec := f.do(t, http.MethodGet, "/api/v1/catalogs/modules/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="modules.json"` {
		t.Fatalf("unexpected disposition %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("[\n  {\n    \"module\": \"UART\"")) {
		t.Fatalf("expected two-space indented export, got %.60q", rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, "/api/v1/catalogs/motor/export?format=csv", "")
	if rec.Header().Get("Content-Type") != "text/csv" || !strings.HasPrefix(rec.Body.String(), "Motor,MCU (MCB),") {
		t.Fatalf("unexpected csv export %q", rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/catalogs/motor/export?format=xml", ""); rec.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406, got %d", rec.Code)
	}
}

func TestCompatRoutes(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	rec := f.do(t, http.MethodGet, "/api/v1/catalogs/ra/compat/kits?q=ra6", "")
	var names struct {
		Names []catalog.NameCount `json:"names"`
	}
	decodeBody(t, rec, &names)
	if diff := cmp.Diff([]catalog.NameCount{{Name: "ck_ra6m5", Count: 1}}, names.Names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/catalogs/ra/compat/projects/freertos", "")
	var detail struct {
		Detail catalog.Detail `json:"detail"`
	}
	decodeBody(t, rec, &detail)
	if len(detail.Detail.Counterparts) != 1 || detail.Detail.Counterparts[0].Name != "ck_ra6m5" {
		t.Fatalf("unexpected detail %s", rec.Body.String())
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/catalogs/ra/compat/projects/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/catalogs/ra/compat/boards", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown mode, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/catalogs/modules/compat/kits", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for compat on modules, got %d", rec.Code)
	}
}

func TestViewRoundTrip(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	rec := f.do(t, http.MethodPut, "/api/v1/catalogs/modules/view", `{"query":"uart","class":"Communication"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put view: %d %s", rec.Code, rec.Body.String())
	}
	var v struct {
		View catalog.ViewState `json:"view"`
	}
	decodeBody(t, rec, &v)
	if v.View.Visible != 1 {
		t.Fatalf("expected one visible module, got %+v", v.View)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/prefs/mods:q", "")
	if !strings.Contains(rec.Body.String(), `"value":"uart"`) {
		t.Fatalf("query not persisted: %s", rec.Body.String())
	}
	if rec := f.do(t, http.MethodPut, "/api/v1/catalogs/ra/view", `{"mode":"boards"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad mode, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/api/v1/catalogs/ra/view", `{"picked":"nope"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown pick, got %d", rec.Code)
	}
}

func TestPrefsRoutes(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	if rec := f.do(t, http.MethodGet, "/api/v1/prefs/theme", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/api/v1/prefs/theme", `{"value":"dark"}`); rec.Code != http.StatusOK {
		t.Fatalf("put: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPut, "/api/v1/prefs/theme", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without value, got %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/v1/prefs?prefix=the", "")
	var keys struct {
		Keys []string `json:"keys"`
	}
	decodeBody(t, rec, &keys)
	if diff := cmp.Diff([]string{"theme"}, keys.Keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	f.do(t, http.MethodGet, "/api/v1/catalogs", "")
	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`explorer_http_requests_total{method="GET",route="/api/v1/catalogs",status="200"} 1`, "explorer_index_build_seconds"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func waitForExport(t *testing.T, f *fixture, id string) catalogs.ExportRecord {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		rec := f.do(t, http.MethodGet, "/api/v1/exports/"+id, "")
		var payload struct {
			Export catalogs.ExportRecord `json:"export"`
		}
		decodeBody(t, rec, &payload)
		switch payload.Export.Status {
		case catalogs.ExportStatusSucceeded, catalogs.ExportStatusFailed:
			return payload.Export
		}
		if time.Now().After(deadline) {
			t.Fatalf("export %s did not finish, status %s", id, payload.Export.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAsyncExportLifecycle(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	rec := f.do(t, http.MethodPost, "/api/v1/exports", `{"catalog":"modules","formats":["json","csv","yaml","json"],"requested_by":"tester"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("enqueue: %d %s", rec.Code, rec.Body.String())
	}
	var queued struct {
		Export catalogs.ExportRecord `json:"export"`
	}
	decodeBody(t, rec, &queued)
	if queued.Export.Status != catalogs.ExportStatusQueued || len(queued.Export.Formats) != 3 {
		t.Fatalf("unexpected queued record %+v", queued.Export)
	}

	done := waitForExport(t, f, queued.Export.ID)
	if done.Status != catalogs.ExportStatusSucceeded || len(done.Artifacts) != 3 {
		t.Fatalf("unexpected finished record %+v", done)
	}
	csv := done.Artifacts[1]
	if csv.Filename != "modules.csv" || csv.ContentType != "text/csv" || csv.Metadata["records"] != "9" {
		t.Fatalf("unexpected csv artifact %+v", csv)
	}
	if csv.URL != "/api/v1/exports/"+done.ID+"/artifacts/"+csv.ID {
		t.Fatalf("memory store should fall back to the download route, got %q", csv.URL)
	}
	dl := f.do(t, http.MethodGet, csv.URL, "")
	if dl.Code != http.StatusOK || !strings.HasPrefix(dl.Body.String(), "module,class,") {
		t.Fatalf("download: %d %.40q", dl.Code, dl.Body.String())
	}

	statuses := []catalogs.ExportStatus{}
	for _, e := range f.audit.Entries() {
		if e.Actor != "tester" || e.Catalog != "modules" {
			t.Fatalf("unexpected audit entry %+v", e)
		}
		statuses = append(statuses, e.Status)
	}
	want := []catalogs.ExportStatus{catalogs.ExportStatusQueued, catalogs.ExportStatusRunning, catalogs.ExportStatusSucceeded}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Fatalf("audit trail mismatch (-want +got):\n%s", diff)
	}
}

func TestAsyncExportToS3SignsURL(t *testing.T) {
	f := newFixture(t, blob.NewMockS3ForTests())
	rec := f.do(t, http.MethodPost, "/api/v1/exports", `{"catalog":"ra"}`)
	var queued struct {
		Export catalogs.ExportRecord `json:"export"`
	}
	decodeBody(t, rec, &queued)
	done := waitForExport(t, f, queued.Export.ID)
	if done.Status != catalogs.ExportStatusSucceeded || len(done.Artifacts) != 1 {
		t.Fatalf("unexpected record %+v", done)
	}
	a := done.Artifacts[0]
	if a.Format != "json" || !strings.Contains(a.URL, "X-Amz-Signature") {
		t.Fatalf("expected presigned url, got %+v", a)
	}
	infos, err := f.store.List(context.Background(), done.ID+"/")
	if err != nil || len(infos) != 1 || !strings.HasSuffix(infos[0].Key, "/ra.json") {
		t.Fatalf("unexpected stored objects %+v (%v)", infos, err)
	}
}

func TestExportRequestErrors(t *testing.T) {
	f := newFixture(t, blob.NewMemory())
	cases := []struct {
		body string
		code int
	}{
		{`{"catalog":"nope"}`, http.StatusNotFound},
		{`{"catalog":""}`, http.StatusBadRequest},
		{`{"catalog":"modules","formats":["png"]}`, http.StatusBadRequest},
		{`{bad`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		if rec := f.do(t, http.MethodPost, "/api/v1/exports", tc.body); rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.body, tc.code, rec.Code)
		}
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/exports/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/v1/exports/missing/artifacts/x", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 artifact, got %d", rec.Code)
	}
}

func TestHandlerWithoutExports(t *testing.T) {
	reg := catalog.New(bundledManifest())
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	h := catalogs.NewHandler(reg, nil, nil, nil)
	for _, path := range []string{"/api/v1/exports/x", "/api/v1/prefs/x", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, rec.Code)
		}
	}
}
