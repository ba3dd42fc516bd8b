package catalogs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalogexplorer/internal/blob"
	"catalogexplorer/internal/catalog"
	"catalogexplorer/internal/observability"
	"catalogexplorer/internal/transfer"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

// ErrQueueFull is returned when the export queue cannot take another job.
var ErrQueueFull = errors.New("export queue full")

// ExportArtifact captures one stored rendering of a catalog.
type ExportArtifact struct {
	ID          string            `json:"id"`
	Key         string            `json:"key"`
	Format      transfer.Format   `json:"format"`
	Filename    string            `json:"filename"`
	ContentType string            `json:"content_type"`
	SizeBytes   int64             `json:"size_bytes"`
	URL         string            `json:"url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ExportRecord tracks an export request and resulting artifacts.
type ExportRecord struct {
	ID          string            `json:"id"`
	Catalog     string            `json:"catalog"`
	Formats     []transfer.Format `json:"formats"`
	Status      ExportStatus      `json:"status"`
	Error       string            `json:"error,omitempty"`
	Artifacts   []ExportArtifact  `json:"artifacts,omitempty"`
	RequestedBy string            `json:"requested_by,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// ExportInput represents an enqueue request for the worker.
type ExportInput struct {
	Catalog     string
	Formats     []transfer.Format
	RequestedBy string
	Reason      string
}

// ExportScheduler queues catalog exports and exposes status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

// Catalogs resolves catalogs by name.
type Catalogs interface {
	Get(name string) (*catalog.Catalog, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	Actor      string            `json:"actor"`
	Catalog    string            `json:"catalog"`
	Export     string            `json:"export"`
	Status     ExportStatus      `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

const auditAction = "catalog_export"

// Worker renders catalog exports asynchronously into a blob store.
type Worker struct {
	catalogs Catalogs
	store    blob.Store
	audit    AuditLogger
	metrics  *observability.Metrics
	logger   *zap.Logger

	queue chan exportTask
	mu    sync.RWMutex
	jobs  map[string]*ExportRecord

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
}

type exportTask struct {
	id string
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithAudit records lifecycle transitions to a.
func WithAudit(a AuditLogger) WorkerOption { return func(w *Worker) { w.audit = a } }

// WithWorkerMetrics counts finished artifacts into m.
func WithWorkerMetrics(m *observability.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(l *zap.Logger) WorkerOption { return func(w *Worker) { w.logger = l } }

// WithQueueSize overrides the default queue capacity of 32.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan exportTask, n)
		}
	}
}

// NewWorker constructs an export worker.
func NewWorker(c Catalogs, store blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		catalogs: c,
		store:    store,
		queue:    make(chan exportTask, 32),
		jobs:     make(map[string]*ExportRecord),
		ctx:      ctx,
		cancel:   cancel,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing export requests. Calling it again is a no-op.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.loop()
	})
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task := <-w.queue:
			w.process(task)
		}
	}
}

// EnqueueExport schedules an export job and returns the queued record.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.catalogs == nil {
		return ExportRecord{}, fmt.Errorf("export catalogs not configured")
	}
	name := strings.TrimSpace(input.Catalog)
	if name == "" {
		return ExportRecord{}, fmt.Errorf("catalog name required")
	}
	if _, err := w.catalogs.Get(name); err != nil {
		return ExportRecord{}, err
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []transfer.Format{transfer.FormatJSON}
	}
	uniqFormats := make([]transfer.Format, 0, len(formats))
	seen := make(map[transfer.Format]struct{})
	for _, format := range formats {
		if _, duplicate := seen[format]; duplicate {
			continue
		}
		if _, err := transfer.ParseFormat(string(format)); err != nil {
			return ExportRecord{}, err
		}
		uniqFormats = append(uniqFormats, format)
		seen[format] = struct{}{}
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	record := ExportRecord{
		ID:          id,
		Catalog:     name,
		Formats:     uniqFormats,
		Status:      ExportStatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queuedSnapshot := record.copy()
	w.mu.Unlock()

	w.record(ctx, id, ExportStatusQueued, input.Reason, nil)

	select {
	case w.queue <- exportTask{id: id}:
	default:
		w.fail(id, ErrQueueFull.Error())
		return ExportRecord{}, ErrQueueFull
	}
	return queuedSnapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// Open streams a stored artifact of a finished export.
func (w *Worker) Open(ctx context.Context, exportID, artifactID string) (ExportArtifact, []byte, error) {
	record, ok := w.GetExport(exportID)
	if !ok {
		return ExportArtifact{}, nil, fmt.Errorf("export %s: %w", exportID, blob.ErrNotFound)
	}
	for _, a := range record.Artifacts {
		if a.ID != artifactID {
			continue
		}
		_, rc, err := w.store.Get(ctx, a.Key)
		if err != nil {
			return ExportArtifact{}, nil, err
		}
		defer func() { _ = rc.Close() }()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return ExportArtifact{}, nil, err
		}
		return a, buf.Bytes(), nil
	}
	return ExportArtifact{}, nil, fmt.Errorf("artifact %s: %w", artifactID, blob.ErrNotFound)
}

func (w *Worker) process(task exportTask) {
	record, ok := w.GetExport(task.id)
	if !ok {
		return
	}
	c, err := w.catalogs.Get(record.Catalog)
	if err != nil {
		w.fail(task.id, err.Error())
		return
	}

	w.updateStatus(task.id, ExportStatusRunning)

	artifacts := make([]ExportArtifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.materialize(c, task.id, format)
		if err != nil {
			w.metrics.CountExport(string(format), string(ExportStatusFailed))
			w.fail(task.id, err.Error())
			return
		}
		w.metrics.CountExport(string(format), string(ExportStatusSucceeded))
		artifacts = append(artifacts, artifact)
	}
	w.complete(task.id, artifacts)
}

func (w *Worker) materialize(c *catalog.Catalog, exportID string, format transfer.Format) (ExportArtifact, error) {
	payload, err := c.Encode(format)
	if err != nil {
		return ExportArtifact{}, fmt.Errorf("render %s: %w", format, err)
	}
	if w.store == nil {
		return ExportArtifact{}, fmt.Errorf("export store not configured")
	}
	artifactID := uuid.NewString()
	filename := c.Filename(format)
	key := exportID + "/" + artifactID + "/" + filename
	info := c.Info()
	meta := map[string]string{
		"catalog": c.Name(),
		"origin":  string(info.Origin),
		"records": strconv.Itoa(info.Size),
	}
	stored, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata:    meta,
	})
	if err != nil {
		return ExportArtifact{}, fmt.Errorf("store artifact failed: %w", err)
	}
	artifact := ExportArtifact{
		ID:          artifactID,
		Key:         key,
		Format:      format,
		Filename:    filename,
		ContentType: format.ContentType(),
		SizeBytes:   stored.Size,
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(payload))
	}
	url, err := w.store.SignURL(w.ctx, key, blob.DefaultURLExpiry)
	switch {
	case err == nil:
		artifact.URL = url
	case errors.Is(err, blob.ErrUnsupported):
		artifact.URL = "/api/v1/exports/" + exportID + "/artifacts/" + artifactID
	default:
		w.logger.Warn("sign artifact url", zap.String("key", key), zap.Error(err))
	}
	return artifact, nil
}

func (w *Worker) updateStatus(id string, status ExportStatus) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = ""
		record.UpdatedAt = time.Now().UTC()
	}
	w.mu.Unlock()
	w.record(w.ctx, id, status, "", nil)
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, ExportStatusSucceeded, "", map[string]string{"artifacts": strconv.Itoa(len(artifacts))})
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", zap.String("export", id), zap.String("error", reason))
	w.record(w.ctx, id, ExportStatusFailed, "", map[string]string{"error": reason})
}

func (w *Worker) record(ctx context.Context, id string, status ExportStatus, reason string, meta map[string]string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var actor, name string
	if record, ok := w.jobs[id]; ok {
		actor, name = record.RequestedBy, record.Catalog
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		Action:     auditAction,
		Actor:      actor,
		Catalog:    name,
		Export:     id,
		Status:     status,
		Reason:     reason,
		Metadata:   meta,
		OccurredAt: time.Now().UTC(),
	})
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Formats = append([]transfer.Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = make([]ExportArtifact, len(r.Artifacts))
		for i, a := range r.Artifacts {
			a.Metadata = blob.CloneMetadata(a.Metadata)
			dup.Artifacts[i] = a
		}
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		dup.CompletedAt = &t
	}
	return dup
}

// ZapAuditLogger writes audit entries to a structured logger.
type ZapAuditLogger struct {
	Logger *zap.Logger
}

// Record logs entry at info level.
func (l ZapAuditLogger) Record(_ context.Context, entry AuditEntry) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("audit",
		zap.String("action", entry.Action),
		zap.String("actor", entry.Actor),
		zap.String("catalog", entry.Catalog),
		zap.String("export", entry.Export),
		zap.String("status", string(entry.Status)),
		zap.Any("metadata", entry.Metadata),
	)
}

// MemoryAuditLog captures audit entries in-memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
