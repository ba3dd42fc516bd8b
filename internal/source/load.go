package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// Result is a loaded document. Warning and Cause are set when the fallback
// seed stood in for the declared source.
type Result struct {
	Data     []byte
	Origin   Origin
	Fallback bool
	Warning  string
	Cause    error
}

// Validator rejects documents the caller cannot decode. A rejected document
// counts as a load failure.
type Validator func([]byte) error

// Loader reads catalog documents.
type Loader struct {
	Client  *http.Client
	MaxBody int64
}

// NewLoader returns a Loader with a bounded client.
func NewLoader() *Loader {
	return &Loader{Client: &http.Client{Timeout: 30 * time.Second}, MaxBody: 32 << 20}
}

// ErrTooLarge is returned when a fetched document exceeds Loader.MaxBody.
var ErrTooLarge = errors.New("document too large")

// HTTPError is a non-2xx fetch response.
type HTTPError struct{ Status int }

func (e *HTTPError) Error() string { return fmt.Sprintf("HTTP %d", e.Status) }

// FallbackWarning is the message shown when the fallback seed is in use.
func FallbackWarning(location string) string {
	return "Couldn't load " + location + ". Using a tiny built-in sample so the UI still works."
}

// Load reads spec's document. On failure the fallback seed, when declared,
// replaces it and the returned error is nil. If ctx is cancelled the fetch is
// abandoned and ctx.Err() is returned without consulting the fallback.
func (l *Loader) Load(ctx context.Context, spec Spec, validate Validator) (Result, error) {
	data, err := l.read(ctx, spec)
	if err == nil && validate != nil {
		err = validate(data)
	}
	if err == nil {
		return Result{Data: data, Origin: spec.Source}, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if spec.Fallback == "" {
		return Result{}, fmt.Errorf("load %s: %w", spec.Name, err)
	}
	fb, fbErr := Bundled(spec.Fallback)
	if fbErr != nil {
		return Result{}, errors.Join(fmt.Errorf("load %s: %w", spec.Name, err), fbErr)
	}
	return Result{
		Data:     fb,
		Origin:   OriginBundled,
		Fallback: true,
		Warning:  FallbackWarning(spec.Location()),
		Cause:    err,
	}, nil
}

func (l *Loader) read(ctx context.Context, spec Spec) ([]byte, error) {
	switch spec.Source {
	case OriginBundled:
		return Bundled(spec.Path)
	case OriginFile:
		return os.ReadFile(spec.Path)
	case OriginURL:
		return l.Fetch(ctx, spec.URL)
	default:
		return nil, fmt.Errorf("unknown source %q", spec.Source)
	}
}

// Fetch GETs url bypassing caches. Non-2xx answers yield *HTTPError.
func (l *Loader) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Accept", "application/json")
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode}
	}
	if l.MaxBody <= 0 {
		return io.ReadAll(resp.Body)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, l.MaxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.MaxBody {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, l.MaxBody)
	}
	return data, nil
}
