package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"catalogexplorer/internal/blob/core"
)

func TestMockedStoreFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected s3 driver")
	}
	info, err := store.Put(ctx, "exports/j1/ra.json", strings.NewReader(`{"eval_kits":[]}`), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/j1/ra.json" || info.ContentType != "application/json" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "exports/j1/ra.json", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "exports/j1/ra.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != `{"eval_kits":[]}` {
		t.Fatalf("body mismatch %q", body)
	}
	list, err := store.List(ctx, "exports/")
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
	url, err := store.SignURL(ctx, "exports/j1/ra.json", 0)
	if err != nil || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("sign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "exports/j1/ra.json"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "exports/j1/ra.json"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, err := store.Head(ctx, "exports/j1/ra.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}

func TestNewWithStaticCredentials(t *testing.T) {
	s, err := New(context.Background(), Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "k", SecretAccessKey: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.bucket != "b" {
		t.Fatalf("bucket not recorded")
	}
}

func TestDecodeChunked(t *testing.T) {
	raw := []byte("5;chunk-signature=abc\r\nhello\r\n3\r\n\r\nx\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n")
	if got := string(decodeChunked(raw)); got != "hello\r\nx" {
		t.Fatalf("decoded %q", got)
	}
}
