package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewMockForTests returns a Store whose HTTP transport is an in-memory fake
// bucket. It understands the Head/Get/Put/Delete/ListObjectsV2 requests the
// store issues and nothing else.
func NewMockForTests() *Store {
	rt := &fakeBucket{objects: make(map[string]fakeObject)}
	cfg, _ := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	return newStore(cfg, "mock-bucket", func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String("https://mock.s3.local")
	})
}

type fakeObject struct {
	body        []byte
	contentType string
	modified    time.Time
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]fakeObject
}

func (b *fakeBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	// Path style: /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return b.list(req.URL.Query().Get("prefix")), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := b.objects[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Etag":           {`"` + fmt.Sprintf("%x", len(obj.body)) + `"`},
			"Last-Modified":  {obj.modified.Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, h, nil), nil
		}
		return respond(http.StatusOK, h, obj.body), nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if isChunked(req) {
			body = decodeChunked(body)
		}
		b.objects[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type"), modified: time.Now().UTC()}
		return respond(http.StatusOK, http.Header{"Etag": {`"put"`}}, nil), nil
	case http.MethodDelete:
		delete(b.objects, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (b *fakeBucket) list(prefix string) *http.Response {
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
	for _, k := range keys {
		fmt.Fprintf(&sb, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>%s</LastModified></Contents>",
			k, len(b.objects[k].body), b.objects[k].modified.Format(time.RFC3339))
	}
	sb.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(sb.String()))
}

func respond(status int, h http.Header, body []byte) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

func isChunked(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") ||
		req.Header.Get("X-Amz-Decoded-Content-Length") != ""
}

// decodeChunked strips aws-chunked framing: "<hex>[;ext]\r\n<data>\r\n" repeated
// until a zero-length chunk, followed by optional trailers.
func decodeChunked(raw []byte) []byte {
	var out []byte
	for {
		nl := bytes.Index(raw, []byte("\r\n"))
		if nl < 0 {
			return out
		}
		sizeField := string(raw[:nl])
		if i := strings.IndexByte(sizeField, ';'); i >= 0 {
			sizeField = sizeField[:i]
		}
		n, err := strconv.ParseInt(strings.TrimSpace(sizeField), 16, 64)
		if err != nil || n == 0 {
			return out
		}
		raw = raw[nl+2:]
		if int64(len(raw)) < n {
			return append(out, raw...)
		}
		out = append(out, raw[:n]...)
		raw = bytes.TrimPrefix(raw[n:], []byte("\r\n"))
	}
}
