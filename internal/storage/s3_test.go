package storage

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/justsurfingit/resume-builder/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        []byte
	contentType string
	modTime     time.Time
}

// fakeS3 answers the path-style requests the S3 store makes for a single
// bucket. Listings return pageSize keys per page.
type fakeS3 struct {
	bucket   string
	pageSize int

	mu      sync.Mutex
	objects map[string]fakeObject
	lists   int
}

func newFakeS3(t *testing.T) (*fakeS3, *httptest.Server) {
	f := &fakeS3{bucket: "resumes", pageSize: 2, objects: map[string]fakeObject{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	if bucket != f.bucket {
		f.fail(w, r, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case key == "" && r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		f.list(w, r)
	case key == "" && r.Method == http.MethodPost && r.URL.Query().Has("delete"):
		f.deleteMany(w, r)
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = fakeObject{body: body, contentType: r.Header.Get("Content-Type"), modTime: time.Now().UTC()}
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet || r.Method == http.MethodHead:
		obj, ok := f.objects[key]
		if !ok {
			f.fail(w, r, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.body)))
		w.Header().Set("Last-Modified", obj.modTime.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.body)
		}
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		f.fail(w, r, http.StatusNotImplemented, "NotImplemented")
	}
}

func (f *fakeS3) fail(w http.ResponseWriter, r *http.Request, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
	}
}

// list pages through keys in order. The continuation token is the last
// key of the previous page.
func (f *fakeS3) list(w http.ResponseWriter, r *http.Request) {
	f.lists++
	prefix := r.URL.Query().Get("prefix")
	after := r.URL.Query().Get("continuation-token")

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) && k > after {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	truncated := len(keys) > f.pageSize
	if truncated {
		keys = keys[:f.pageSize]
	}
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>%d</MaxKeys><IsTruncated>%t</IsTruncated>",
		f.bucket, prefix, len(keys), f.pageSize, truncated)
	if truncated {
		fmt.Fprintf(&b, "<NextContinuationToken>%s</NextContinuationToken>", keys[len(keys)-1])
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(f.objects[k].body))
	}
	b.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, b.String())
}

func (f *fakeS3) deleteMany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Objects []struct {
			Key string `xml:"Key"`
		} `xml:"Object"`
	}
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		f.fail(w, r, http.StatusBadRequest, "MalformedXML")
		return
	}
	for _, o := range req.Objects {
		delete(f.objects, o.Key)
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><DeleteResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"></DeleteResult>`)
}

func (f *fakeS3) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func setupS3(t *testing.T, bucket string) (*fakeS3, *S3) {
	t.Helper()

	fake, srv := newFakeS3(t)
	store, err := NewS3(context.Background(), config.S3Config{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		Bucket:    bucket,
		AccessKey: "test",
		SecretKey: "test-secret",
	})
	require.NoError(t, err)
	return fake, store
}

func TestS3(t *testing.T) {
	ctx := context.Background()
	var _ Store = (*S3)(nil)

	t.Run("should store and read back an object", func(t *testing.T) {
		_, store := setupS3(t, "resumes")

		// uploads arrive as a bytes.Buffer, which cannot seek
		body := bytes.NewBufferString("picture bytes")
		require.NoError(t, store.Put(ctx, "uploads/u1/a.jpg", body, int64(body.Len()), "image/jpeg"))

		info, err := store.Stat(ctx, "uploads/u1/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, int64(13), info.Size)
		assert.Equal(t, "image/jpeg", info.ContentType)
		assert.False(t, info.ModTime.IsZero())

		rc, info, err := store.Get(ctx, "uploads/u1/a.jpg")
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "picture bytes", string(got))
		assert.Equal(t, int64(13), info.Size)
	})

	t.Run("should report missing objects", func(t *testing.T) {
		_, store := setupS3(t, "resumes")

		_, err := store.Stat(ctx, "uploads/u1/missing.jpg")
		assert.ErrorIs(t, err, ErrNotExist)
		_, _, err = store.Get(ctx, "uploads/u1/missing.jpg")
		assert.ErrorIs(t, err, ErrNotExist)
		assert.ErrorIs(t, store.Delete(ctx, "uploads/u1/missing.jpg"), ErrNotExist)
	})

	t.Run("should delete an object", func(t *testing.T) {
		fake, store := setupS3(t, "resumes")
		require.NoError(t, store.Put(ctx, "uploads/u1/a.jpg", strings.NewReader("a"), 1, "image/jpeg"))

		require.NoError(t, store.Delete(ctx, "uploads/u1/a.jpg"))
		assert.Empty(t, fake.keys())
	})

	t.Run("should delete every object below a prefix across pages", func(t *testing.T) {
		fake, store := setupS3(t, "resumes")
		for i := range 5 {
			require.NoError(t, store.Put(ctx, fmt.Sprintf("uploads/u2/%d.jpg", i), strings.NewReader("x"), 1, "image/jpeg"))
		}
		require.NoError(t, store.Put(ctx, "uploads/u1/keep.jpg", strings.NewReader("x"), 1, "image/jpeg"))

		require.NoError(t, store.DeletePrefix(ctx, "uploads/u2/"))
		assert.Equal(t, []string{"uploads/u1/keep.jpg"}, fake.keys())
		fake.mu.Lock()
		assert.Equal(t, 3, fake.lists)
		fake.mu.Unlock()

		assert.ErrorIs(t, store.DeletePrefix(ctx, "/"), ErrInvalidKey)
	})

	t.Run("should check the bucket is reachable", func(t *testing.T) {
		_, store := setupS3(t, "resumes")
		assert.NoError(t, store.HealthCheck(ctx))

		_, missing := setupS3(t, "other")
		assert.Error(t, missing.HealthCheck(ctx))
	})
}
