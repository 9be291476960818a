package e2e_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// s3Server is an in-memory, path-style S3 endpoint for the server under test.
type s3Server struct {
	URL string

	mu          sync.Mutex
	buckets     map[string]map[string]s3Object
	listBuckets atomic.Int32
}

type s3Object struct {
	body        []byte
	contentType string
}

func startS3(t *testing.T, buckets ...string) *s3Server {
	t.Helper()

	s := &s3Server{buckets: make(map[string]map[string]s3Object)}
	for _, b := range buckets {
		s.buckets[b] = make(map[string]s3Object)
	}

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	s.URL = srv.URL

	return s
}

func (s *s3Server) has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.buckets[bucket][key]
	return ok
}

func (s *s3Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")

	if bucket == "" {
		s.listBuckets.Add(1)
		names := make([]string, 0, len(s.buckets))
		for name := range s.buckets {
			names = append(names, name)
		}
		sort.Strings(names)

		var b strings.Builder
		b.WriteString(`<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Buckets>`)
		for _, name := range names {
			fmt.Fprintf(&b, "<Bucket><Name>%s</Name><CreationDate>2024-01-02T03:04:05.000Z</CreationDate></Bucket>", name)
		}
		b.WriteString(`</Buckets></ListAllMyBucketsResult>`)
		writeXML(w, http.StatusOK, b.String())
		return
	}

	objects, ok := s.buckets[bucket]
	if !ok {
		writeXML(w, http.StatusNotFound, `<Error><Code>NoSuchBucket</Code><Message>missing</Message></Error>`)
		return
	}

	switch {
	case key == "" && r.Method == http.MethodGet:
		keys := make([]string, 0, len(objects))
		for k := range objects {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var b strings.Builder
		fmt.Fprintf(&b, `<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>%s</Name><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>`, bucket, len(keys))
		for _, k := range keys {
			fmt.Fprintf(&b, `<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-02T03:04:05.000Z</LastModified></Contents>`, k, len(objects[k].body))
		}
		b.WriteString(`</ListBucketResult>`)
		writeXML(w, http.StatusOK, b.String())
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		objects[key] = s3Object{body: body, contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"e2e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		obj, ok := objects[key]
		if !ok {
			writeXML(w, http.StatusNotFound, `<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.body)))
		_, _ = w.Write(obj.body)
	case r.Method == http.MethodDelete:
		delete(objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+body)
}
