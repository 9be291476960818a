package objectstore_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riders-api/riders"
	"github.com/riders-api/riders/objectstore"
)

const lastModified = "2024-01-02T03:04:05.000Z"

type storedObject struct {
	body        []byte
	contentType string
	acl         string
}

// fakeS3 answers the path-style subset of the S3 REST API used by objectstore.S3.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]storedObject
}

func newFakeS3(buckets ...string) *fakeS3 {
	f := &fakeS3{buckets: make(map[string]map[string]storedObject)}
	for _, b := range buckets {
		f.buckets[b] = make(map[string]storedObject)
	}
	return f
}

func (f *fakeS3) object(bucket, key string) (storedObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[bucket][key]
	return obj, ok
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")

	if bucket == "denied" {
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}

	if bucket == "" {
		f.listBuckets(w)
		return
	}

	objects, ok := f.buckets[bucket]
	if !ok {
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
		return
	}

	switch {
	case key == "" && r.Method == http.MethodGet:
		f.listObjects(w, bucket, objects, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		objects[key] = storedObject{
			body:        body,
			contentType: r.Header.Get("Content-Type"),
			acl:         r.Header.Get("x-amz-acl"),
		}
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		obj, ok := objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", obj.contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(obj.body)))
		w.Header().Set("ETag", `"etag-`+key+`"`)
		w.Header().Set("Last-Modified", "Tue, 02 Jan 2024 03:04:05 GMT")
		_, _ = w.Write(obj.body)
	case r.Method == http.MethodDelete:
		delete(objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) listBuckets(w http.ResponseWriter) {
	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListAllMyBucketsResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Owner><ID>owner</ID></Owner><Buckets>`)
	for _, name := range names {
		fmt.Fprintf(&b, "<Bucket><Name>%s</Name><CreationDate>%s</CreationDate></Bucket>", name, lastModified)
	}
	b.WriteString(`</Buckets></ListAllMyBucketsResult>`)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, b.String())
}

func (f *fakeS3) listObjects(w http.ResponseWriter, bucket string, objects map[string]storedObject, prefix string) {
	keys := make([]string, 0, len(objects))
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(&b, `<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`,
		bucket, prefix, len(keys))
	for _, key := range keys {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>&quot;etag-%s&quot;</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`,
			key, lastModified, key, len(objects[key].body))
	}
	b.WriteString(`</ListBucketResult>`)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, b.String())
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>req-1</RequestId></Error>`, code, code)
}

func newTestS3(t *testing.T, fake *fakeS3) *objectstore.S3 {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return newS3Client(srv.URL)
}

func newS3Client(endpoint string) *objectstore.S3 {
	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(endpoint),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("AKIDTEST", "secret", ""),
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	return objectstore.NewFromClient(client, nil)
}

func TestS3_ListBuckets(t *testing.T) {
	store := newTestS3(t, newFakeS3("media", "avatars"))

	buckets, err := store.ListBuckets(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	assert.Equal(t, "avatars", buckets[0].Name)
	assert.Equal(t, "media", buckets[1].Name)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), buckets[0].CreatedAt.UTC())
}

func TestS3_PutGetDelete(t *testing.T) {
	fake := newFakeS3("media")
	store := newTestS3(t, fake)
	ctx := context.Background()

	err := store.Put(ctx, riders.PutObject{
		Bucket:      "media",
		Key:         "docs/hello.txt",
		ContentType: "text/plain",
		Size:        5,
		ACL:         "public-read",
	}, bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	stored, ok := fake.object("media", "docs/hello.txt")
	require.True(t, ok)
	assert.Equal(t, "hello", string(stored.body))
	assert.Equal(t, "text/plain", stored.contentType)
	assert.Equal(t, "public-read", stored.acl)

	obj, err := store.Get(ctx, "media", "docs/hello.txt")
	require.NoError(t, err)
	defer func() { _ = obj.Body.Close() }()

	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, "text/plain", obj.Info.ContentType)
	assert.Equal(t, int64(5), obj.Info.Size)
	assert.Equal(t, `"etag-docs/hello.txt"`, obj.Info.ETag)

	require.NoError(t, store.Delete(ctx, "media", "docs/hello.txt"))
	_, ok = fake.object("media", "docs/hello.txt")
	assert.False(t, ok)
}

func TestS3_ListObjects(t *testing.T) {
	fake := newFakeS3("media")
	fake.buckets["media"]["2024/a.jpg"] = storedObject{body: []byte("aaa")}
	fake.buckets["media"]["2024/b.jpg"] = storedObject{body: []byte("bb")}
	fake.buckets["media"]["2025/c.jpg"] = storedObject{body: []byte("c")}
	store := newTestS3(t, fake)

	objects, err := store.ListObjects(context.Background(), riders.ListObjectsQuery{Bucket: "media", Prefix: "2024/"})
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "2024/a.jpg", objects[0].Key)
	assert.Equal(t, int64(3), objects[0].Size)
	assert.Equal(t, "media", objects[0].Bucket)
	assert.Equal(t, "2024/b.jpg", objects[1].Key)
}

func TestS3_ListObjects_Empty(t *testing.T) {
	store := newTestS3(t, newFakeS3("media"))

	objects, err := store.ListObjects(context.Background(), riders.ListObjectsQuery{Bucket: "media"})
	require.NoError(t, err)
	assert.NotNil(t, objects)
	assert.Empty(t, objects)
}

func TestS3_Errors(t *testing.T) {
	store := newTestS3(t, newFakeS3("media"))
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "media", "missing.txt")
		assert.ErrorIs(t, err, riders.ErrNotFound)
	})

	t.Run("missing bucket", func(t *testing.T) {
		_, err := store.ListObjects(ctx, riders.ListObjectsQuery{Bucket: "nope"})
		assert.ErrorIs(t, err, riders.ErrNotFound)
	})

	t.Run("access denied", func(t *testing.T) {
		_, err := store.Get(ctx, "denied", "a.txt")
		assert.ErrorIs(t, err, riders.ErrAuthentication)
	})
}

func TestS3_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	store := newS3Client(endpoint)

	_, err := store.ListBuckets(context.Background())
	assert.ErrorIs(t, err, riders.ErrConnectivity)
}

func TestS3_PresignGet(t *testing.T) {
	store, err := objectstore.New(context.Background(), objectstore.Config{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDTEST",
		SecretAccessKey: "secret",
		Endpoint:        "http://localhost:9000",
	})
	require.NoError(t, err)

	raw, err := store.PresignGet(context.Background(), "media", "docs/a.txt", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/media/docs/a.txt", u.Path)

	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("X-Amz-Credential"), "AKIDTEST/")
	assert.Contains(t, q.Get("X-Amz-Credential"), "/eu-west-1/s3/")
}
