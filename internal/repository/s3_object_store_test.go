package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/smithy-go"
	appConfig "github.com/libaas-store/storefront/internal/config"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is a path-style S3 endpoint that understands just enough of the API for these tests
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]http.Header
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case r.Method == http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		if _, exists := f.objects[path]; exists && r.Header.Get("If-None-Match") == "*" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusPreconditionFailed)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`)
			return
		}
		f.objects[path] = r.Header.Clone()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>%s</Name><Prefix>%s</Prefix><KeyCount>3</KeyCount><MaxKeys>100</MaxKeys><Delimiter>/</Delimiter><IsTruncated>false</IsTruncated>
<Contents><Key>42/</Key><Size>0</Size></Contents>
<Contents><Key>42/product_42_1_abc_a.png</Key><Size>10</Size></Contents>
<CommonPrefixes><Prefix>42/thumbs/</Prefix></CommonPrefixes>
</ListBucketResult>`, path, r.URL.Query().Get("prefix"))
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestStore(t *testing.T) (*S3ObjectStore, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]http.Header{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewS3ObjectStore(context.Background(), appConfig.S3Config{
		Endpoint:     server.URL,
		PublicURL:    "https://cdn.example.com/storage/",
		Region:       "us-east-1",
		UsePathStyle: true,
	}, S3Credentials{AccessKeyID: "key", SecretAccessKey: "secret"}, zerolog.Nop())
	require.NoError(t, err)
	return store, fake
}

func TestS3ObjectStoreUploadRefusesOverwrite(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	opts := domain.UploadOptions{
		ContentType:  "image/png",
		CacheControl: "max-age=3600",
		Metadata:     map[string]string{"productId": "42"},
	}
	require.NoError(t, store.Upload(ctx, "product-images", "42/a.png", strings.NewReader("png"), 3, opts))

	headers := fake.objects["product-images/42/a.png"]
	require.NotNil(t, headers)
	assert.Equal(t, "*", headers.Get("If-None-Match"))
	assert.Equal(t, "max-age=3600", headers.Get("Cache-Control"))
	assert.Equal(t, "42", headers.Get("X-Amz-Meta-Productid"))

	err := store.Upload(ctx, "product-images", "42/a.png", strings.NewReader("png"), 3, opts)
	assert.ErrorIs(t, err, domain.ErrObjectExists)

	opts.Upsert = true
	assert.NoError(t, store.Upload(ctx, "product-images", "42/a.png", strings.NewReader("png"), 3, opts))
}

func TestS3ObjectStoreList(t *testing.T) {
	store, _ := newTestStore(t)

	items, err := store.List(context.Background(), "product-images", "42", 100, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "thumbs", items[0].Name)
	assert.Equal(t, "product_42_1_abc_a.png", items[1].Name)
	assert.Equal(t, int64(10), items[1].Size)

	items, err = store.List(context.Background(), "product-images", "42", 100, 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestS3ObjectStoreRemove(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "user-avatars", "u1/a.png", strings.NewReader("x"), 1, domain.UploadOptions{}))
	require.NoError(t, store.Remove(ctx, "user-avatars", "u1/a.png"))
	assert.NotContains(t, fake.objects, "user-avatars/u1/a.png")
}

func TestS3ObjectStorePublicURL(t *testing.T) {
	store, _ := newTestStore(t)

	url, err := store.PublicURL("product-images", "42/product_42_1_abc_a b.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/storage/product-images/42/product_42_1_abc_a%20b.png", url)

	url, err = store.PublicURL("product-images", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/storage/product-images/", url)

	_, err = store.PublicURL("", "42/a.png")
	assert.Error(t, err)
}

func TestIsObjectExists(t *testing.T) {
	assert.True(t, isObjectExists(&smithy.GenericAPIError{Code: "PreconditionFailed"}))
	assert.True(t, isObjectExists(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "ConditionalRequestConflict"})))
	assert.False(t, isObjectExists(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isObjectExists(errors.New("network down")))
}

func TestBucketTags(t *testing.T) {
	tags := bucketTags(domain.BucketOptions{
		AllowedMIMETypes: []string{"image/jpeg", "image/png"},
		FileSizeLimit:    5242880,
	})
	require.Len(t, tags, 2)
	assert.Equal(t, "image/jpeg image/png", *tags[0].Value)
	assert.Equal(t, "5242880", *tags[1].Value)

	assert.Empty(t, bucketTags(domain.BucketOptions{}))
}

func TestPublicReadPolicy(t *testing.T) {
	policy, err := publicReadPolicy("payment-proofs")
	require.NoError(t, err)
	assert.Contains(t, policy, `"arn:aws:s3:::payment-proofs/*"`)
	assert.Contains(t, policy, `"s3:GetObject"`)
}
