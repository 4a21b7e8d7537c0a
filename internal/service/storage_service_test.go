package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/libaas-store/storefront/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	gifHeader  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!\xf9\x04\x01\x00\x00\x00\x00,")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

type putCall struct {
	bucket string
	key    string
	body   []byte
	opts   domain.UploadOptions
}

// fakeObjectStore records every call; PublicURL mirrors the S3 layout
type fakeObjectStore struct {
	name      string
	puts      []putCall
	removed   []string
	lists     int
	buckets   []string
	created   []string
	createOpt domain.BucketOptions
	listItems []domain.ObjectInfo
	uploadErr error
	listErr   error
	removeErr error
	urlErr    error
}

func (f *fakeObjectStore) calls() int {
	return len(f.puts) + len(f.removed) + f.lists + len(f.created)
}

func (f *fakeObjectStore) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, opts domain.UploadOptions) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, _ := io.ReadAll(body)
	f.puts = append(f.puts, putCall{bucket: bucket, key: key, body: data, opts: opts})
	return nil
}

func (f *fakeObjectStore) PublicURL(bucket, key string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return "http://storage.test/" + bucket + "/" + key, nil
}

func (f *fakeObjectStore) Remove(ctx context.Context, bucket string, keys ...string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	for _, k := range keys {
		f.removed = append(f.removed, bucket+"/"+k)
	}
	return nil
}

func (f *fakeObjectStore) List(ctx context.Context, bucket, folder string, limit, offset int) ([]domain.ObjectInfo, error) {
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listItems, nil
}

func (f *fakeObjectStore) ListBuckets(ctx context.Context) ([]string, error) {
	return f.buckets, nil
}

func (f *fakeObjectStore) CreateBucket(ctx context.Context, name string, opts domain.BucketOptions) error {
	f.created = append(f.created, name)
	f.createOpt = opts
	f.buckets = append(f.buckets, name)
	return nil
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStorage(opts ...StorageOption) (*StorageService, *fakeObjectStore, *fakeObjectStore) {
	general := &fakeObjectStore{name: "general"}
	privileged := &fakeObjectStore{name: "privileged"}
	opts = append([]StorageOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewStorageService(DefaultStorageConfig(), general, privileged, zerolog.Nop(), opts...), general, privileged
}

func pngUpload(name string) domain.FileUpload {
	return domain.FileUpload{
		Name:        name,
		ContentType: "image/png",
		Size:        int64(len(pngHeader)),
		Content:     bytes.NewReader(pngHeader),
	}
}

func validationMessage(t *testing.T, err error) string {
	t.Helper()
	var vErr *domain.ValidationError
	require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
	return vErr.Message
}

func TestValidateFile(t *testing.T) {
	svc, _, _ := newTestStorage()

	tests := []struct {
		name        string
		contentType string
		size        int64
		wantErr     error
		wantMessage string
	}{
		{"jpeg", "image/jpeg", 10, nil, ""},
		{"jpg alias", "image/jpg", 10, nil, ""},
		{"gif", "image/gif", 10, nil, ""},
		{"exactly at limit", "image/webp", domain.MaxImageSize, nil, ""},
		{"one byte over", "image/png", domain.MaxImageSize + 1, domain.ErrFileTooLarge, "File too large. Maximum size: 5MB"},
		{"pdf", "application/pdf", 10, domain.ErrInvalidFileType,
			"Invalid file type. Allowed: image/jpeg, image/jpg, image/png, image/webp, image/gif"},
		{"type reported before size", "image/svg+xml", domain.MaxImageSize * 2, domain.ErrInvalidFileType,
			"Invalid file type. Allowed: image/jpeg, image/jpg, image/png, image/webp, image/gif"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateFile(domain.FileUpload{Name: "x", ContentType: tt.contentType, Size: tt.size})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMessage, validationMessage(t, err))
		})
	}
}

func TestGenerateSecureFilename(t *testing.T) {
	svc, _, _ := newTestStorage()

	first := svc.GenerateSecureFilename("a b@c.png", "product_7_")
	second := svc.GenerateSecureFilename("a b@c.png", "product_7_")

	assert.NotEqual(t, first, second)
	for _, name := range []string{first, second} {
		assert.True(t, strings.HasPrefix(name, "product_7_1714564800000_"), name)
		assert.True(t, strings.HasSuffix(name, "_a_b_c.png"), name)
		assert.NotContains(t, name, " ")
		assert.NotContains(t, name, "@")
	}
}

func TestGenerateSecureFilenameStripsTraversal(t *testing.T) {
	svc, _, _ := newTestStorage(WithTokenSource(func() string { return "tok" }))

	name := svc.GenerateSecureFilename("../../etc/passwd", "")
	assert.Equal(t, "1714564800000_tok_.._.._etc_passwd", name)
	assert.NotContains(t, name, "/")
}

func TestUploadProductImage(t *testing.T) {
	svc, general, privileged := newTestStorage(WithTokenSource(func() string { return "abc123" }))

	file := pngUpload("front view.png")
	file.UploadedBy = "staff-1"
	url, err := svc.UploadProductImage(context.Background(), file, 42)
	require.NoError(t, err)

	wantKey := "42/product_42_1714564800000_abc123_front_view.png"
	assert.Equal(t, "http://storage.test/product-images/"+wantKey, url)
	require.Len(t, general.puts, 1)
	assert.Zero(t, privileged.calls())

	put := general.puts[0]
	assert.Equal(t, "product-images", put.bucket)
	assert.Equal(t, wantKey, put.key)
	assert.Equal(t, pngHeader, put.body)
	assert.False(t, put.opts.Upsert)
	assert.Equal(t, "max-age=3600", put.opts.CacheControl)
	assert.Equal(t, "image/png", put.opts.ContentType)
	assert.Equal(t, map[string]string{
		"productId":    "42",
		"uploadedAt":   "2024-05-01T12:00:00Z",
		"originalName": "front%20view.png",
		"fileSize":     "33",
		"contentType":  "image/png",
		"uploadedBy":   "staff-1",
	}, put.opts.Metadata)
}

func TestUploadCategoryAndAvatar(t *testing.T) {
	svc, general, _ := newTestStorage(WithTokenSource(func() string { return "t" }))
	ctx := context.Background()

	_, err := svc.UploadCategoryImage(ctx, pngUpload("hero.png"), "summer-lawn")
	require.NoError(t, err)
	_, err = svc.UploadUserAvatar(ctx, pngUpload("me.png"), "uid_9")
	require.NoError(t, err)

	require.Len(t, general.puts, 2)
	assert.Equal(t, "category-images", general.puts[0].bucket)
	assert.Equal(t, "summer-lawn/category_summer-lawn_1714564800000_t_hero.png", general.puts[0].key)
	assert.Equal(t, "summer-lawn", general.puts[0].opts.Metadata["categorySlug"])
	assert.Equal(t, "user-avatars", general.puts[1].bucket)
	assert.Equal(t, "uid_9/avatar_uid_9_1714564800000_t_me.png", general.puts[1].key)
	assert.Equal(t, "uid_9", general.puts[1].opts.Metadata["userId"])
}

func TestUploadPaymentProofUsesPrivilegedStore(t *testing.T) {
	svc, general, privileged := newTestStorage()

	_, err := svc.UploadPaymentProof(context.Background(), pngUpload("receipt.png"), "ORD-1001")
	require.NoError(t, err)

	assert.Zero(t, general.calls())
	require.Len(t, privileged.puts, 1)
	assert.Equal(t, "payment-proofs", privileged.puts[0].bucket)
	assert.True(t, strings.HasPrefix(privileged.puts[0].key, "ORD-1001/payment_ORD-1001_"))
	assert.Equal(t, "ORD-1001", privileged.puts[0].opts.Metadata["orderId"])
}

func TestUploadPaymentProofRejectsGIF(t *testing.T) {
	svc, _, privileged := newTestStorage()

	_, err := svc.UploadPaymentProof(context.Background(), domain.FileUpload{
		Name: "r.gif", ContentType: "image/gif", Size: int64(len(gifHeader)), Content: bytes.NewReader(gifHeader),
	}, "ORD-1")

	assert.ErrorIs(t, err, domain.ErrInvalidFileType)
	assert.Equal(t, "Invalid file type. Allowed: image/jpeg, image/jpg, image/png, image/webp", validationMessage(t, err))
	assert.Zero(t, privileged.calls())
}

func TestUploadPaymentProofWithoutPrivilegedStore(t *testing.T) {
	general := &fakeObjectStore{}
	svc := NewStorageService(DefaultStorageConfig(), general, nil, zerolog.Nop())

	_, err := svc.UploadPaymentProof(context.Background(), pngUpload("r.png"), "ORD-1")
	assert.ErrorIs(t, err, domain.ErrPrivilegedRequired)
	assert.ErrorIs(t, svc.CreatePaymentProofsBucket(context.Background()), domain.ErrPrivilegedRequired)
	assert.Zero(t, general.calls())
}

func TestUploadRejectsBeforeStore(t *testing.T) {
	tests := []struct {
		name    string
		file    domain.FileUpload
		owner   string
		wantErr error
	}{
		{
			name:    "declared type outside allow-set",
			file:    domain.FileUpload{Name: "a.svg", ContentType: "image/svg+xml", Size: 10, Content: strings.NewReader("<svg/>")},
			owner:   "dresses",
			wantErr: domain.ErrInvalidFileType,
		},
		{
			name:    "declared size over limit",
			file:    domain.FileUpload{Name: "a.png", ContentType: "image/png", Size: domain.MaxImageSize + 1, Content: bytes.NewReader(pngHeader)},
			owner:   "dresses",
			wantErr: domain.ErrFileTooLarge,
		},
		{
			name:    "content is not an image",
			file:    domain.FileUpload{Name: "a.png", ContentType: "image/png", Size: 14, Content: strings.NewReader("#!/bin/sh\necho")},
			owner:   "dresses",
			wantErr: domain.ErrContentMismatch,
		},
		{
			name:    "owner with slash",
			file:    pngUpload("a.png"),
			owner:   "a/b",
			wantErr: domain.ErrInvalidOwner,
		},
		{
			name:    "owner dot dot",
			file:    pngUpload("a.png"),
			owner:   "..",
			wantErr: domain.ErrInvalidOwner,
		},
		{
			name:    "empty owner",
			file:    pngUpload("a.png"),
			owner:   "",
			wantErr: domain.ErrInvalidOwner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, general, _ := newTestStorage()

			_, err := svc.UploadCategoryImage(context.Background(), tt.file, tt.owner)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, general.calls())
		})
	}
}

func TestUploadProductImageRejectsNonPositiveID(t *testing.T) {
	svc, general, _ := newTestStorage()

	_, err := svc.UploadProductImage(context.Background(), pngUpload("a.png"), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)
	assert.Zero(t, general.calls())
}

func TestUploadCatchesUnderstatedSize(t *testing.T) {
	svc, general, _ := newTestStorage()
	content := append(append([]byte(nil), pngHeader...), make([]byte, domain.MaxImageSize)...)

	_, err := svc.UploadProductImage(context.Background(), domain.FileUpload{
		Name: "big.png", ContentType: "image/png", Size: 100, Content: bytes.NewReader(content),
	}, 1)

	assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	assert.Zero(t, general.calls())
}

func TestUploadExactlyAtLimit(t *testing.T) {
	svc, general, _ := newTestStorage()
	content := make([]byte, domain.MaxImageSize)
	copy(content, jpegHeader)

	_, err := svc.UploadProductImage(context.Background(), domain.FileUpload{
		Name: "big.jpg", ContentType: "image/jpg", Size: domain.MaxImageSize, Content: bytes.NewReader(content),
	}, 1)

	require.NoError(t, err)
	require.Len(t, general.puts, 1)
	assert.Len(t, general.puts[0].body, int(domain.MaxImageSize))
}

func TestUploadWithSniffingDisabled(t *testing.T) {
	cfg := DefaultStorageConfig()
	cfg.SniffContent = false
	general := &fakeObjectStore{}
	svc := NewStorageService(cfg, general, nil, zerolog.Nop())

	_, err := svc.UploadCategoryImage(context.Background(), domain.FileUpload{
		Name: "a.png", ContentType: "image/png", Size: 4, Content: strings.NewReader("text"),
	}, "kurta")
	require.NoError(t, err)
	assert.Len(t, general.puts, 1)
}

func TestUploadStoreFailures(t *testing.T) {
	t.Run("existing object", func(t *testing.T) {
		svc, general, _ := newTestStorage()
		general.uploadErr = domain.ErrObjectExists

		_, err := svc.UploadProductImage(context.Background(), pngUpload("a.png"), 1)
		assert.ErrorIs(t, err, domain.ErrObjectExists)
	})

	t.Run("store error is not leaked", func(t *testing.T) {
		svc, general, _ := newTestStorage()
		general.uploadErr = errors.New("AccessDenied: secret-bucket-policy")

		_, err := svc.UploadProductImage(context.Background(), pngUpload("a.png"), 1)
		assert.ErrorIs(t, err, domain.ErrUploadFailed)
		assert.NotContains(t, err.Error(), "secret")
	})
}

func TestCreatePaymentProofsBucket(t *testing.T) {
	svc, general, privileged := newTestStorage()
	ctx := context.Background()

	require.NoError(t, svc.CreatePaymentProofsBucket(ctx))
	assert.Equal(t, []string{"payment-proofs"}, privileged.created)
	assert.True(t, privileged.createOpt.Public)
	assert.Equal(t, []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}, privileged.createOpt.AllowedMIMETypes)
	assert.Equal(t, int64(5242880), privileged.createOpt.FileSizeLimit)

	// Second run sees the bucket and does nothing
	require.NoError(t, svc.CreatePaymentProofsBucket(ctx))
	assert.Len(t, privileged.created, 1)
	assert.Zero(t, general.calls())
}

func TestDeleteImage(t *testing.T) {
	svc, general, privileged := newTestStorage()
	ctx := context.Background()

	require.NoError(t, svc.DeleteImage(ctx, "product-images", "42/a.png"))
	assert.Equal(t, []string{"product-images/42/a.png"}, general.removed)

	require.NoError(t, svc.DeleteImage(ctx, "payment-proofs", "ORD-1/p.png"))
	assert.Equal(t, []string{"payment-proofs/ORD-1/p.png"}, privileged.removed)
}

func TestDeleteImageFailsClosed(t *testing.T) {
	svc, general, privileged := newTestStorage()
	ctx := context.Background()

	for _, bucket := range []string{"", "secrets", "PRODUCTS", "products", "product-images/"} {
		err := svc.DeleteImage(ctx, bucket, "42/a.png")
		assert.ErrorIs(t, err, domain.ErrInvalidBucket, bucket)
		assert.Equal(t, "Invalid bucket", validationMessage(t, err))
	}

	err := svc.DeleteImage(ctx, "product-images", "")
	assert.ErrorIs(t, err, domain.ErrInvalidFilePath)
	assert.Equal(t, "Invalid file path", validationMessage(t, err))

	assert.Zero(t, general.calls())
	assert.Zero(t, privileged.calls())
}

func TestDeleteImageStoreFailure(t *testing.T) {
	svc, general, _ := newTestStorage()
	general.removeErr = errors.New("timeout")

	assert.ErrorIs(t, svc.DeleteImage(context.Background(), "category-images", "x/y.png"), domain.ErrDeleteFailed)
}

func TestImageURL(t *testing.T) {
	svc, general, _ := newTestStorage()

	url, ok := svc.ImageURL("category-images", "dresses/a.png")
	assert.True(t, ok)
	assert.Equal(t, "http://storage.test/category-images/dresses/a.png", url)

	_, ok = svc.ImageURL("unknown", "dresses/a.png")
	assert.False(t, ok)

	url, ok = svc.ImageURL("category-images", "")
	assert.True(t, ok)
	assert.Equal(t, "http://storage.test/category-images/", url)

	general.urlErr = errors.New("bad key")
	_, ok = svc.ImageURL("category-images", "dresses/a.png")
	assert.False(t, ok)
}

func TestListImages(t *testing.T) {
	svc, general, _ := newTestStorage()
	ctx := context.Background()

	names, err := svc.ListImages(ctx, "product-images", "42")
	require.NoError(t, err)
	assert.NotNil(t, names)
	assert.Empty(t, names)

	general.listItems = []domain.ObjectInfo{{Name: "a.png"}, {Name: "b.png"}}
	names, err = svc.ListImages(ctx, "product-images", "42")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, names)

	_, err = svc.ListImages(ctx, "nope", "")
	assert.ErrorIs(t, err, domain.ErrInvalidBucket)
	assert.Equal(t, 2, general.lists)

	general.listErr = errors.New("boom")
	_, err = svc.ListImages(ctx, "product-images", "")
	assert.ErrorIs(t, err, domain.ErrListFailed)
}

func TestAlternateBucketSet(t *testing.T) {
	cfg := DefaultStorageConfig()
	cfg.Buckets = domain.BucketSet{Products: "p", Categories: "c", UserAvatars: "u", PaymentProofs: "pp"}
	general := &fakeObjectStore{}
	svc := NewStorageService(cfg, general, &fakeObjectStore{}, zerolog.Nop())

	_, err := svc.UploadProductImage(context.Background(), pngUpload("a.png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "p", general.puts[0].bucket)

	assert.ErrorIs(t, svc.DeleteImage(context.Background(), "product-images", "3/a.png"), domain.ErrInvalidBucket)
}
