package domain

import (
	"context"
	"io"
)

// MaxImageSize is the upload ceiling for every image bucket (5 MiB)
const MaxImageSize int64 = 5 * 1024 * 1024

// AllowedImageTypes is the declared-content-type allow-set for image uploads
var AllowedImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
	"image/gif",
}

// PaymentProofImageTypes is the narrower allow-list the payment-proofs bucket is provisioned with
var PaymentProofImageTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/webp",
}

// FileUpload describes a file handed to the storage service by a caller.
// ContentType and Size are the client-declared values.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
	// UploadedBy is the authenticated caller, recorded in object metadata when set.
	UploadedBy string
}

// UploadOptions controls a single object write
type UploadOptions struct {
	ContentType  string
	CacheControl string
	// Upsert allows overwriting an existing object at the same key.
	Upsert   bool
	Metadata map[string]string
}

// BucketOptions are applied when a bucket is provisioned
type BucketOptions struct {
	Public           bool
	AllowedMIMETypes []string
	FileSizeLimit    int64
}

// ObjectInfo is a single entry returned by a listing
type ObjectInfo struct {
	Name string
	Size int64
}

// ObjectStore is the bucket-scoped object storage port.
// Upload returns ErrObjectExists when Upsert is false and the key is taken.
type ObjectStore interface {
	Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, opts UploadOptions) error
	PublicURL(bucket, key string) (string, error)
	Remove(ctx context.Context, bucket string, keys ...string) error
	List(ctx context.Context, bucket, folder string, limit, offset int) ([]ObjectInfo, error)
	ListBuckets(ctx context.Context) ([]string, error)
	CreateBucket(ctx context.Context, name string, opts BucketOptions) error
}

// ImageStorage is the image storage use case consumed by HTTP handlers and binaries
type ImageStorage interface {
	UploadProductImage(ctx context.Context, file FileUpload, productID int64) (string, error)
	UploadCategoryImage(ctx context.Context, file FileUpload, categorySlug string) (string, error)
	UploadPaymentProof(ctx context.Context, file FileUpload, orderID string) (string, error)
	UploadUserAvatar(ctx context.Context, file FileUpload, userID string) (string, error)
	CreatePaymentProofsBucket(ctx context.Context) error
	DeleteImage(ctx context.Context, bucket, filePath string) error
	ImageURL(bucket, filePath string) (string, bool)
	ListImages(ctx context.Context, bucket, folder string) ([]string, error)
}
