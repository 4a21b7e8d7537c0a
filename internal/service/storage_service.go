package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/libaas-store/storefront/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	listImagesLimit     = 100
	sniffLength         = 3072
	defaultCacheControl = "max-age=3600"
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
	ownerKeyPattern     = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// StorageConfig configures the storage service. It is copied on construction.
type StorageConfig struct {
	Buckets      domain.BucketSet
	AllowedTypes []string
	MaxSize      int64
	CacheControl string
	// SniffContent checks the leading bytes of every upload against the allow-set.
	SniffContent bool
}

// DefaultStorageConfig returns the storefront's upload rules with the default bucket names
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Buckets:      domain.DefaultBucketSet(),
		AllowedTypes: append([]string(nil), domain.AllowedImageTypes...),
		MaxSize:      domain.MaxImageSize,
		CacheControl: defaultCacheControl,
		SniffContent: true,
	}
}

// StorageOption customises a StorageService
type StorageOption func(*StorageService)

// WithClock replaces time.Now for filename timestamps and upload metadata
func WithClock(now func() time.Time) StorageOption {
	return func(s *StorageService) { s.now = now }
}

// WithTokenSource replaces the random filename token generator
func WithTokenSource(token func() string) StorageOption {
	return func(s *StorageService) { s.token = token }
}

// WithStorageMetrics records upload counters on m
func WithStorageMetrics(m *telemetry.Metrics) StorageOption {
	return func(s *StorageService) { s.metrics = m }
}

// StorageService implements domain.ImageStorage.
// Payment proofs and bucket provisioning go through the privileged store; everything else through store.
type StorageService struct {
	cfg        StorageConfig
	store      domain.ObjectStore
	privileged domain.ObjectStore
	now        func() time.Time
	token      func() string
	metrics    *telemetry.Metrics
	log        zerolog.Logger
}

// NewStorageService creates a new storage service. privileged may be nil, in which case
// payment-proof operations fail with domain.ErrPrivilegedRequired.
func NewStorageService(cfg StorageConfig, store, privileged domain.ObjectStore, log zerolog.Logger, opts ...StorageOption) *StorageService {
	cfg.AllowedTypes = append([]string(nil), cfg.AllowedTypes...)
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = append([]string(nil), domain.AllowedImageTypes...)
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = domain.MaxImageSize
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = defaultCacheControl
	}

	s := &StorageService{
		cfg:        cfg,
		store:      store,
		privileged: privileged,
		now:        time.Now,
		token:      randomToken,
		log:        log.With().Str("component", "storage").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateFile checks the declared content type and size of file.
// Only the first failing rule is reported.
func (s *StorageService) ValidateFile(file domain.FileUpload) error {
	return s.validateDeclared(file, s.cfg.AllowedTypes)
}

func (s *StorageService) validateDeclared(file domain.FileUpload, allowed []string) error {
	if !containsType(allowed, file.ContentType) {
		return domain.NewValidationError(domain.ErrInvalidFileType,
			"Invalid file type. Allowed: "+strings.Join(allowed, ", "))
	}
	if file.Size > s.cfg.MaxSize {
		return s.tooLarge()
	}
	return nil
}

func (s *StorageService) tooLarge() error {
	return domain.NewValidationError(domain.ErrFileTooLarge,
		fmt.Sprintf("File too large. Maximum size: %dMB", s.cfg.MaxSize/(1024*1024)))
}

// GenerateSecureFilename returns {prefix}{unixMillis}_{token}_{sanitizedName}.
// Every character outside [A-Za-z0-9.-] in originalName becomes an underscore.
func (s *StorageService) GenerateSecureFilename(originalName, prefix string) string {
	return fmt.Sprintf("%s%d_%s_%s", prefix, s.now().UnixMilli(), s.token(), sanitizeFilename(originalName))
}

// UploadProductImage stores file under {productID}/ in the products bucket
func (s *StorageService) UploadProductImage(ctx context.Context, file domain.FileUpload, productID int64) (string, error) {
	if productID <= 0 {
		return "", domain.NewValidationError(domain.ErrInvalidOwner, "Invalid owner identifier")
	}
	id := strconv.FormatInt(productID, 10)
	return s.upload(ctx, uploadTarget{
		kind:     domain.BucketProducts,
		store:    s.store,
		allowed:  s.cfg.AllowedTypes,
		ownerKey: id,
		prefix:   "product_" + id + "_",
		metaKey:  "productId",
	}, file)
}

// UploadCategoryImage stores file under {categorySlug}/ in the categories bucket
func (s *StorageService) UploadCategoryImage(ctx context.Context, file domain.FileUpload, categorySlug string) (string, error) {
	return s.upload(ctx, uploadTarget{
		kind:     domain.BucketCategories,
		store:    s.store,
		allowed:  s.cfg.AllowedTypes,
		ownerKey: categorySlug,
		prefix:   "category_" + categorySlug + "_",
		metaKey:  "categorySlug",
	}, file)
}

// UploadPaymentProof stores file under {orderID}/ in the payment-proofs bucket using the privileged store.
// The bucket does not accept GIFs.
func (s *StorageService) UploadPaymentProof(ctx context.Context, file domain.FileUpload, orderID string) (string, error) {
	if s.privileged == nil {
		return "", domain.ErrPrivilegedRequired
	}
	return s.upload(ctx, uploadTarget{
		kind:     domain.BucketPaymentProofs,
		store:    s.privileged,
		allowed:  s.paymentProofTypes(),
		ownerKey: orderID,
		prefix:   "payment_" + orderID + "_",
		metaKey:  "orderId",
	}, file)
}

// UploadUserAvatar stores file under {userID}/ in the user-avatars bucket
func (s *StorageService) UploadUserAvatar(ctx context.Context, file domain.FileUpload, userID string) (string, error) {
	return s.upload(ctx, uploadTarget{
		kind:     domain.BucketUserAvatars,
		store:    s.store,
		allowed:  s.cfg.AllowedTypes,
		ownerKey: userID,
		prefix:   "avatar_" + userID + "_",
		metaKey:  "userId",
	}, file)
}

// CreatePaymentProofsBucket provisions the payment-proofs bucket if it does not exist yet
func (s *StorageService) CreatePaymentProofsBucket(ctx context.Context) error {
	if s.privileged == nil {
		return domain.ErrPrivilegedRequired
	}
	name := s.cfg.Buckets.PaymentProofs

	buckets, err := s.privileged.ListBuckets(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("error listing buckets")
		return domain.ErrProvisionFailed
	}
	for _, b := range buckets {
		if b == name {
			s.log.Info().Str("bucket", name).Msg("payment proofs bucket already exists")
			return nil
		}
	}

	err = s.privileged.CreateBucket(ctx, name, domain.BucketOptions{
		Public:           true,
		AllowedMIMETypes: append([]string(nil), domain.PaymentProofImageTypes...),
		FileSizeLimit:    domain.MaxImageSize,
	})
	if err != nil {
		s.log.Error().Err(err).Str("bucket", name).Msg("error creating payment proofs bucket")
		return domain.ErrProvisionFailed
	}

	s.log.Info().Str("bucket", name).Msg("payment proofs bucket created")
	return nil
}

// DeleteImage removes filePath from a known bucket
func (s *StorageService) DeleteImage(ctx context.Context, bucket, filePath string) error {
	kind, ok := s.cfg.Buckets.Lookup(bucket)
	if !ok {
		return domain.NewValidationError(domain.ErrInvalidBucket, "Invalid bucket")
	}
	if strings.TrimSpace(filePath) == "" {
		return domain.NewValidationError(domain.ErrInvalidFilePath, "Invalid file path")
	}

	store, err := s.storeFor(kind)
	if err != nil {
		return err
	}
	if err := store.Remove(ctx, bucket, filePath); err != nil {
		s.log.Error().Err(err).Str("bucket", bucket).Str("path", filePath).Msg("storage delete error")
		return domain.ErrDeleteFailed
	}

	s.log.Info().Str("bucket", bucket).Str("path", filePath).Msg("image deleted")
	return nil
}

// ImageURL returns the public URL of filePath, or false when bucket is unknown or the URL cannot be built.
// An empty filePath yields the bucket's base URL.
func (s *StorageService) ImageURL(bucket, filePath string) (string, bool) {
	kind, ok := s.cfg.Buckets.Lookup(bucket)
	if !ok {
		return "", false
	}
	store, err := s.storeFor(kind)
	if err != nil {
		return "", false
	}

	u, err := store.PublicURL(bucket, filePath)
	if err != nil {
		s.log.Warn().Err(err).Str("bucket", bucket).Msg("error getting image URL")
		return "", false
	}
	return u, true
}

// ListImages returns up to 100 entry names directly under folder
func (s *StorageService) ListImages(ctx context.Context, bucket, folder string) ([]string, error) {
	kind, ok := s.cfg.Buckets.Lookup(bucket)
	if !ok {
		return nil, domain.NewValidationError(domain.ErrInvalidBucket, "Invalid bucket")
	}
	store, err := s.storeFor(kind)
	if err != nil {
		return nil, err
	}

	items, err := store.List(ctx, bucket, folder, listImagesLimit, 0)
	if err != nil {
		s.log.Error().Err(err).Str("bucket", bucket).Str("folder", folder).Msg("storage list error")
		return nil, domain.ErrListFailed
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names, nil
}

type uploadTarget struct {
	kind     domain.BucketKind
	store    domain.ObjectStore
	allowed  []string
	ownerKey string
	prefix   string
	metaKey  string
}

func (s *StorageService) upload(ctx context.Context, t uploadTarget, file domain.FileUpload) (string, error) {
	bucket := s.cfg.Buckets.Name(t.kind)
	log := s.log.With().Str("bucket", bucket).Str("owner", t.ownerKey).Logger()

	data, err := s.prepare(t, file)
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			s.metrics.RecordUpload(ctx, bucket, "rejected", 0)
			return "", err
		}
		s.metrics.RecordUpload(ctx, bucket, "error", 0)
		log.Error().Err(err).Msg("failed to read upload")
		return "", domain.ErrUploadFailed
	}

	uploadedAt := s.now().UTC()
	filename := s.GenerateSecureFilename(file.Name, t.prefix)
	key := t.ownerKey + "/" + filename

	metadata := map[string]string{
		t.metaKey:      t.ownerKey,
		"uploadedAt":   uploadedAt.Format(time.RFC3339),
		"originalName": url.PathEscape(file.Name),
		"fileSize":     strconv.Itoa(len(data)),
		"contentType":  file.ContentType,
	}
	if file.UploadedBy != "" {
		metadata["uploadedBy"] = file.UploadedBy
	}

	err = t.store.Upload(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), domain.UploadOptions{
		ContentType:  file.ContentType,
		CacheControl: s.cfg.CacheControl,
		Upsert:       false,
		Metadata:     metadata,
	})
	if err != nil {
		if errors.Is(err, domain.ErrObjectExists) {
			s.metrics.RecordUpload(ctx, bucket, "conflict", 0)
			log.Warn().Str("path", key).Msg("refusing to overwrite existing object")
			return "", domain.ErrObjectExists
		}
		s.metrics.RecordUpload(ctx, bucket, "error", 0)
		log.Error().Err(err).Str("path", key).Msg("storage upload error")
		return "", domain.ErrUploadFailed
	}

	publicURL, err := t.store.PublicURL(bucket, key)
	if err != nil {
		s.metrics.RecordUpload(ctx, bucket, "error", 0)
		log.Error().Err(err).Str("path", key).Msg("failed to build public URL")
		return "", domain.ErrUploadFailed
	}

	s.metrics.RecordUpload(ctx, bucket, "ok", int64(len(data)))
	log.Info().Str("path", key).Int("size", len(data)).Msg("image uploaded")
	return publicURL, nil
}

// prepare validates owner and declared metadata, then reads and optionally sniffs the content
func (s *StorageService) prepare(t uploadTarget, file domain.FileUpload) ([]byte, error) {
	if !validOwnerKey(t.ownerKey) {
		return nil, domain.NewValidationError(domain.ErrInvalidOwner, "Invalid owner identifier")
	}
	if err := s.validateDeclared(file, t.allowed); err != nil {
		return nil, err
	}
	if file.Content == nil {
		return nil, fmt.Errorf("upload has no content")
	}

	// Read one byte past the limit so an understated declared size is still caught
	data, err := io.ReadAll(io.LimitReader(file.Content, s.cfg.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload content: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxSize {
		return nil, s.tooLarge()
	}

	if s.cfg.SniffContent {
		head := data
		if len(head) > sniffLength {
			head = head[:sniffLength]
		}
		if !sniffedTypeAllowed(mimetype.Detect(head), t.allowed) {
			return nil, domain.NewValidationError(domain.ErrContentMismatch,
				"File content does not match an allowed image type")
		}
	}
	return data, nil
}

func (s *StorageService) storeFor(kind domain.BucketKind) (domain.ObjectStore, error) {
	if kind == domain.BucketPaymentProofs {
		if s.privileged == nil {
			return nil, domain.ErrPrivilegedRequired
		}
		return s.privileged, nil
	}
	return s.store, nil
}

// paymentProofTypes intersects the configured allow-set with what the payment-proofs bucket accepts
func (s *StorageService) paymentProofTypes() []string {
	var out []string
	for _, t := range s.cfg.AllowedTypes {
		if containsType(domain.PaymentProofImageTypes, t) {
			out = append(out, t)
		}
	}
	return out
}

func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

func validOwnerKey(key string) bool {
	return key != "." && key != ".." && ownerKeyPattern.MatchString(key)
}

func containsType(allowed []string, contentType string) bool {
	for _, t := range allowed {
		if t == contentType {
			return true
		}
	}
	return false
}

// sniffedTypeAllowed treats the non-standard image/jpg as image/jpeg
func sniffedTypeAllowed(detected *mimetype.MIME, allowed []string) bool {
	for _, t := range allowed {
		if t == "image/jpg" {
			t = "image/jpeg"
		}
		if detected.Is(t) {
			return true
		}
	}
	return false
}

// randomToken returns 12 hex characters from a random UUID
func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
