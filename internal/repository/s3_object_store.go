package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	appConfig "github.com/libaas-store/storefront/internal/config"
	"github.com/libaas-store/storefront/internal/domain"
	"github.com/rs/zerolog"
)

// S3Credentials is one access key pair for the object store
type S3Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// S3ObjectStore implements domain.ObjectStore using AWS SDK v2 against any S3-compatible store
type S3ObjectStore struct {
	client    *s3.Client
	region    string
	publicURL *url.URL
	log       zerolog.Logger
}

// NewS3ObjectStore creates an object store client authenticated with creds
func NewS3ObjectStore(ctx context.Context, cfg appConfig.S3Config, creds S3Credentials, log zerolog.Logger) (*S3ObjectStore, error) {
	publicBase := cfg.PublicURL
	if publicBase == "" {
		publicBase = cfg.Endpoint
	}
	publicURL, err := url.Parse(strings.TrimRight(publicBase, "/"))
	if err != nil || publicURL.Scheme == "" || publicURL.Host == "" {
		return nil, fmt.Errorf("invalid public storage URL %q", publicBase)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	// Override the endpoint so SeaweedFS / MinIO style stores work alongside AWS
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3ObjectStore{
		client:    client,
		region:    cfg.Region,
		publicURL: publicURL,
		log:       log.With().Str("component", "s3-object-store").Logger(),
	}, nil
}

// Upload writes an object. Without Upsert the write is conditional on the key being free.
func (r *S3ObjectStore) Upload(ctx context.Context, bucket, key string, body io.Reader, size int64, opts domain.UploadOptions) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		Metadata:      opts.Metadata,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}
	if !opts.Upsert {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		if isObjectExists(err) {
			return domain.ErrObjectExists
		}
		return fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}
	return nil
}

// PublicURL builds {publicURL}/{bucket}/{key} with every key segment escaped.
// An empty key yields the bucket's base URL.
func (r *S3ObjectStore) PublicURL(bucket, key string) (string, error) {
	if bucket == "" {
		return "", fmt.Errorf("bucket is required")
	}

	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return r.publicURL.String() + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/"), nil
}

// Remove deletes every key in bucket
func (r *S3ObjectStore) Remove(ctx context.Context, bucket string, keys ...string) error {
	for _, key := range keys {
		_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
		}
	}
	return nil
}

// List returns the direct children of folder: objects and sub-folders, names relative to folder.
func (r *S3ObjectStore) List(ctx context.Context, bucket, folder string, limit, offset int) ([]domain.ObjectInfo, error) {
	prefix := strings.Trim(folder, "/")
	if prefix != "" {
		prefix += "/"
	}

	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(int32(limit + offset)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	out, err := r.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", bucket, prefix, err)
	}

	items := make([]domain.ObjectInfo, 0, len(out.CommonPrefixes)+len(out.Contents))
	for _, p := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(p.Prefix), prefix), "/")
		if name != "" {
			items = append(items, domain.ObjectInfo{Name: name})
		}
	}
	for _, obj := range out.Contents {
		name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
		if name == "" {
			continue // folder placeholder object
		}
		items = append(items, domain.ObjectInfo{Name: name, Size: aws.ToInt64(obj.Size)})
	}

	if offset >= len(items) {
		return []domain.ObjectInfo{}, nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ListBuckets returns the names of all buckets visible to this credential
func (r *S3ObjectStore) ListBuckets(ctx context.Context) ([]string, error) {
	out, err := r.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// CreateBucket creates a bucket and applies its access policy and upload limits.
// A bucket already owned by this credential is not an error.
func (r *S3ObjectStore) CreateBucket(ctx context.Context, name string, opts domain.BucketOptions) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if r.region != "" && r.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(r.region),
		}
	}

	if _, err := r.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if !errors.As(err, &owned) {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
		r.log.Info().Str("bucket", name).Msg("bucket already owned, applying settings")
	}

	if opts.Public {
		policy, err := publicReadPolicy(name)
		if err != nil {
			return err
		}
		if _, err := r.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
			Bucket: aws.String(name),
			Policy: aws.String(policy),
		}); err != nil {
			return fmt.Errorf("failed to set public policy on %s: %w", name, err)
		}
	}

	tags := bucketTags(opts)
	if len(tags) > 0 {
		if _, err := r.client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
			Bucket:  aws.String(name),
			Tagging: &types.Tagging{TagSet: tags},
		}); err != nil {
			return fmt.Errorf("failed to tag bucket %s: %w", name, err)
		}
	}
	return nil
}

// Ping checks that bucket is reachable with this credential
func (r *S3ObjectStore) Ping(ctx context.Context, bucket string) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return fmt.Errorf("bucket %s unreachable: %w", bucket, err)
	}
	return nil
}

// isObjectExists matches the answers S3-compatible stores give to a failed If-None-Match write
func isObjectExists(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}

func publicReadPolicy(bucket string) (string, error) {
	doc := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Sid":       "PublicRead",
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    []string{"s3:GetObject"},
				"Resource":  []string{"arn:aws:s3:::" + bucket + "/*"},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode bucket policy: %w", err)
	}
	return string(data), nil
}

// bucketTags records upload limits on the bucket itself. Tag values cannot hold commas, so types are space separated.
func bucketTags(opts domain.BucketOptions) []types.Tag {
	var tags []types.Tag
	if len(opts.AllowedMIMETypes) > 0 {
		tags = append(tags, types.Tag{
			Key:   aws.String("allowed-mime-types"),
			Value: aws.String(strings.Join(opts.AllowedMIMETypes, " ")),
		})
	}
	if opts.FileSizeLimit > 0 {
		tags = append(tags, types.Tag{
			Key:   aws.String("file-size-limit"),
			Value: aws.String(strconv.FormatInt(opts.FileSizeLimit, 10)),
		})
	}
	return tags
}
