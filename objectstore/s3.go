package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/riders-api/riders"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// Config selects the S3 account and endpoint.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the AWS endpoint, e.g. http://localhost:9000.
	Endpoint string
	Logger   *slog.Logger
}

// S3 is a riders.ObjectStore backed by an S3 client.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	logger  *slog.Logger
}

var _ riders.ObjectStore = (*S3)(nil)

// New creates an S3 store from cfg.
func New(ctx context.Context, cfg Config) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
			// S3-compatible servers often reject aws-chunked bodies.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
			o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		}
	})

	return NewFromClient(client, cfg.Logger), nil
}

// NewFromClient wraps an existing S3 client.
func NewFromClient(client *s3.Client, logger *slog.Logger) *S3 {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		logger:  logger,
	}
}

func (s *S3) ListBuckets(ctx context.Context) ([]riders.Bucket, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("s3 list buckets: %w", classify(err))
	}

	buckets := make([]riders.Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		buckets = append(buckets, riders.Bucket{
			Name:      aws.ToString(b.Name),
			CreatedAt: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

func (s *S3) ListObjects(ctx context.Context, q riders.ListObjectsQuery) ([]riders.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{Bucket: aws.String(q.Bucket)}
	if q.Prefix != "" {
		input.Prefix = aws.String(q.Prefix)
	}

	objects := []riders.ObjectInfo{}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list objects %s: %w", q.Bucket, classify(err))
		}
		for _, obj := range page.Contents {
			objects = append(objects, riders.ObjectInfo{
				Bucket:       q.Bucket,
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return objects, nil
}

func (s *S3) Put(ctx context.Context, obj riders.PutObject, content io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(obj.Bucket),
		Key:         aws.String(obj.Key),
		Body:        content,
		ContentType: aws.String(obj.ContentType),
	}
	if obj.ACL != "" {
		input.ACL = types.ObjectCannedACL(obj.ACL)
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", obj.Bucket, obj.Key, classify(err))
	}

	s.logger.Debug("object stored", "bucket", obj.Bucket, "key", obj.Key, "content_type", obj.ContentType)
	return nil
}

func (s *S3) Get(ctx context.Context, bucket, key string) (riders.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return riders.Object{}, fmt.Errorf("s3 get %s/%s: %w", bucket, key, classify(err))
	}

	return riders.Object{
		Info: riders.ObjectInfo{
			Bucket:       bucket,
			Key:          key,
			Size:         aws.ToInt64(out.ContentLength),
			ETag:         aws.ToString(out.ETag),
			ContentType:  aws.ToString(out.ContentType),
			LastModified: aws.ToTime(out.LastModified),
		},
		Body: out.Body,
	}, nil
}

func (s *S3) Delete(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete %s/%s: %w", bucket, key, classify(err))
	}
	return nil
}

func (s *S3) PresignGet(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign %s/%s: %w", bucket, key, err)
	}
	return req.URL, nil
}

// classify maps S3 API errors onto the riders taxonomy.
func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %w", riders.ErrNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return fmt.Errorf("%w: %w", riders.ErrAuthentication, err)
		case "InvalidBucketName", "KeyTooLongError", "InvalidArgument":
			return fmt.Errorf("%w: %w", riders.ErrInvalidInput, err)
		}
		return fmt.Errorf("%w: %w", riders.ErrInternal, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", riders.ErrConnectivity, err)
}
