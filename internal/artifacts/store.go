// Package artifacts uploads run artifacts (failure screenshots and reports) to
// S3-compatible object storage.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/kuitang/flightprobe/internal/config"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("artifacts: object not found")

const (
	ContentTypePNG      = "image/png"
	ContentTypeHTML     = "text/html; charset=utf-8"
	ContentTypeMarkdown = "text/markdown; charset=utf-8"
)

// Store writes artifacts into one bucket.
type Store struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
}

// Config holds the connection settings for the artifact bucket.
type Config struct {
	// Endpoint is the S3 endpoint URL. Empty means AWS S3.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	// PublicURL is the base URL under which uploaded objects are readable.
	PublicURL string
	// UsePathStyle enables path-style addressing, which gofakes3 and MinIO need.
	UsePathStyle bool
}

// ConfigFrom extracts the artifact settings from the flightprobe configuration.
// ok is false when artifact storage is not configured.
func ConfigFrom(cfg *config.Config) (c Config, ok bool) {
	if cfg == nil || !cfg.ArtifactsEnabled() {
		return Config{}, false
	}
	return Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.AWSBucketName,
		PublicURL:       cfg.AWSPublicURL,
	}, true
}

// New creates a store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("artifacts: bucket name is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("artifacts: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewFromS3Client(client, cfg.BucketName, cfg.PublicURL), nil
}

// NewFromS3Client wraps an existing S3 client.
func NewFromS3Client(client *s3.Client, bucketName, publicURL string) *Store {
	return &Store{
		s3Client:   client,
		bucketName: bucketName,
		publicURL:  strings.TrimSuffix(publicURL, "/"),
	}
}

// PutObject stores content under key and returns its public URL.
func (s *Store) PutObject(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("artifacts: put %q: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// GetObject returns the content stored under key, or ErrObjectNotFound.
func (s *Store) GetObject(ctx context.Context, key string) ([]byte, error) {
	key = strings.TrimPrefix(key, "/")
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrObjectNotFound
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("artifacts: get %q: %w", key, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("artifacts: read %q: %w", key, err)
	}
	return data, nil
}

// PublicURL returns the URL under which key is readable.
func (s *Store) PublicURL(key string) string {
	return s.publicURL + "/" + strings.TrimPrefix(key, "/")
}

// BucketName returns the configured bucket name.
func (s *Store) BucketName() string {
	return s.bucketName
}

// RunKey returns the object key for name within a run: runs/<run-id>/<name>.
func RunKey(runID, name string) string {
	return "runs/" + Slug(runID) + "/" + name
}

// ScreenshotKey returns the key of the failure screenshot for a step.
func ScreenshotKey(runID, step string) string {
	return RunKey(runID, Slug(step)+".png")
}

// Slug lower-cases s and collapses every run of characters other than letters
// and digits into a single dash. An empty result becomes "unnamed".
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}
