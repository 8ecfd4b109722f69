package checkpoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/caiotarifa/notion2sheets/internal/config"
	"github.com/caiotarifa/notion2sheets/internal/n2s"
)

// DefaultS3Key is the object key used when s3_key is not configured.
const DefaultS3Key = "notion2sheets/last_updated_time.json"

// objectGetter is the subset of *s3.Client used for reads.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// objectUploader is the subset of *manager.Uploader used for writes.
type objectUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store keeps checkpoints as a single JSON object in S3, so several hosts
// (or ephemeral CI runners) can share sync state.
type S3Store struct {
	bucket   string
	key      string
	getter   objectGetter
	uploader objectUploader
	timeout  time.Duration
	mu       sync.Mutex
}

var _ n2s.CheckpointStore = (*S3Store)(nil)

// NewS3Store creates an S3Store from configuration, loading AWS settings
// from the default chain unless static credentials are configured.
func NewS3Store(ctx context.Context, cfg config.CheckpointConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 checkpoint store requires s3_bucket to be set")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	key := cfg.S3Key
	if key == "" {
		key = DefaultS3Key
	}
	return newS3Store(cfg.S3Bucket, key, client, manager.NewUploader(client)), nil
}

func newS3Store(bucket, key string, getter objectGetter, uploader objectUploader) *S3Store {
	return &S3Store{
		bucket:   bucket,
		key:      key,
		getter:   getter,
		uploader: uploader,
		timeout:  30 * time.Second,
	}
}

func (s *S3Store) GetCheckpoint(databaseID string) (*n2s.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	t, ok := doc[databaseID]
	if !ok {
		return nil, nil
	}
	return &n2s.Checkpoint{DatabaseID: databaseID, SyncedAt: t}, nil
}

func (s *S3Store) PutCheckpoint(databaseID string, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	doc[databaseID] = syncedAt.UTC()
	return s.save(doc)
}

func (s *S3Store) ListCheckpoints() ([]*n2s.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return sortedCheckpoints(doc), nil
}

func (s *S3Store) DeleteCheckpoint(databaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := doc[databaseID]; !ok {
		return nil
	}
	delete(doc, databaseID)
	return s.save(doc)
}

func (s *S3Store) load() (map[string]time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	out, err := s.getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return make(map[string]time.Time), nil
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	doc, err := decodeDocument(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return doc, nil
}

func (s *S3Store) save(doc map[string]time.Time) error {
	var buf bytes.Buffer
	if err := encodeDocument(&buf, doc); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
