package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bdougie/framevocab/internal/models"
)

// ObjectConfig holds the S3-compatible endpoint that receives words files.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// ObjectStore uploads {video}_words.txt of successful videos to a bucket
// under {prefix}/{run_id}/.
type ObjectStore struct {
	client *miniogo.Client
	bucket string
	prefix string
}

func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, miniogo.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *ObjectStore) Name() string { return "minio" }

func (s *ObjectStore) Publish(ctx context.Context, runID uuid.UUID, outcome models.ProcessingOutcome) error {
	if !outcome.Status.Succeeded() || outcome.OutputPath == "" {
		return nil
	}

	key := ObjectKey(s.prefix, runID, outcome.OutputPath)
	_, err := s.client.FPutObject(ctx, s.bucket, key, outcome.OutputPath, miniogo.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
		UserMetadata: map[string]string{
			"video":  outcome.Video,
			"status": string(outcome.Status),
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

func (s *ObjectStore) Close() error { return nil }

// ObjectKey builds the object name of a words file.
func ObjectKey(prefix string, runID uuid.UUID, outputPath string) string {
	return path.Join(prefix, runID.String(), filepath.Base(outputPath))
}
