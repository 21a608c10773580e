package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options configures the object store connection
type Options struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	DrawingsBucket string
	ModelsBucket   string
}

// BlobStore reads drawing blobs and writes model artifacts to an
// S3-compatible object store (MinIO in the standard deployment)
type BlobStore struct {
	client         *s3.Client
	drawingsBucket string
	modelsBucket   string
}

// NewBlobStore creates a blob store client for the given endpoint
func NewBlobStore(ctx context.Context, opts Options) (*BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object store config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		// MinIO requires path-style addressing
		o.UsePathStyle = true
	})

	return &BlobStore{
		client:         client,
		drawingsBucket: opts.DrawingsBucket,
		modelsBucket:   opts.ModelsBucket,
	}, nil
}

// GetDrawing fetches a raw stroke data blob by its object path
func (b *BlobStore) GetDrawing(ctx context.Context, objectPath string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.drawingsBucket),
		Key:    aws.String(objectPath),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch drawing %s: %w", objectPath, err)
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// PutModel stores model weights keyed by the job id and returns the object
// path. The write must succeed before the job may be marked completed.
func (b *BlobStore) PutModel(ctx context.Context, jobID string, data []byte) (string, error) {
	objectName := jobID + ".model"

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.modelsBucket),
		Key:           aws.String(objectName),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store model for job %s: %w", jobID, err)
	}

	return objectName, nil
}
