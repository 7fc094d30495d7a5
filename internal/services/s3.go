package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"qatar-events-collector/internal/models"
)

// S3Publisher uploads output tiers to an S3 bucket so downstream consumers
// (the mobile app backend, dashboards) read from a stable location instead
// of the collector host.
type S3Publisher struct {
	client     *s3.Client
	bucketName string
	region     string
}

// S3UploadResult describes a completed upload.
type S3UploadResult struct {
	Key        string    `json:"key"`
	PublicURL  string    `json:"public_url"`
	ETag       string    `json:"etag"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewS3Publisher creates a publisher for the given bucket using the default
// AWS credential chain.
func NewS3Publisher(ctx context.Context, bucketName string) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Publisher{
		client:     s3.NewFromConfig(cfg),
		bucketName: bucketName,
		region:     cfg.Region,
	}, nil
}

// PublishTier uploads a tier's events under a stable key matching the local
// filename, e.g. events/events_03_final.json.
func (p *S3Publisher) PublishTier(ctx context.Context, filename string, events []models.Event) (*S3UploadResult, error) {
	return p.uploadEvents(ctx, "events/"+filename, events)
}

// BackupFinal uploads a timestamped copy of the final tier so past runs
// remain retrievable after the stable key is overwritten.
func (p *S3Publisher) BackupFinal(ctx context.Context, events []models.Event, runTime time.Time) (*S3UploadResult, error) {
	key := fmt.Sprintf("events/backups/%s_%s", runTime.UTC().Format("20060102T150405Z"), FinalTierFile)
	return p.uploadEvents(ctx, key, events)
}

// uploadEvents marshals events and uploads them as a public JSON object.
func (p *S3Publisher) uploadEvents(ctx context.Context, key string, events []models.Event) (*S3UploadResult, error) {
	if events == nil {
		events = []models.Event{}
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal events to JSON: %w", err)
	}
	return p.uploadJSON(ctx, data, key, "application/json")
}

// uploadJSON is a helper method to upload JSON data to S3.
func (p *S3Publisher) uploadJSON(ctx context.Context, data []byte, key, contentType string) (*S3UploadResult, error) {
	key = strings.TrimPrefix(key, "/")

	result, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucketName),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=300"),
		Metadata: map[string]string{
			"uploaded-by": "qatar-events-collector",
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	etag := ""
	if result.ETag != nil {
		etag = strings.Trim(*result.ETag, `"`)
	}

	return &S3UploadResult{
		Key:        key,
		PublicURL:  p.GetPublicURL(key),
		ETag:       etag,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
	}, nil
}

// GetPublicURL returns the public HTTPS URL of an object in the bucket.
func (p *S3Publisher) GetPublicURL(key string) string {
	key = strings.TrimPrefix(key, "/")
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucketName, p.region, key)
}
