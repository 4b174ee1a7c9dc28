package sysroot

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// objectPutter is the part of the S3 API the publisher needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Publisher uploads finished bundles to an S3-compatible bucket (Cloudflare R2 by default).
type Publisher struct {
	Client     objectPutter
	BucketName string
	Prefix     string
}

// NewPublisher builds an R2 client from the publish settings.
func NewPublisher(ctx context.Context, ps PublishSettings) (*Publisher, error) {
	if ps.Bucket == "" || ps.AccessKeyID == "" || ps.SecretAccessKey == "" {
		return nil, fmt.Errorf("publish credentials missing (bucket, access_key_id, secret_access_key)")
	}
	endpoint := ps.Endpoint
	if endpoint == "" {
		if ps.AccountID == "" {
			return nil, fmt.Errorf("publish needs either an endpoint or an R2 account_id")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", ps.AccountID)
	}
	region := ps.Region
	if region == "" {
		region = "auto"
	}

	options := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ps.AccessKeyID, ps.SecretAccessKey, "")),
		config.WithRegion(region),
	}
	if Debug {
		options = append(options, config.WithClientLogMode(aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &Publisher{Client: client, BucketName: ps.Bucket, Prefix: ps.Prefix}, nil
}

// Key returns the object key for a local file.
func (p *Publisher) Key(filePath string) string {
	return path.Join(strings.Trim(p.Prefix, "/"), filepath.Base(filePath))
}

// UploadLocalFile uploads filePath under its base name.
func (p *Publisher) UploadLocalFile(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", err
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(filePath, ".tar"):
		contentType = "application/x-tar"
	case strings.HasSuffix(filePath, ".b3"):
		contentType = "text/plain"
	}

	key := p.Key(filePath)
	_, err = p.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.BucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

// Publish uploads the bundle and, when present, its digest sidecar.
func (p *Publisher) Publish(ctx context.Context, bundlePath string) error {
	files := []string{bundlePath}
	if _, err := os.Stat(bundlePath + ".b3"); err == nil {
		files = append(files, bundlePath+".b3")
	}
	for _, f := range files {
		key, err := p.UploadLocalFile(ctx, f)
		if err != nil {
			return err
		}
		arrowf(colSuccess, "uploaded %s to %s/%s\n", filepath.Base(f), p.BucketName, key)
	}
	return nil
}
