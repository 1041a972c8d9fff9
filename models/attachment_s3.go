package models

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rohanthewiz/serr"
)

// S3Attachments stores blobs in a bucket under notes/<user>/<name>.
type S3Attachments struct {
	client *s3.Client
	bucket string
}

// NewS3Attachments builds an S3 client from static credentials. A non-empty
// endpoint points the client at an S3-compatible server such as MinIO.
func NewS3Attachments(ctx context.Context, cfg *ServerConfig) (*S3Attachments, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, serr.Wrap(err, "failed to load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Attachments{client: client, bucket: cfg.S3Bucket}, nil
}

func (a *S3Attachments) Put(ctx context.Context, userID, name string, data []byte) (string, error) {
	key, err := attachmentKey(userID, name)
	if err != nil {
		return "", err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String("notes/" + key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", serr.Wrap(err, "failed to put attachment object")
	}
	return key, nil
}

func (a *S3Attachments) Fetch(ctx context.Context, userID, name string) ([]byte, error) {
	key, err := attachmentKey(userID, name)
	if err != nil {
		return nil, err
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String("notes/" + key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrAttachmentNotFound
		}
		return nil, serr.Wrap(err, "failed to get attachment object")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, serr.Wrap(err, "failed to read attachment object")
	}
	return data, nil
}
