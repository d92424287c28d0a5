package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/daybook/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the subset of *s3.Client the transport calls.
type s3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Region       string `json:"region" yaml:"region"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	BaseEndpoint string `json:"base_endpoint" yaml:"base_endpoint"`
	AccessKey    string `json:"access_key" yaml:"access_key"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
}

// S3Transport keeps the blob as one object in an S3-compatible bucket.
type S3Transport struct {
	client s3API
	bucket string
	key    string
}

// NewS3Transport builds a client from cfg. Static credentials are used when
// an access key is given, otherwise the default AWS chain. A base endpoint
// switches to path-style addressing for MinIO and friends.
func NewS3Transport(ctx context.Context, cfg S3Config, name string) (*S3Transport, error) {
	if cfg.Bucket == "" || name == "" {
		return nil, fmt.Errorf("%w: s3 bucket and blob name are required", common.ErrValidation)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, wrap("init", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Transport{client: client, bucket: cfg.Bucket, key: cfg.Prefix + name}, nil
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	var nk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

func (t *S3Transport) FindExisting(ctx context.Context) (*Handle, error) {
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key),
	})
	if isS3NotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find", err)
	}
	return &Handle{ID: t.key}, nil
}

func (t *S3Transport) Upload(ctx context.Context, data []byte, h *Handle) (*Handle, error) {
	key := t.key
	if h != nil && h.ID != "" {
		key = h.ID
	}
	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return nil, wrap("upload", err)
	}
	return &Handle{ID: key}, nil
}

func (t *S3Transport) Download(ctx context.Context, h *Handle) ([]byte, error) {
	if h == nil {
		return nil, wrap("download", errNoHandle)
	}
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(h.ID),
	})
	if isS3NotFound(err) {
		return nil, wrap("download", fmt.Errorf("%s: %w", h.ID, common.ErrNotFound))
	}
	if err != nil {
		return nil, wrap("download", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrap("download", err)
	}
	return data, nil
}
