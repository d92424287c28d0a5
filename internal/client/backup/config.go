package backup

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/daybook/internal/common"
)

const (
	KindMemory = "memory"
	KindDir    = "dir"
	KindS3     = "s3"
	KindHTTP   = "http"
)

const DefaultBlobName = "daybook-sync.json"

// Config selects and configures one provider.
type Config struct {
	Kind     string     `json:"kind" yaml:"kind"`
	BlobName string     `json:"blob_name" yaml:"blob_name"`
	Dir      string     `json:"dir" yaml:"dir"`
	S3       S3Config   `json:"s3" yaml:"s3"`
	HTTP     HTTPConfig `json:"http" yaml:"http"`
}

// New builds the transport named by cfg.Kind.
func New(ctx context.Context, cfg Config) (Transport, error) {
	name := cfg.BlobName
	if name == "" {
		name = DefaultBlobName
	}

	switch cfg.Kind {
	case KindMemory, "":
		return NewMemoryTransport(), nil
	case KindDir:
		return NewDirTransport(cfg.Dir, name)
	case KindS3:
		return NewS3Transport(ctx, cfg.S3, name)
	case KindHTTP:
		return NewHTTPTransport(cfg.HTTP, name, nil)
	default:
		return nil, fmt.Errorf("%w: unknown backup kind %q", common.ErrValidation, cfg.Kind)
	}
}
