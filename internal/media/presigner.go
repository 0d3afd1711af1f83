// Package media resolves MMS media references to fetchable URLs.
package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"leadflow/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL bounds how long a carrier may fetch MMS media.
const PresignedURLTTL = 24 * time.Hour

const objectScheme = "minio://"

// Presigner turns minio://bucket/key references into presigned GET URLs.
type Presigner struct {
	client *minio.Client
	ttl    time.Duration
}

// NewPresigner returns nil when MinIO is not configured.
func NewPresigner(cfg config.MinIOConfig) (*Presigner, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}
	return &Presigner{client: client, ttl: PresignedURLTTL}, nil
}

// ResolveMediaURL presigns object references and passes other URLs through.
func (p *Presigner) ResolveMediaURL(ctx context.Context, mediaURL string) (string, error) {
	bucket, key, ok := ParseObjectRef(mediaURL)
	if !ok {
		return strings.TrimSpace(mediaURL), nil
	}
	if p == nil || p.client == nil {
		return "", fmt.Errorf("media %q needs object storage, which is not configured", mediaURL)
	}

	presigned, err := p.client.PresignedGetObject(ctx, bucket, key, p.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return presigned.String(), nil
}

// ParseObjectRef splits minio://bucket/key. ok is false for any other form.
func ParseObjectRef(ref string) (bucket, key string, ok bool) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, objectScheme) {
		return "", "", false
	}
	bucket, key, found := strings.Cut(strings.TrimPrefix(ref, objectScheme), "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}
