package media

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectRef(t *testing.T) {
	bucket, key, ok := ParseObjectRef("minio://nurture-media/team-1/brochure.jpg")
	assert.True(t, ok)
	assert.Equal(t, "nurture-media", bucket)
	assert.Equal(t, "team-1/brochure.jpg", key)

	for _, ref := range []string{"https://cdn.test/a.jpg", "minio://bucket-only", "minio:///key", ""} {
		_, _, ok := ParseObjectRef(ref)
		assert.False(t, ok, ref)
	}
}

func TestResolveMediaURL(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("access", "secret", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	p := &Presigner{client: client, ttl: time.Hour}
	ctx := context.Background()

	passthrough, err := p.ResolveMediaURL(ctx, " https://cdn.test/a.jpg ")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/a.jpg", passthrough)

	signed, err := p.ResolveMediaURL(ctx, "minio://nurture-media/brochure.jpg")
	require.NoError(t, err)
	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "/nurture-media/brochure.jpg", u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestResolveMediaURLWithoutStorage(t *testing.T) {
	var p *Presigner
	_, err := p.ResolveMediaURL(context.Background(), "minio://b/k.jpg")
	assert.Error(t, err)

	u, err := p.ResolveMediaURL(context.Background(), "https://cdn.test/k.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/k.jpg", u)
}
