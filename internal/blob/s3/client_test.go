package s3blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", endpointURL("https://s3.example.com", false))
	assert.Equal(t, "http://minio.internal", endpointURL("minio.internal", false))
	assert.Equal(t, "http://minio.internal:9000", endpointURL("minio.internal:9000", false))
	assert.Equal(t, "https://e2.idrive.com", endpointURL("e2.idrive.com", true))
}

func TestNew_RequiresBucketAndRegion(t *testing.T) {
	_, err := New(context.Background(), ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket name is required")
	assert.Contains(t, err.Error(), "region is required")

	_, err = New(context.Background(), ClientConfig{Bucket: "arb"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "bucket")
}

func TestNew_CustomEndpoint(t *testing.T) {
	c, err := New(context.Background(), ClientConfig{
		Endpoint:       "localhost:9000",
		Region:         "us-east-1",
		Bucket:         "arb",
		AccessKey:      "minio",
		SecretKey:      "minio123",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "arb", c.bucket)
	assert.Equal(t, "http://localhost:9000", *c.api.Options().BaseEndpoint)
	assert.True(t, c.api.Options().UsePathStyle)
}

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.True(t, isNotFound(fmt.Errorf("head: %w", &types.NotFound{})))
	assert.True(t, isNotFound(statusErr(404)))
	assert.False(t, isNotFound(statusErr(403)))
	assert.False(t, isNotFound(errors.New("timeout")))
}
