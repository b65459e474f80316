package storage

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3(t *testing.T) *S3Store {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))

	s, err := NewS3Store(context.Background(), S3Config{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Bucket:    "tutor-support",
		Region:    "ap-southeast-2",
	})
	require.NoError(t, err)
	return s
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "ap-southeast-2"})
	assert.Error(t, err)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	orig := loadAWSConfig
	t.Cleanup(func() { loadAWSConfig = orig })
	loadAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("boom")
	}

	_, err := NewS3Store(context.Background(), S3Config{Bucket: "b"})
	assert.ErrorContains(t, err, "boom")
}

func TestS3Store_PresignPut(t *testing.T) {
	s := newTestS3(t)

	raw, err := s.PresignPut(context.Background(), "course-files/1-a.pdf", "application/pdf", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "tutor-support.s3.ap-southeast-2.amazonaws.com", u.Host)
	assert.Equal(t, "/course-files/1-a.pdf", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.Contains(t, u.Query().Get("X-Amz-SignedHeaders"), "content-type")
}

func TestS3Store_PresignGet(t *testing.T) {
	s := newTestS3(t)

	raw, err := s.PresignGet(context.Background(), "course-files/1-a.pdf", time.Hour, GetOptions{
		ResponseContentType:        "application/pdf",
		ResponseContentDisposition: "inline",
	})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", u.Query().Get("response-content-type"))
	assert.Equal(t, "inline", u.Query().Get("response-content-disposition"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
