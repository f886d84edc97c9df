package storage

import (
	"testing"

	"github.com/mystique/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewS3ObjectStorage_Validation(t *testing.T) {
	_, err := NewS3ObjectStorage(nil, nil)
	assert.ErrorContains(t, err, "configuration is required")

	_, err = NewS3ObjectStorage(&config.StorageConfig{AccessKey: "k", SecretKey: "s"}, nil)
	assert.ErrorContains(t, err, "bucket is required")

	_, err = NewS3ObjectStorage(&config.StorageConfig{Bucket: "media", AccessKey: "k"}, nil)
	assert.ErrorContains(t, err, "secret key")
}

func TestS3ObjectStorage_URLs(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "custom endpoint path style",
			cfg:  config.StorageConfig{Endpoint: "minio:9000", Bucket: "media", UsePathStyle: true},
			want: "http://minio:9000/media/products/a.png",
		},
		{
			name: "tls endpoint",
			cfg:  config.StorageConfig{Endpoint: "s3.example.com/", Bucket: "media", UseSSL: true},
			want: "https://s3.example.com/media/products/a.png",
		},
		{
			name: "aws default",
			cfg:  config.StorageConfig{Bucket: "media", Region: "eu-west-1"},
			want: "https://media.s3.eu-west-1.amazonaws.com/products/a.png",
		},
		{
			name: "public cdn",
			cfg:  config.StorageConfig{Bucket: "media", PublicBaseURL: "https://cdn.mystique.shop/"},
			want: "https://cdn.mystique.shop/products/a.png",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.AccessKey, cfg.SecretKey = "key", "secret"
			s, err := NewS3ObjectStorage(&cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			assert.Equal(t, "media", s.Bucket())

			url := s.ObjectURL("products/a.png")
			assert.Equal(t, tt.want, url)

			key, ok := s.KeyFromURL(url + "?v=2")
			assert.True(t, ok)
			assert.Equal(t, "products/a.png", key)

			_, ok = s.KeyFromURL("https://res.cloudinary.com/demo/image/upload/a.png")
			assert.False(t, ok)
		})
	}
}
