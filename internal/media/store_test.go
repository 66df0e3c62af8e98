package media

import (
	"bytes"
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassista/go_gallery/internal/config"
)

func TestNewRef(t *testing.T) {
	ref, err := NewRef("u1", "image/JPEG")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^u1/[0-9a-f-]{36}\.jpg$`), ref)

	_, err = NewRef("u1", "application/pdf")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = NewRef(" / ", "image/png")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(8)
	ctx := context.Background()

	ref, err := s.Put(ctx, "u1", "image/png", bytes.NewReader([]byte("png!")), 4)
	require.NoError(t, err)
	ok, _ := s.Exists(ctx, ref)
	assert.True(t, ok)
	ok, _ = s.Exists(ctx, "u1/missing.png")
	assert.False(t, ok)

	_, err = s.Put(ctx, "u1", "image/png", bytes.NewReader(make([]byte, 9)), 9)
	assert.ErrorIs(t, err, ErrTooLarge)

	// size header lies about the body
	_, err = s.Put(ctx, "u1", "image/png", bytes.NewReader(make([]byte, 20)), 4)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestNewS3Store_Validation(t *testing.T) {
	base := config.MediaConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "photos"}

	tests := []struct {
		name   string
		mutate func(*config.MediaConfig)
	}{
		{"no endpoint", func(c *config.MediaConfig) { c.Endpoint = " " }},
		{"no credentials", func(c *config.MediaConfig) { c.SecretKey = "" }},
		{"no bucket", func(c *config.MediaConfig) { c.Bucket = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := NewS3Store(cfg)
			assert.Error(t, err)
		})
	}

	s, err := NewS3Store(base)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)

	_, err = s.Put(context.Background(), "u1", "text/plain", bytes.NewReader([]byte("x")), 1)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}
