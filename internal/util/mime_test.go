package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectMIME(t *testing.T) {
	t.Parallel()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.Equal(t, "image/png", DetectMIME(png))
	require.Equal(t, "image/jpeg", DetectMIME([]byte("\xff\xd8\xff\xe0\x00\x10JFIF")))
	require.Equal(t, "text/plain; charset=utf-8", DetectMIME([]byte("hello world")))
}

func TestIsAvatarMIME(t *testing.T) {
	t.Parallel()

	require.True(t, IsAvatarMIME("image/png"))
	require.True(t, IsAvatarMIME(" IMAGE/JPEG "))
	require.True(t, IsAvatarMIME("image/webp"))
	require.False(t, IsAvatarMIME("image/svg+xml"))
	require.False(t, IsAvatarMIME("application/pdf"))
	require.False(t, IsAvatarMIME(""))
}

func TestIsImageMIME(t *testing.T) {
	t.Parallel()

	require.True(t, IsImageMIME("image/avif"))
	require.False(t, IsImageMIME("video/mp4"))
}
