package service

import (
	"bytes"
	"image/color"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexHash = regexp.MustCompile(`^[0-9a-f]{16}$`)

func TestGenerateImageHash_Format(t *testing.T) {
	data := encodePNG(t, checkerboard(256))

	hash, err := GenerateImageHash(data)
	require.NoError(t, err)
	assert.Len(t, hash, HashLength)
	assert.Regexp(t, hexHash, hash)
}

func TestGenerateImageHash_Deterministic(t *testing.T) {
	data := encodePNG(t, checkerboard(128))

	first, err := GenerateImageHash(data)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := GenerateImageHash(data)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestGenerateImageHash_KnownPatterns(t *testing.T) {
	black := color.RGBA{A: 255}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"uniform white", encodePNG(t, solidImage(32, 32, white)), "0000000000000000"},
		{"uniform black", encodePNG(t, solidImage(50, 20, black)), "0000000000000000"},
		{"dark left half", encodePNG(t, halfImage(64, black, white)), "0f0f0f0f0f0f0f0f"},
		{"dark right half", encodePNG(t, halfImage(64, white, black)), "f0f0f0f0f0f0f0f0"},
		{"checkerboard", encodePNG(t, checkerboard(256)), "55aa55aa55aa55aa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GenerateImageHash(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateImageHash_SurvivesRecompression(t *testing.T) {
	img := checkerboard(256)

	original, err := GenerateImageHash(encodePNG(t, img))
	require.NoError(t, err)
	recompressed, err := GenerateImageHash(encodeJPEG(t, img, 75))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, CompareHashes(original, recompressed), 90.0)
}

func TestGenerateImageHash_SurvivesResize(t *testing.T) {
	small, err := GenerateImageHash(encodePNG(t, checkerboard(128)))
	require.NoError(t, err)
	large, err := GenerateImageHash(encodePNG(t, checkerboard(512)))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, CompareHashes(small, large), 90.0)
}

func TestGenerateImageHash_InputUnchanged(t *testing.T) {
	data := encodePNG(t, checkerboard(64))
	before := bytes.Clone(data)

	_, err := GenerateImageHash(data)
	require.NoError(t, err)
	assert.Equal(t, before, data)
}

func TestGenerateImageHash_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not an image", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, checkerboard(64))[:40]},
		{"too many pixels", inflatedPNG(t, 20000, 20000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := GenerateImageHash(tt.data)
			assert.Empty(t, hash)
			assert.ErrorIs(t, err, ErrDecode)
			assert.Equal(t, KindDecode, KindOf(err))
		})
	}
}
