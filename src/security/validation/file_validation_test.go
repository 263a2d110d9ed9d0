package validation

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReceiptContentType(t *testing.T) {
	assert.NoError(t, ValidateReceiptContentType("image/png"))
	assert.NoError(t, ValidateReceiptContentType("image/jpeg"))
	assert.NoError(t, ValidateReceiptContentType("application/pdf"))
	assert.NoError(t, ValidateReceiptContentType("IMAGE/PNG"))
	assert.NoError(t, ValidateReceiptContentType("image/png; charset=binary"))

	assert.ErrorIs(t, ValidateReceiptContentType("text/html"), ErrInvalidFile)
	assert.ErrorIs(t, ValidateReceiptContentType("image/gif"), ErrInvalidFile)
	assert.ErrorIs(t, ValidateReceiptContentType(""), ErrInvalidFile)
}

func TestValidateReceiptSize(t *testing.T) {
	max := int64(10 * 1024 * 1024)
	assert.NoError(t, ValidateReceiptSize(1024, max))
	assert.NoError(t, ValidateReceiptSize(max, max))
	assert.ErrorIs(t, ValidateReceiptSize(max+1, max), ErrInvalidFile)
}

func TestValidateReceiptContentByMagicBytes(t *testing.T) {
	t.Run("png signature", func(t *testing.T) {
		content := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
		r := bytes.NewReader(content)

		detected, err := ValidateReceiptContentByMagicBytes(r)
		require.NoError(t, err)
		assert.Equal(t, "image/png", detected)

		// Reader must be rewound for the next consumer.
		rest, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, content, rest)
	})

	t.Run("jpeg signature", func(t *testing.T) {
		content := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 64)...)
		detected, err := ValidateReceiptContentByMagicBytes(bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", detected)
	})

	t.Run("pdf signature", func(t *testing.T) {
		detected, err := ValidateReceiptContentByMagicBytes(strings.NewReader("%PDF-1.7 fake document body"))
		require.NoError(t, err)
		assert.Equal(t, "application/pdf", detected)
	})

	t.Run("renamed executable rejected", func(t *testing.T) {
		content := append([]byte("MZ"), bytes.Repeat([]byte{0}, 64)...)
		_, err := ValidateReceiptContentByMagicBytes(bytes.NewReader(content))
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("plain text rejected", func(t *testing.T) {
		_, err := ValidateReceiptContentByMagicBytes(strings.NewReader("just a text file"))
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("nil reader", func(t *testing.T) {
		_, err := ValidateReceiptContentByMagicBytes(nil)
		assert.ErrorIs(t, err, ErrInvalidFile)
	})
}
