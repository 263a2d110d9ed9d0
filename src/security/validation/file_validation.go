package validation

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrInvalidFile marks a local file-gate failure: the upload was refused
// before any remote call was made.
var ErrInvalidFile = errors.New("invalid receipt file")

// AllowedReceiptContentTypes is the gate for client-declared MIME types.
// Receipts are photos or PDF scans; nothing else gets past idle.
var AllowedReceiptContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"application/pdf": true,
}

// ValidateReceiptContentType checks the Content-Type declared by the client.
func ValidateReceiptContentType(contentType string) error {
	normalized := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedReceiptContentTypes[normalized] {
		return fmt.Errorf("%w: file type '%s' is not supported, use PNG, JPEG or PDF", ErrInvalidFile, contentType)
	}
	return nil
}

// ValidateReceiptSize enforces the upload size cap.
func ValidateReceiptSize(sizeBytes, maxBytes int64) error {
	if sizeBytes > maxBytes {
		return fmt.Errorf("%w: file is too large (%d bytes), max %d MB", ErrInvalidFile, sizeBytes, maxBytes/(1024*1024))
	}
	return nil
}

// ValidateReceiptContentByMagicBytes checks the actual file signature so a
// renamed executable cannot slip through on its declared type alone.
// It returns the detected content type and resets the reader to the start.
func ValidateReceiptContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("%w: file is nil", ErrInvalidFile)
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset the read pointer so later consumers see the full file.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detected := http.DetectContentType(buffer[:n])
	detected = strings.ToLower(strings.Split(detected, ";")[0])

	if !AllowedReceiptContentTypes[detected] {
		return detected, fmt.Errorf("%w: detected content type '%s' is not a PNG, JPEG or PDF receipt", ErrInvalidFile, detected)
	}
	return detected, nil
}
