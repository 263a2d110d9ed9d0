// Package storage is the local upload target of the workflow: receipt bytes
// go to disk, the receipt row to sqlite, and the returned ID is what the
// remote extraction service is later pointed at.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/donkeyideas/kamioi-backend/src/logger"
	"github.com/donkeyideas/kamioi-backend/src/models"
	"github.com/donkeyideas/kamioi-backend/src/workflow"
	"github.com/google/uuid"
)

var ErrReceiptNotFound = errors.New("receipt not found")

type ReceiptStore struct {
	db  *sql.DB
	dir string
}

func NewReceiptStore(db *sql.DB, dir string) (*ReceiptStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	return &ReceiptStore{db: db, dir: dir}, nil
}

// Upload stores the receipt file and registers it, returning the receipt ID
// the rest of the workflow refers to.
func (s *ReceiptStore) Upload(ctx context.Context, userID int64, file workflow.FileUpload) (string, error) {
	id := uuid.NewString()
	storedPath := filepath.Join(s.dir, id+extensionFor(file.ContentType))

	dst, err := os.Create(storedPath)
	if err != nil {
		return "", fmt.Errorf("storing receipt file: %w", err)
	}
	written, err := io.Copy(dst, file.Content)
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(storedPath)
		return "", fmt.Errorf("storing receipt file: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO receipts (id, user_id, filename, mime_type, size_bytes, status, stored_path) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, userID, file.Filename, file.ContentType, written, models.ReceiptStatusUploaded, storedPath)
	if err != nil {
		os.Remove(storedPath)
		return "", fmt.Errorf("registering receipt: %w", err)
	}

	logger.L.Info("Receipt stored", "receiptID", id, "userID", userID, "filename", file.Filename, "sizeBytes", written)
	return id, nil
}

// UpdateStatus records where the workflow got to with this receipt.
func (s *ReceiptStore) UpdateStatus(ctx context.Context, receiptID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE receipts SET status = ? WHERE id = ?`, status, receiptID)
	if err != nil {
		return fmt.Errorf("updating receipt status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// GetReceipt fetches a stored receipt row.
func (s *ReceiptStore) GetReceipt(ctx context.Context, receiptID string) (*models.Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, filename, mime_type, size_bytes, status, created_at FROM receipts WHERE id = ?`, receiptID)
	var r models.Receipt
	err := row.Scan(&r.ID, &r.UserID, &r.Filename, &r.MimeType, &r.SizeBytes, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, fmt.Errorf("querying receipt %s: %w", receiptID, err)
	}
	return &r, nil
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}
