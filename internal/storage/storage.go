// Package storage archives notification audit records.
//
// This package defines a Storage interface with implementations for:
// - LocalStorage: File system storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage for production
//
// Audit records are small JSON documents written once and never updated.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is a write-once object store. Audit records are never read back
// by the service; operators read them straight from the bucket.
type Storage interface {
	// Put stores data at the specified key with the given options.
	// Returns ErrKeyExists if the key is taken and opts.Overwrite is false.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType specifies the MIME type of the object.
	// Defaults to application/json.
	ContentType string

	// MaxSize specifies the maximum allowed size in bytes. 0 means no limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool
}

// DefaultContentType is used when PutOptions.ContentType is empty.
const DefaultContentType = "application/json"

// =============================================================================
// Configuration Types
// =============================================================================

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory where files are stored.
	// Example: "./storage" or "/var/lib/challan/audit"
	BasePath string
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Endpoint overrides the R2 endpoint derived from AccountID. Useful for
	// S3-compatible stores such as MinIO.
	Endpoint string

	// Region is required by the AWS SDK. R2 accepts "auto".
	Region string
}

// =============================================================================
// Provider Constants
// =============================================================================

const (
	// ProviderLocal identifies the local filesystem storage provider.
	ProviderLocal = "local"

	// ProviderR2 identifies the Cloudflare R2 storage provider.
	ProviderR2 = "r2"
)

// =============================================================================
// Key Generation Helpers
// =============================================================================

// AuditKey generates the storage key for one audit record.
// Format: audit/YYYY/MM/DD/{kind}-{uuid}.json
//
// Example: "audit/2026/10/16/payment_received-987fcdeb-51a2-43f1-b9c4-12345678abcd.json"
func AuditKey(kind string, at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("audit/%04d/%02d/%02d/%s-%s.json", at.Year(), at.Month(), at.Day(), kind, uuid.New())
}
