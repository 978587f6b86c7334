package kvstore

import "context"

// Backend is the blob-storage abstraction underneath the store: the
// serialized map, the lock sentinel and the per-client transaction records
// are all objects of a backend. Implementations exist for the local
// filesystem, S3 and GCS.
type Backend interface {
	// Get returns the object's bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the object atomically.
	Put(ctx context.Context, key string, data []byte) error

	// PutIfAbsent creates the object only if it does not exist, returning
	// ErrAlreadyExists otherwise. Exclusive creation is the primitive the
	// lock sentinel and BEGIN are built on.
	PutIfAbsent(ctx context.Context, key string, data []byte) error

	// Delete removes the object, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Exists checks if an object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Ping verifies the backend is reachable. The filesystem backend also
	// checks that its directory is writable; S3 and GCS only read bucket
	// metadata.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// BackendConfig holds configuration for any backend
type BackendConfig struct {
	Type            string // "filesystem", "s3" or "gcs"
	Bucket          string // S3/GCS bucket, or base directory for filesystem
	Region          string // AWS region (S3 only)
	Endpoint        string // Custom endpoint (S3-compatible services)
	CredentialsFile string // Service account file (GCS only)
}

// Validate checks if the BackendConfig is valid
func (c BackendConfig) Validate() error {
	if c.Type == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"reason": "backend type is required",
		})
	}
	if c.Bucket == "" {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Bucket",
			"reason": "bucket/base path is required",
		})
	}

	switch c.Type {
	case "s3":
		if c.Region == "" && c.Endpoint == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Region/Endpoint",
				"reason": "S3 backend requires either Region or Endpoint",
			})
		}
	case "filesystem", "gcs":
	default:
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Type",
			"value":  c.Type,
			"reason": "unknown backend type",
		})
	}

	return nil
}
