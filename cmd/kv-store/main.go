// kv-store - persistent transactional key-value store speaking a
// line-oriented text command protocol over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	kvstore "github.com/gabrielangelo/kv-store"
	"github.com/gabrielangelo/kv-store/internal/protocol"
)

func main() {
	var (
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		backendType = flag.String("backend", "filesystem", "Storage backend: filesystem, s3 or gcs")
		dataDir     = flag.String("data", "./data", "Data directory (filesystem backend)")
		s3Bucket    = flag.String("s3-bucket", "", "S3 bucket (s3 backend)")
		s3Region    = flag.String("s3-region", "", "AWS region (s3 backend)")
		s3Endpoint  = flag.String("s3-endpoint", "", "Custom S3 endpoint, e.g. a MinIO address")
		s3AccessKey = flag.String("s3-access-key", "", "Static access key for custom endpoints")
		s3SecretKey = flag.String("s3-secret-key", "", "Static secret key for custom endpoints")
		gcsBucket   = flag.String("gcs-bucket", "", "GCS bucket (gcs backend)")
		gcsCreds    = flag.String("gcs-credentials", "", "Service account JSON file (gcs backend)")
		redisLock   = flag.Bool("redis-lock", false, "Guard the store with a Redis lock instead of the lock sentinel")
		encKeyFile  = flag.String("encryption-key-file", "", "32-byte key file enabling AES-256-GCM encryption at rest")
		devLog      = flag.Bool("dev-log", false, "Human-readable console logging")
	)
	flag.Parse()

	logger, err := newLogger(*devLog)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // Flush on exit, safe to ignore

	metrics := kvstore.NewPrometheusMetrics(nil)
	ctx := context.Background()

	backend, err := buildBackend(ctx, backendConfig{
		Type:           *backendType,
		DataDir:        *dataDir,
		S3Bucket:       *s3Bucket,
		S3Region:       *s3Region,
		S3Endpoint:     *s3Endpoint,
		S3AccessKey:    *s3AccessKey,
		S3SecretKey:    *s3SecretKey,
		GCSBucket:      *gcsBucket,
		GCSCredentials: *gcsCreds,
	}, logger)
	if err != nil {
		logger.Error("failed to create backend", "error", err)
		os.Exit(1)
	}

	if *encKeyFile != "" {
		key, err := os.ReadFile(*encKeyFile)
		if err != nil {
			logger.Error("failed to read encryption key", "error", err)
			os.Exit(1)
		}
		backend, err = kvstore.NewEncryptionBackend(backend, key)
		if err != nil {
			logger.Error("failed to enable encryption", "error", err)
			os.Exit(1)
		}
		logger.Info("encryption at rest enabled")
	}

	store := kvstore.NewStoreWithObservability(backend, logger, metrics)
	if *redisLock {
		redisClient := redis.NewClient(kvstore.RedisOptions())
		defer redisClient.Close()
		store.WithLocker(kvstore.NewRedisStoreLocker(redisClient, "kvstore").WithMetrics(metrics))
		logger.Info("store lock backed by Redis")
	}

	txns := kvstore.NewTxnEngineWithObservability(store, backend, logger, metrics)
	processor := kvstore.NewProcessorWithObservability(txns, logger, metrics)

	server := protocol.NewServer(*addr, processor, store, logger)
	if err := server.Start(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(dev bool) (*kvstore.ZapLogger, error) {
	if dev {
		return kvstore.NewDevelopmentZapLogger()
	}
	return kvstore.NewProductionZapLogger()
}

type backendConfig struct {
	Type           string
	DataDir        string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	GCSBucket      string
	GCSCredentials string
}

// buildBackend constructs the configured backend. Remote backends are
// wrapped in a circuit breaker so an unreachable bucket fails fast.
func buildBackend(ctx context.Context, cfg backendConfig, logger kvstore.Logger) (kvstore.Backend, error) {
	switch cfg.Type {
	case "filesystem":
		if err := os.MkdirAll(cfg.DataDir, kvstore.DefaultDirPermissions); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		logger.Info("using filesystem backend", "dir", cfg.DataDir)
		return kvstore.NewFilesystemBackend(cfg.DataDir), nil

	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 backend requires --s3-bucket")
		}

		if cfg.S3Endpoint != "" {
			// MinIO-style S3-compatible endpoint with static credentials
			backend := kvstore.NewMinIOBackend(kvstore.MinIOConfig{
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     cfg.S3AccessKey,
				SecretAccessKey: cfg.S3SecretKey,
				Bucket:          cfg.S3Bucket,
			})
			logger.Info("using S3-compatible backend", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
			return wrapRemote(backend, logger), nil
		}

		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}

		logger.Info("using S3 backend", "bucket", cfg.S3Bucket)
		return wrapRemote(kvstore.NewS3Backend(s3.NewFromConfig(awsCfg), cfg.S3Bucket), logger), nil

	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("gcs backend requires --gcs-bucket")
		}
		backend, err := kvstore.NewGCSBackend(ctx, kvstore.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentials,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using GCS backend", "bucket", cfg.GCSBucket)
		return wrapRemote(backend, logger), nil

	default:
		return nil, fmt.Errorf("unknown backend type %q", cfg.Type)
	}
}

func wrapRemote(backend kvstore.Backend, logger kvstore.Logger) kvstore.Backend {
	wrapped := kvstore.NewCircuitBreakerBackend(backend, 5, 30*time.Second)
	wrapped.Breaker().WithStateChangeCallback(func(from, to string) {
		logger.Warn("backend circuit breaker state change", "from", from, "to", to)
	})
	return wrapped
}
