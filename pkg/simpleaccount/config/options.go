package config

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// WithPort sets the HTTP port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the runtime environment
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		c.Environment = env
		return nil
	}
}

// WithDatabase sets the database type and connection URL
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithDatabaseSchema sets the Postgres search_path
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithMemoryStorage keeps blobs in memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		c.Storage = StorageConfig{Type: "memory"}
		return nil
	}
}

// WithFilesystemStorage stores blobs below baseDir, one directory per bucket
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return errors.New("filesystem base directory is required")
		}
		c.Storage = StorageConfig{Type: "fs", BaseDir: baseDir}
		return nil
	}
}

// WithS3Storage stores blobs in S3 or an S3-compatible service. An empty
// endpoint uses AWS.
func WithS3Storage(region, endpoint string, usePathStyle bool) Option {
	return func(c *ServerConfig) error {
		c.Storage.Type = "s3"
		c.Storage.Region = region
		c.Storage.Endpoint = endpoint
		c.Storage.UsePathStyle = usePathStyle
		return nil
	}
}

// WithS3Credentials sets static S3 credentials
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *ServerConfig) error {
		c.Storage.AccessKeyID = accessKeyID
		c.Storage.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithGCSStorage stores blobs in Google Cloud Storage
func WithGCSStorage(credentialsFile, emulatorHost string) Option {
	return func(c *ServerConfig) error {
		c.Storage.Type = "gcs"
		c.Storage.CredentialsFile = credentialsFile
		c.Storage.EmulatorHost = emulatorHost
		return nil
	}
}

// WithBucketPrefix sets the physical bucket name prefix for s3 and gcs
func WithBucketPrefix(prefix string) Option {
	return func(c *ServerConfig) error {
		c.Storage.BucketPrefix = prefix
		return nil
	}
}

// WithBuckets replaces the logical buckets purged on deletion
func WithBuckets(buckets ...string) Option {
	return func(c *ServerConfig) error {
		c.Buckets = append([]string(nil), buckets...)
		return nil
	}
}

// WithJWT sets the token signing secret and lifetime. A zero ttl keeps the default.
func WithJWT(secret string, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.JWTSecret = secret
		if ttl != 0 {
			c.TokenTTL = ttl
		}
		return nil
	}
}

// WithSentinelIdentity sets the identity that takes over shared categories
func WithSentinelIdentity(id uuid.UUID) Option {
	return func(c *ServerConfig) error {
		c.SentinelIdentityID = id
		return nil
	}
}

// WithConcurrentCleanup enables concurrent deletion cleanup
func WithConcurrentCleanup(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.ConcurrentCleanup = enabled
		return nil
	}
}

// WithEventLogging enables or disables lifecycle event logging
func WithEventLogging(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.EnableEventLogging = enabled
		return nil
	}
}

// WithLogger sets the logger handed to the service and event sink
func WithLogger(logger *slog.Logger) Option {
	return func(c *ServerConfig) error {
		c.logger = logger
		return nil
	}
}
