package artifact

import "time"

const (
	defaultBucket    = "lumigator-storage"
	defaultURLExpiry = time.Hour
)

type Opts func(c *storeConfig)

type storeConfig struct {
	endpoint        string
	bucket          string
	accessKey       string
	secretAccessKey string
	region          string
	useSSL          bool
	urlExpiry       time.Duration
}

func newConfig(opts ...Opts) *storeConfig {
	cfg := &storeConfig{
		bucket:    defaultBucket,
		useSSL:    false,
		urlExpiry: defaultURLExpiry,
	}

	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func WithEndpoint(endpoint string) Opts {
	return func(c *storeConfig) {
		c.endpoint = endpoint
	}
}

func WithBucket(bucket string) Opts {
	return func(c *storeConfig) {
		c.bucket = bucket
	}
}

func WithAccessKey(accessKey string) Opts {
	return func(c *storeConfig) {
		c.accessKey = accessKey
	}
}

func WithSecretKey(secretKey string) Opts {
	return func(c *storeConfig) {
		c.secretAccessKey = secretKey
	}
}

func WithSSL(useSSL bool) Opts {
	return func(c *storeConfig) {
		c.useSSL = useSSL
	}
}

func WithRegion(region string) Opts {
	return func(c *storeConfig) {
		c.region = region
	}
}

// WithURLExpiry sets the lifetime of presigned urls. Non positive values keep the default.
func WithURLExpiry(expiry time.Duration) Opts {
	return func(c *storeConfig) {
		if expiry > 0 {
			c.urlExpiry = expiry
		}
	}
}
