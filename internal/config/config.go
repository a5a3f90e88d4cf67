package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/kelseyhightower/envconfig"
	"sigs.k8s.io/yaml"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig  `json:"database,omitempty"`
	Service  *svcConfig `json:"service,omitempty"`
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql" json:"type,omitempty"`
	Hostname string `envconfig:"DB_HOST" default:"localhost" json:"hostname,omitempty"`
	Port     string `envconfig:"DB_PORT" default:"5432" json:"port,omitempty"`
	Name     string `envconfig:"DB_NAME" default:"lumigator" json:"name,omitempty"`
	User     string `envconfig:"DB_USER" default:"admin" json:"user,omitempty"`
	Password string `envconfig:"DB_PASS" default:"adminpass" json:"password,omitempty"`
}

type svcConfig struct {
	Address         string   `envconfig:"LUMIGATOR_ADDRESS" default:":8000" json:"address,omitempty"`
	MetricsAddress  string   `envconfig:"LUMIGATOR_METRICS_ADDRESS" default:":8080" json:"metricsAddress,omitempty"`
	MetricsBuckets  string   `envconfig:"LUMIGATOR_METRICS_BUCKETS" default:"" json:"metricsBuckets,omitempty"`
	BaseUrl         string   `envconfig:"LUMIGATOR_BASE_URL" default:"http://localhost:8000" json:"baseUrl,omitempty"`
	LogLevel        string   `envconfig:"LUMIGATOR_LOG_LEVEL" default:"info" json:"logLevel,omitempty"`
	LogFormat       string   `envconfig:"LUMIGATOR_LOG_FORMAT" default:"console" json:"logFormat,omitempty"`
	Version         string   `envconfig:"LUMIGATOR_VERSION" default:"dev" json:"version,omitempty"`
	DeploymentType  string   `envconfig:"DEPLOYMENT_TYPE" default:"local" json:"deploymentType,omitempty"`
	MaxDatasetSize  ByteSize `envconfig:"LUMIGATOR_MAX_DATASET_SIZE" default:"50MB" json:"maxDatasetSize,omitempty"`
	JobTimeoutSec   int      `envconfig:"LUMIGATOR_JOB_TIMEOUT_SEC" default:"3600" json:"jobTimeoutSec,omitempty"`
	CorsOrigins     []string `envconfig:"LUMIGATOR_API_CORS_ALLOWED_ORIGINS" default:"http://localhost,http://localhost:3000" json:"corsOrigins,omitempty"`
	SecretKey       string   `envconfig:"LUMIGATOR_SECRET_KEY" default:"" json:"secretKey,omitempty"`
	RedactPatterns  []string `envconfig:"LUMIGATOR_REDACT_PATTERNS" default:"(?i)api_key,(?i)_token" json:"redactPatterns,omitempty"`
	MigrationFolder string   `envconfig:"LUMIGATOR_MIGRATIONS_FOLDER" default:"" json:"migrationFolder,omitempty"`
	EventsTopic     string   `envconfig:"LUMIGATOR_EVENTS_TOPIC" default:"lumigator.events" json:"eventsTopic,omitempty"`
	S3              S3       `json:"s3,omitempty"`
	Ray             Ray      `json:"ray,omitempty"`
	Tracking        Tracking `json:"tracking,omitempty"`
	Workers         Workers  `json:"workers,omitempty"`
}

type S3 struct {
	Endpoint  string `envconfig:"S3_ENDPOINT_URL" default:"localhost:9000" json:"endpoint,omitempty"`
	Bucket    string `envconfig:"S3_BUCKET" default:"lumigator-storage" json:"bucket,omitempty"`
	AccessKey string `envconfig:"AWS_ACCESS_KEY_ID" default:"" json:"accessKey,omitempty"`
	SecretKey string `envconfig:"AWS_SECRET_ACCESS_KEY" default:"" json:"secretKey,omitempty"`
	Region    string `envconfig:"AWS_DEFAULT_REGION" default:"us-east-2" json:"region,omitempty"`
	UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false" json:"useSSL,omitempty"`
	URLExpiry int    `envconfig:"S3_URL_EXPIRATION" default:"3600" json:"urlExpiry,omitempty"`
}

type Ray struct {
	Host          string   `envconfig:"RAY_HEAD_NODE_HOST" default:"localhost" json:"host,omitempty"`
	DashboardPort int      `envconfig:"RAY_DASHBOARD_PORT" default:"8265" json:"dashboardPort,omitempty"`
	WorkerEnvVars []string `envconfig:"RAY_WORKER_ENV_VARS" default:"" json:"workerEnvVars,omitempty"`
	WorkerGPUs    float64  `envconfig:"RAY_WORKER_GPUS" default:"0" json:"workerGPUs,omitempty"`
	GPUsFraction  float64  `envconfig:"RAY_WORKER_GPUS_FRACTION" default:"1.0" json:"gpusFraction,omitempty"`
}

type Tracking struct {
	URI string `envconfig:"TRACKING_BACKEND_URI" default:"http://localhost:5000" json:"uri,omitempty"`
}

type Workers struct {
	InferenceCommand string `envconfig:"INFERENCE_COMMAND" default:"python inference.py" json:"inferenceCommand,omitempty"`
	InferenceWorkDir string `envconfig:"INFERENCE_WORK_DIR" default:"../jobs/inference" json:"inferenceWorkDir,omitempty"`
	InferencePipReqs string `envconfig:"INFERENCE_PIP_REQS" default:"../jobs/inference/requirements.txt" json:"inferencePipReqs,omitempty"`
	EvaluatorCommand string `envconfig:"EVALUATOR_COMMAND" default:"python evaluator.py" json:"evaluatorCommand,omitempty"`
	EvaluatorWorkDir string `envconfig:"EVALUATOR_WORK_DIR" default:"../jobs/evaluator" json:"evaluatorWorkDir,omitempty"`
	EvaluatorPipReqs string `envconfig:"EVALUATOR_PIP_REQS" default:"../jobs/evaluator/requirements.txt" json:"evaluatorPipReqs,omitempty"`
}

// ByteSize is a size in bytes read from strings such as "50MB".
type ByteSize uint64

func (b *ByteSize) Decode(value string) error {
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", value, err)
	}
	*b = ByteSize(n)
	return nil
}

func (b *ByteSize) UnmarshalJSON(data []byte) error {
	return b.Decode(strings.Trim(string(data), `"`))
}

func (b ByteSize) String() string {
	return humanize.Bytes(uint64(b))
}

// DashboardURL is the base url of the job service.
func (r Ray) DashboardURL() string {
	return fmt.Sprintf("http://%s:%d", r.Host, r.DashboardPort)
}

func (r Ray) NumGPUs() float64 {
	return r.WorkerGPUs * r.GPUsFraction
}

// AllowedOrigins returns the CORS origin list. A wildcard wins over every other entry.
func (s *svcConfig) AllowedOrigins() []string {
	origins := make([]string, 0, len(s.CorsOrigins))
	for _, o := range s.CorsOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			return []string{"*"}
		}
		origins = append(origins, o)
	}
	return origins
}

// DecodedSecretKey returns the 32 byte symmetric key used for secrets.
func (s *svcConfig) DecodedSecretKey() ([]byte, error) {
	if s.SecretKey == "" {
		return nil, fmt.Errorf("secret key is not set")
	}
	key, err := base64.StdEncoding.DecodeString(s.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("secret key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("secret key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (s *svcConfig) CompiledRedactPatterns() ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, 0, len(s.RedactPatterns))
	for _, p := range s.RedactPatterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		r, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, r)
	}
	return patterns, nil
}

func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := process()
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// NewDefault returns a fresh configuration built from defaults and the environment.
func NewDefault() *Config {
	cfg, err := process()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load processes the environment and overlays the yaml file found at path, if any.
func Load(path string) (*Config, error) {
	cfg, err := New()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return cfg, nil
}

func process() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
