// Package config loads the shipper's run configuration from environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	perrors "github.com/p-blackswan/podlog-shipper/internal/errors"
	"github.com/p-blackswan/podlog-shipper/internal/k8s"
)

const (
	defaultNamespace    = "default"
	defaultResourceType = "deployment"
	defaultRegion       = "us-east-1"
)

// Config holds all run configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Target workload
	Namespace    string `envconfig:"NAMESPACE" default:"default"`
	ResourceType string `envconfig:"RESOURCE_TYPE" default:"deployment"`
	ResourceName string `envconfig:"RESOURCE_NAME" required:"true"`
	Kubeconfig   string `envconfig:"KUBECONFIG"` // empty = in-cluster service account

	// Object storage
	BucketName         string `envconfig:"BUCKET_NAME" required:"true"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
	S3Endpoint         string `envconfig:"S3_ENDPOINT"` // MinIO, LocalStack
	S3UsePathStyle     bool   `envconfig:"S3_USE_PATH_STYLE" default:"false"`
	KeyPrefix          string `envconfig:"KEY_PREFIX"`

	// Reporting
	WriteManifest  bool   `envconfig:"WRITE_MANIFEST" default:"false"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
}

// Development returns true when human-readable console logging is wanted.
func (c *Config) Development() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Reference returns the workload reference this run targets.
// The kind is parsed at resolution time so an unsupported value is reported
// by the pipeline rather than at load.
func (c *Config) Reference() k8s.Reference {
	return k8s.Reference{
		Kind:      k8s.Kind(c.ResourceType),
		Name:      c.ResourceName,
		Namespace: c.Namespace,
	}
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, perrors.Config("loading config", fmt.Errorf("%w: %v", perrors.ErrMissingConfig, err))
	}
	cfg.applyFallbacks()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects required values that are present but empty, which
// envconfig accepts when the variable is declared with no value.
func (c *Config) Validate() error {
	required := map[string]string{
		"RESOURCE_NAME": c.ResourceName,
		"BUCKET_NAME":   c.BucketName,
	}
	for _, key := range []string{"RESOURCE_NAME", "BUCKET_NAME"} {
		if strings.TrimSpace(required[key]) == "" {
			return perrors.Config("loading config", fmt.Errorf("%w: %s is empty", perrors.ErrMissingConfig, key))
		}
	}
	return nil
}

// applyFallbacks normalizes values and restores defaults for variables that
// are declared but empty, which envconfig leaves as "".
func (c *Config) applyFallbacks() {
	c.Namespace = strings.TrimSpace(c.Namespace)
	if c.Namespace == "" {
		c.Namespace = defaultNamespace
	}
	c.ResourceType = strings.ToLower(strings.TrimSpace(c.ResourceType))
	if c.ResourceType == "" {
		c.ResourceType = defaultResourceType
	}
	c.AWSRegion = strings.TrimSpace(c.AWSRegion)
	if c.AWSRegion == "" {
		c.AWSRegion = defaultRegion
	}
}
