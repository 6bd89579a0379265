package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML layout accepted by Load and Parse.
//
//	aws:
//	  region: eu-central-1
//	  endpoint: http://localhost:4566
//	metrics:
//	  enabled: true
//	  port: 9090
//	broker:
//	  queue_url: http://localhost:4566/000000000000/orders
//	  max_messages: 10
//	  delete_on_error: false
type File struct {
	AWS     AWSSection     `yaml:"aws"`
	Metrics MetricsSection `yaml:"metrics"`
	Broker  BrokerSection  `yaml:"broker"`
}

type AWSSection struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

type MetricsSection struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// BrokerSection holds optional broker settings. Unset fields keep whatever
// the target Settings already has.
type BrokerSection struct {
	QueueURL          *string `yaml:"queue_url"`
	MaxMessages       *int    `yaml:"max_messages"`
	WaitTimeSeconds   *int    `yaml:"wait_time_seconds"`
	VisibilityTimeout *int    `yaml:"visibility_timeout"`
	FetchUntilEmpty   *bool   `yaml:"fetch_until_empty"`
	DeleteOnSuccess   *bool   `yaml:"delete_on_success"`
	DeleteOnInvalid   *bool   `yaml:"delete_on_invalid"`
	DeleteOnError     *bool   `yaml:"delete_on_error"`
	NameAttribute     *string `yaml:"name_attribute"`
	VersionAttribute  *string `yaml:"version_attribute"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and validates the connection section.
// Broker settings are validated when applied.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg := f.Config()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &f, nil
}

// Config returns the connection settings described by the file.
func (f *File) Config() *Config {
	return &Config{
		AWSRegion:          f.AWS.Region,
		AWSAccessKeyID:     f.AWS.AccessKeyID,
		AWSSecretAccessKey: f.AWS.SecretAccessKey,
		AWSEndpoint:        f.AWS.Endpoint,
		MetricsEnabled:     f.Metrics.Enabled,
		MetricsPort:        f.Metrics.Port,
	}
}

// Apply copies the set fields onto s through the validating setters. It
// matches the mutator signature accepted by Broker.Setup.
func (b BrokerSection) Apply(s *Settings) error {
	if b.QueueURL != nil {
		if err := s.SetQueueURL(*b.QueueURL); err != nil {
			return err
		}
	}
	if b.MaxMessages != nil {
		if err := s.SetMaxMessages(*b.MaxMessages); err != nil {
			return err
		}
	}
	if b.WaitTimeSeconds != nil {
		if err := s.SetWaitTimeSeconds(*b.WaitTimeSeconds); err != nil {
			return err
		}
	}
	if b.VisibilityTimeout != nil {
		if err := s.SetVisibilityTimeout(*b.VisibilityTimeout); err != nil {
			return err
		}
	}
	if b.NameAttribute != nil || b.VersionAttribute != nil {
		nameKey, versionKey := s.NameAttributeKey(), s.VersionAttributeKey()
		if b.NameAttribute != nil {
			nameKey = *b.NameAttribute
		}
		if b.VersionAttribute != nil {
			versionKey = *b.VersionAttribute
		}
		if err := s.SetAttributeKeys(nameKey, versionKey); err != nil {
			return err
		}
	}
	if b.FetchUntilEmpty != nil {
		_ = s.SetFetchUntilEmpty(*b.FetchUntilEmpty)
	}
	if b.DeleteOnSuccess != nil {
		_ = s.SetDeleteOnSuccess(*b.DeleteOnSuccess)
	}
	if b.DeleteOnInvalid != nil {
		_ = s.SetDeleteOnInvalid(*b.DeleteOnInvalid)
	}
	if b.DeleteOnError != nil {
		_ = s.SetDeleteOnError(*b.DeleteOnError)
	}
	return nil
}
