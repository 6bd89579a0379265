package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
aws:
  region: eu-central-1
  endpoint: http://localhost:4566
  access_key_id: test
  secret_access_key: test
metrics:
  enabled: true
  port: 9090
broker:
  queue_url: http://localhost:4566/000000000000/orders
  max_messages: 10
  wait_time_seconds: 20
  fetch_until_empty: false
  delete_on_error: false
  name_attribute: type
`

func TestParseAndApply(t *testing.T) {
	f, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	cfg := f.Config()
	assert.Equal(t, "eu-central-1", cfg.AWSRegion)
	assert.Equal(t, "http://localhost:4566", cfg.AWSEndpoint)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 9090, cfg.MetricsPort)

	s := DefaultSettings()
	require.NoError(t, f.Broker.Apply(&s))
	assert.Equal(t, "http://localhost:4566/000000000000/orders", s.QueueURL())
	assert.Equal(t, 10, s.MaxMessages())
	assert.Equal(t, 20, s.WaitTimeSeconds())
	assert.False(t, s.FetchUntilEmpty())
	assert.False(t, s.DeleteOnError())
	assert.True(t, s.DeleteOnSuccess(), "unset fields keep their defaults")
	assert.Equal(t, "type", s.NameAttributeKey())
	assert.Equal(t, DefaultVersionAttributeKey, s.VersionAttributeKey())
}

func TestParseRejectsInvalidConnection(t *testing.T) {
	_, err := Parse([]byte("aws:\n  access_key_id: only-key\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("aws: [unterminated"))
	require.Error(t, err)
}

func TestBrokerSectionApplyRejectsOutOfRange(t *testing.T) {
	f, err := Parse([]byte("broker:\n  max_messages: 50\n"))
	require.NoError(t, err)

	s := DefaultSettings()
	require.Error(t, f.Broker.Apply(&s))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qbroker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "eu-central-1", f.AWS.Region)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
