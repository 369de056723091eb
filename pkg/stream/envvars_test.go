package stream_test

import (
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/m-mizutani/dynamostream/pkg/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, vars map[string]string) func() {
	for key, value := range vars {
		require.NoError(t, os.Setenv(key, value))
	}
	return func() {
		for key := range vars {
			os.Unsetenv(key)
		}
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Run("all variables", func(tt *testing.T) {
		defer setEnv(tt, map[string]string{
			"DYNAMOSTREAM_TABLE_NAME":    "env_logs",
			"DYNAMOSTREAM_HASH_TYPE":     "N",
			"DYNAMOSTREAM_READ_CAPACITY": "2",
			"DYNAMOSTREAM_BATCH_SIZE":    "10",
			"DYNAMOSTREAM_SEND_INTERVAL": "1500ms",
			"DYNAMOSTREAM_HOSTNAME":      "false",
			"DYNAMOSTREAM_DEBUG":         "true",
			"DYNAMOSTREAM_MAX_RETRIES":   "0",
			"DYNAMOSTREAM_ENDPOINT":      "http://localhost:8000",
			"AWS_REGION":                 "ap-northeast-1",
		})()

		opts, err := stream.OptionsFromEnv()
		require.NoError(tt, err)
		assert.Equal(tt, "env_logs", opts.TableName)
		assert.Equal(tt, models.TypeNumber, opts.HashType)
		assert.Equal(tt, int64(2), opts.ReadCapacity)
		assert.Equal(tt, 10, opts.BatchSize)
		assert.Equal(tt, 1500*time.Millisecond, opts.SendInterval)
		require.NotNil(tt, opts.Hostname)
		assert.False(tt, *opts.Hostname)
		require.NotNil(tt, opts.Debug)
		assert.True(tt, *opts.Debug)
		assert.Nil(tt, opts.Trace)
		require.NotNil(tt, opts.MaxRetries)
		assert.Equal(tt, 0, *opts.MaxRetries)
		assert.Equal(tt, "http://localhost:8000", opts.Endpoint)
		assert.Equal(tt, "ap-northeast-1", opts.Region)
	})

	t.Run("invalid interval", func(tt *testing.T) {
		defer setEnv(tt, map[string]string{"DYNAMOSTREAM_SEND_INTERVAL": "soon"})()
		_, err := stream.OptionsFromEnv()
		assert.Error(tt, err)
	})

	t.Run("invalid flag", func(tt *testing.T) {
		defer setEnv(tt, map[string]string{"DYNAMOSTREAM_TRACE": "maybe"})()
		_, err := stream.OptionsFromEnv()
		assert.Error(tt, err)
	})
}
