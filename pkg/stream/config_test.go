package stream

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/google/uuid"
	"github.com/m-mizutani/dynamostream/internal/adaptor"
	"github.com/m-mizutani/dynamostream/internal/repository"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTableName(t *testing.T) {
	assert.Equal(t, "app_host_8080", buildTableName("app", "host", "8080"))
	assert.Equal(t, "host", buildTableName("", "host", ""))
	assert.Equal(t, "app_host", buildTableName("app", "host", ""))

	name := buildTableName("app", "", "80")
	require.True(t, len(name) > len("app__80"))
	_, err := uuid.Parse(name[len("app_") : len(name)-len("_80")])
	assert.NoError(t, err)
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	base.TableName = "logs"

	t.Run("nil options keeps config", func(tt *testing.T) {
		next, dropped := base.merge(nil, true)
		assert.Equal(tt, base, next)
		assert.Nil(tt, dropped)
	})

	t.Run("unlocked", func(tt *testing.T) {
		next, dropped := base.merge(&Options{
			TableName:  "other",
			HashType:   models.TypeNumber,
			MaxRetries: aws.Int(0),
			BatchSize:  3,
			Debug:      aws.Bool(true),
		}, false)
		assert.Nil(tt, dropped)
		assert.Equal(tt, "other", next.TableName)
		assert.Equal(tt, models.TypeNumber, next.HashType)
		assert.Equal(tt, 0, next.MaxRetries)
		assert.Equal(tt, 3, next.BatchSize)
		assert.True(tt, next.Debug)
		assert.Equal(tt, "logs", base.TableName)
	})

	t.Run("locked", func(tt *testing.T) {
		next, dropped := base.merge(&Options{
			TableName:    "other",
			HashKey:      base.HashKey,
			ReadCapacity: 10,
			Endpoint:     "http://localhost:8000",
			SendInterval: time.Second,
			Trace:        aws.Bool(true),
		}, true)
		assert.Equal(tt, []string{"TableName", "ReadCapacity", "Endpoint"}, dropped)
		assert.Equal(tt, "logs", next.TableName)
		assert.Equal(tt, int64(DefaultReadCapacity), next.ReadCapacity)
		assert.Equal(tt, "", next.Endpoint)
		assert.Equal(tt, time.Second, next.SendInterval)
		assert.True(tt, next.Trace)
	})
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()
	base.TableName = "logs"
	require.NoError(t, base.validate())

	cases := map[string]func(c *Config){
		"empty table name":     func(c *Config) { c.TableName = "" },
		"same hash and range":  func(c *Config) { c.HashKey = c.RangeKey },
		"time as hash key":     func(c *Config) { c.HashKey = models.AttrTime; c.RangeKey = "seq" },
		"bool hash type":       func(c *Config) { c.HashType = models.TypeBoolean },
		"string time range":    func(c *Config) { c.RangeType = models.TypeString },
		"too large batch":      func(c *Config) { c.BatchSize = 26 },
		"zero interval":        func(c *Config) { c.SendInterval = 0 },
		"zero capacity":        func(c *Config) { c.WriteCapacity = 0 },
		"negative max retries": func(c *Config) { c.MaxRetries = -1 },
	}

	for title, modify := range cases {
		t.Run(title, func(tt *testing.T) {
			cfg := base
			modify(&cfg)
			assert.Error(tt, cfg.validate())
		})
	}
}

func TestNewBuildsDynamoRepository(t *testing.T) {
	s, err := New(&Options{
		TableName:  "logs",
		Region:     "ap-northeast-1",
		Endpoint:   "http://localhost:8000",
		MaxRetries: aws.Int(1),
	})
	require.NoError(t, err)

	var given []adaptor.SessionConfig
	s.newSession = func(cfg adaptor.SessionConfig) (*session.Session, error) {
		given = append(given, cfg)
		return adaptor.NewSession(cfg)
	}

	s.mutex.Lock()
	err = s.prepare()
	s.mutex.Unlock()
	require.NoError(t, err)

	assert.IsType(t, &repository.TableDynamoDB{}, s.repo)
	assert.True(t, s.locked)
	assert.Equal(t, []adaptor.SessionConfig{{
		Region:     "ap-northeast-1",
		Endpoint:   "http://localhost:8000",
		MaxRetries: 1,
	}}, given)
	require.NoError(t, s.Close(context.Background()))
}

func TestNewSessionError(t *testing.T) {
	s, err := New(&Options{TableName: "logs"})
	require.NoError(t, err)
	s.newSession = func(cfg adaptor.SessionConfig) (*session.Session, error) {
		return nil, errors.New("no credentials")
	}

	err = s.Put(context.Background(), map[string]interface{}{"msg": "m1"})
	assert.NoError(t, err)
	err = s.Flush(context.Background())
	require.Error(t, err)
	assert.Nil(t, s.repo)
	assert.False(t, s.locked)
	assert.Equal(t, 1, s.Len())

	// Close stops the timer even if the final flush fails.
	assert.Error(t, s.Close(context.Background()))
	assert.Equal(t, models.ErrClosed, s.Put(context.Background(), map[string]interface{}{"msg": "m2"}))
}

func TestSetConfigRetiresTicker(t *testing.T) {
	s, err := newStream(nil, &Options{TableName: "logs", SendInterval: time.Hour})
	require.NoError(t, err)

	first := s.timer
	require.NoError(t, s.SetConfig(&Options{SendInterval: time.Minute}))
	second := s.timer
	require.NoError(t, s.SetConfig(&Options{SendInterval: time.Second}))
	assert.NotEqual(t, first, s.timer)
	assert.NotEqual(t, second, s.timer)

	require.NoError(t, s.Close(context.Background()))
	for _, ticker := range []*ticker{first, second, s.timer} {
		assert.True(t, ticker.Done())
	}
	assert.Nil(t, s.retired)
}
