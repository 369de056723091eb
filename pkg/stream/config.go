package stream

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/dynamostream/internal/service"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
)

// Default values of Config
const (
	DefaultRegion        = "us-east-1"
	DefaultMaxRetries    = 15
	DefaultHashKey       = "id"
	DefaultHashType      = models.TypeString
	DefaultRangeKey      = models.AttrTime
	DefaultRangeType     = models.TypeNumber
	DefaultReadCapacity  = 5
	DefaultWriteCapacity = 5
	DefaultBatchSize     = service.MaxBatchSize
	DefaultSendInterval  = 5 * time.Second
)

// Options is given to New and SetConfig. Zero value of each field means "keep current value"
// (or default value in New).
type Options struct {
	TableName     string
	HashKey       string
	HashType      models.TypeTag
	RangeKey      string
	RangeType     models.TypeTag
	ReadCapacity  int64
	WriteCapacity int64

	BatchSize    int
	SendInterval time.Duration

	// Hostname, Debug and Trace are pointer to distinguish false from unset. Use aws.Bool.
	Hostname *bool
	Debug    *bool
	Trace    *bool

	Region     string
	Endpoint   string
	MaxRetries *int
}

// Config is resolved configuration of Stream.
type Config struct {
	TableName     string
	HashKey       string
	HashType      models.TypeTag
	RangeKey      string
	RangeType     models.TypeTag
	ReadCapacity  int64
	WriteCapacity int64

	BatchSize    int
	SendInterval time.Duration
	Hostname     bool
	Debug        bool
	Trace        bool

	Region     string
	Endpoint   string
	MaxRetries int
}

// DefaultConfig returns Config with default values.
func DefaultConfig() Config {
	return Config{
		TableName:     buildTableName(os.Getenv("APP_NAME"), hostname(), os.Getenv("PORT")),
		HashKey:       DefaultHashKey,
		HashType:      DefaultHashType,
		RangeKey:      DefaultRangeKey,
		RangeType:     DefaultRangeType,
		ReadCapacity:  DefaultReadCapacity,
		WriteCapacity: DefaultWriteCapacity,
		BatchSize:     DefaultBatchSize,
		SendInterval:  DefaultSendInterval,
		Hostname:      true,
		Region:        DefaultRegion,
		MaxRetries:    DefaultMaxRetries,
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}

// buildTableName returns "<appName>_<host>_<port>". appName and port are omitted if empty
// and random UUID is used instead of empty host.
func buildTableName(appName, host, port string) string {
	var parts []string
	if appName != "" {
		parts = append(parts, appName)
	}
	if host != "" {
		parts = append(parts, host)
	} else {
		parts = append(parts, uuid.New().String())
	}
	if port != "" {
		parts = append(parts, port)
	}
	return strings.Join(parts, "_")
}

// merge applies opts to a copy of x. If locked is true, changes of table identity and AWS
// settings are not applied and names of such fields are returned.
func (x Config) merge(opts *Options, locked bool) (Config, []string) {
	next := x
	if opts == nil {
		return next, nil
	}

	var dropped []string
	setLocked := func(name string, changed bool, apply func()) {
		if !changed {
			return
		}
		if locked {
			dropped = append(dropped, name)
			return
		}
		apply()
	}

	setLocked("TableName", opts.TableName != "" && opts.TableName != x.TableName, func() { next.TableName = opts.TableName })
	setLocked("HashKey", opts.HashKey != "" && opts.HashKey != x.HashKey, func() { next.HashKey = opts.HashKey })
	setLocked("HashType", opts.HashType != "" && opts.HashType != x.HashType, func() { next.HashType = opts.HashType })
	setLocked("RangeKey", opts.RangeKey != "" && opts.RangeKey != x.RangeKey, func() { next.RangeKey = opts.RangeKey })
	setLocked("RangeType", opts.RangeType != "" && opts.RangeType != x.RangeType, func() { next.RangeType = opts.RangeType })
	setLocked("ReadCapacity", opts.ReadCapacity != 0 && opts.ReadCapacity != x.ReadCapacity, func() { next.ReadCapacity = opts.ReadCapacity })
	setLocked("WriteCapacity", opts.WriteCapacity != 0 && opts.WriteCapacity != x.WriteCapacity, func() { next.WriteCapacity = opts.WriteCapacity })
	setLocked("Region", opts.Region != "" && opts.Region != x.Region, func() { next.Region = opts.Region })
	setLocked("Endpoint", opts.Endpoint != "" && opts.Endpoint != x.Endpoint, func() { next.Endpoint = opts.Endpoint })
	setLocked("MaxRetries", opts.MaxRetries != nil && *opts.MaxRetries != x.MaxRetries, func() { next.MaxRetries = *opts.MaxRetries })

	if opts.BatchSize != 0 {
		next.BatchSize = opts.BatchSize
	}
	if opts.SendInterval != 0 {
		next.SendInterval = opts.SendInterval
	}
	if opts.Hostname != nil {
		next.Hostname = *opts.Hostname
	}
	if opts.Debug != nil {
		next.Debug = *opts.Debug
	}
	if opts.Trace != nil {
		next.Trace = *opts.Trace
	}

	return next, dropped
}

func (x Config) validate() error {
	if x.TableName == "" {
		return errors.New("TableName is required")
	}
	if x.HashKey == "" {
		return errors.New("HashKey is required")
	}
	if x.RangeKey == "" {
		return errors.New("RangeKey is required")
	}
	if x.HashKey == models.AttrTime {
		return fmt.Errorf("%s can not be HashKey", models.AttrTime)
	}
	if x.HashKey == x.RangeKey {
		return fmt.Errorf("HashKey and RangeKey must be different: %s", x.HashKey)
	}
	if !x.HashType.IsKeyType() {
		return fmt.Errorf("Invalid HashType: %s", x.HashType)
	}
	if !x.RangeType.IsKeyType() {
		return fmt.Errorf("Invalid RangeType: %s", x.RangeType)
	}
	if x.RangeKey == models.AttrTime && x.RangeType != models.TypeNumber {
		return fmt.Errorf("RangeType of %s must be N", models.AttrTime)
	}
	if x.BatchSize < 1 || x.BatchSize > service.MaxBatchSize {
		return fmt.Errorf("BatchSize must be 1 to %d: %d", service.MaxBatchSize, x.BatchSize)
	}
	if x.SendInterval <= 0 {
		return fmt.Errorf("SendInterval must be positive: %v", x.SendInterval)
	}
	if x.ReadCapacity < 1 || x.WriteCapacity < 1 {
		return fmt.Errorf("Capacity must be positive: read=%d write=%d", x.ReadCapacity, x.WriteCapacity)
	}
	if x.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries must not be negative: %d", x.MaxRetries)
	}

	return nil
}

func (x Config) schema() models.TableSchema {
	return models.TableSchema{
		TableName:     x.TableName,
		HashKey:       x.HashKey,
		HashType:      x.HashType,
		RangeKey:      x.RangeKey,
		RangeType:     x.RangeType,
		ReadCapacity:  x.ReadCapacity,
		WriteCapacity: x.WriteCapacity,
	}
}
