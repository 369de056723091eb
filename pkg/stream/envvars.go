package stream

import (
	"strconv"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
)

// EnvVars has environment variables to configure Stream.
type EnvVars struct {
	TableName     string `env:"DYNAMOSTREAM_TABLE_NAME"`
	HashKey       string `env:"DYNAMOSTREAM_HASH_KEY"`
	HashType      string `env:"DYNAMOSTREAM_HASH_TYPE"`
	RangeKey      string `env:"DYNAMOSTREAM_RANGE_KEY"`
	RangeType     string `env:"DYNAMOSTREAM_RANGE_TYPE"`
	ReadCapacity  int    `env:"DYNAMOSTREAM_READ_CAPACITY"`
	WriteCapacity int    `env:"DYNAMOSTREAM_WRITE_CAPACITY"`
	BatchSize     int    `env:"DYNAMOSTREAM_BATCH_SIZE"`
	SendInterval  string `env:"DYNAMOSTREAM_SEND_INTERVAL"`
	Hostname      string `env:"DYNAMOSTREAM_HOSTNAME"`
	Debug         string `env:"DYNAMOSTREAM_DEBUG"`
	Trace         string `env:"DYNAMOSTREAM_TRACE"`

	Endpoint   string `env:"DYNAMOSTREAM_ENDPOINT"`
	MaxRetries string `env:"DYNAMOSTREAM_MAX_RETRIES"`
	AwsRegion  string `env:"AWS_REGION"`
}

// BindEnvVars loads environment variables and set them to EnvVars
func (x *EnvVars) BindEnvVars() error {
	if _, err := env.UnmarshalFromEnviron(x); err != nil {
		return errors.Wrap(err, "Failed UnmarshalFromEnviron")
	}
	return nil
}

// Options converts EnvVars to Options. Empty variables are left as unset.
func (x *EnvVars) Options() (*Options, error) {
	opts := &Options{
		TableName:     x.TableName,
		HashKey:       x.HashKey,
		HashType:      models.TypeTag(x.HashType),
		RangeKey:      x.RangeKey,
		RangeType:     models.TypeTag(x.RangeType),
		ReadCapacity:  int64(x.ReadCapacity),
		WriteCapacity: int64(x.WriteCapacity),
		BatchSize:     x.BatchSize,
		Region:        x.AwsRegion,
		Endpoint:      x.Endpoint,
	}

	if x.SendInterval != "" {
		d, err := time.ParseDuration(x.SendInterval)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid DYNAMOSTREAM_SEND_INTERVAL: %s", x.SendInterval)
		}
		opts.SendInterval = d
	}

	if x.MaxRetries != "" {
		n, err := strconv.Atoi(x.MaxRetries)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid DYNAMOSTREAM_MAX_RETRIES: %s", x.MaxRetries)
		}
		opts.MaxRetries = &n
	}

	flags := []struct {
		name  string
		value string
		dst   **bool
	}{
		{"DYNAMOSTREAM_HOSTNAME", x.Hostname, &opts.Hostname},
		{"DYNAMOSTREAM_DEBUG", x.Debug, &opts.Debug},
		{"DYNAMOSTREAM_TRACE", x.Trace, &opts.Trace},
	}
	for _, flag := range flags {
		if flag.value == "" {
			continue
		}
		b, err := strconv.ParseBool(flag.value)
		if err != nil {
			return nil, errors.Wrapf(err, "Invalid %s: %s", flag.name, flag.value)
		}
		*flag.dst = &b
	}

	return opts, nil
}

// OptionsFromEnv builds Options from environment variables.
func OptionsFromEnv() (*Options, error) {
	var vars EnvVars
	if err := vars.BindEnvVars(); err != nil {
		return nil, err
	}
	return vars.Options()
}
