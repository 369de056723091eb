package main

import (
	"os"
	"time"

	"github.com/m-mizutani/dynamostream/internal"
	cli "github.com/urfave/cli/v2"
)

var logger = internal.Logger

type arguments struct {
	TableName     string
	HashKey       string
	HashType      string
	RangeKey      string
	RangeType     string
	ReadCapacity  int64
	WriteCapacity int64
	BatchSize     int
	SendInterval  time.Duration
	NoHostname    bool
	Debug         bool
	Trace         bool

	Region     string
	Endpoint   string
	MaxRetries int

	DryRun    bool
	SentryDSN string
	SentryEnv string
	LogLevel  string
}

func main() {
	var args arguments

	app := &cli.App{
		Name:      "dynamostream",
		Usage:     "Ship newline delimited JSON logs to DynamoDB",
		ArgsUsage: "[file ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "table-name",
				Aliases:     []string{"t"},
				Usage:       "DynamoDB table name (default: <APP_NAME>_<hostname>_<PORT>)",
				Destination: &args.TableName,
			},
			&cli.StringFlag{
				Name:        "hash-key",
				Usage:       "Hash key name",
				Destination: &args.HashKey,
			},
			&cli.StringFlag{
				Name:        "hash-type",
				Usage:       "Hash key type (S, N or B)",
				Destination: &args.HashType,
			},
			&cli.StringFlag{
				Name:        "range-key",
				Usage:       "Range key name",
				Destination: &args.RangeKey,
			},
			&cli.StringFlag{
				Name:        "range-type",
				Usage:       "Range key type (S, N or B)",
				Destination: &args.RangeType,
			},
			&cli.Int64Flag{
				Name:        "read-capacity",
				Usage:       "Read capacity units of a new table",
				Destination: &args.ReadCapacity,
			},
			&cli.Int64Flag{
				Name:        "write-capacity",
				Usage:       "Write capacity units of a new table",
				Destination: &args.WriteCapacity,
			},
			&cli.IntFlag{
				Name:        "batch-size",
				Aliases:     []string{"b"},
				Usage:       "Number of items in one BatchWriteItem (1-25)",
				Destination: &args.BatchSize,
			},
			&cli.DurationFlag{
				Name:        "send-interval",
				Aliases:     []string{"i"},
				Usage:       "Interval to send buffered items",
				Destination: &args.SendInterval,
			},
			&cli.BoolFlag{
				Name:        "no-hostname",
				Usage:       "Do not store hostname attribute",
				Destination: &args.NoHostname,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "Enable debug log of the stream",
				Destination: &args.Debug,
			},
			&cli.BoolFlag{
				Name:        "trace",
				Usage:       "Enable trace log of the stream",
				Destination: &args.Trace,
			},
			&cli.StringFlag{
				Name:        "region",
				Aliases:     []string{"r"},
				Usage:       "AWS region",
				Destination: &args.Region,
			},
			&cli.StringFlag{
				Name:        "endpoint",
				Aliases:     []string{"e"},
				Usage:       "Custom DynamoDB endpoint (e.g. DynamoDB Local)",
				Destination: &args.Endpoint,
			},
			&cli.IntFlag{
				Name:        "max-retries",
				Usage:       "Max retries of AWS SDK",
				Destination: &args.MaxRetries,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Aliases:     []string{"n"},
				Usage:       "Print encoded items instead of sending them",
				Destination: &args.DryRun,
			},

			&cli.StringFlag{
				Name:        "sentry-dsn",
				EnvVars:     []string{"SENTRY_DSN"},
				Destination: &args.SentryDSN,
			},
			&cli.StringFlag{
				Name:        "sentry-env",
				EnvVars:     []string{"SENTRY_ENVIRONMENT"},
				Destination: &args.SentryEnv,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				EnvVars:     []string{"LOG_LEVEL"},
				Destination: &args.LogLevel,
			},
		},
		Action: func(c *cli.Context) error {
			internal.SetLogLevel(args.LogLevel)
			if err := internal.InitErrorHandler(args.SentryDSN, args.SentryEnv); err != nil {
				return err
			}
			defer internal.FlushError()

			return shipHandler(c, &args)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("Abort")
	}
}
