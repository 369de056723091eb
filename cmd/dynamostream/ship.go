package main

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/k0kubun/pp"
	"github.com/m-mizutani/dynamostream/internal"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/m-mizutani/dynamostream/pkg/stream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	cli "github.com/urfave/cli/v2"
)

const maxLineSize = 1024 * 1024

// options merges command line flags onto options from environment variables.
func (x *arguments) options(c *cli.Context) (*stream.Options, error) {
	opts, err := stream.OptionsFromEnv()
	if err != nil {
		return nil, err
	}

	if c.IsSet("table-name") {
		opts.TableName = x.TableName
	}
	if c.IsSet("hash-key") {
		opts.HashKey = x.HashKey
	}
	if c.IsSet("hash-type") {
		opts.HashType = models.TypeTag(x.HashType)
	}
	if c.IsSet("range-key") {
		opts.RangeKey = x.RangeKey
	}
	if c.IsSet("range-type") {
		opts.RangeType = models.TypeTag(x.RangeType)
	}
	if c.IsSet("read-capacity") {
		opts.ReadCapacity = x.ReadCapacity
	}
	if c.IsSet("write-capacity") {
		opts.WriteCapacity = x.WriteCapacity
	}
	if c.IsSet("batch-size") {
		opts.BatchSize = x.BatchSize
	}
	if c.IsSet("send-interval") {
		opts.SendInterval = x.SendInterval
	}
	if c.IsSet("no-hostname") {
		opts.Hostname = aws.Bool(!x.NoHostname)
	}
	if c.IsSet("debug") {
		opts.Debug = aws.Bool(x.Debug)
	}
	if c.IsSet("trace") {
		opts.Trace = aws.Bool(x.Trace)
	}
	if c.IsSet("region") {
		opts.Region = x.Region
	}
	if c.IsSet("endpoint") {
		opts.Endpoint = x.Endpoint
	}
	if c.IsSet("max-retries") {
		opts.MaxRetries = aws.Int(x.MaxRetries)
	}

	return opts, nil
}

func shipHandler(c *cli.Context, args *arguments) error {
	opts, err := args.options(c)
	if err != nil {
		return err
	}

	s, err := stream.New(opts)
	if err != nil {
		return err
	}

	cfg := s.Config()
	logger.WithFields(logrus.Fields{
		"table":   cfg.TableName,
		"region":  cfg.Region,
		"dry-run": args.DryRun,
	}).Info("Start shipping logs")

	ctx := context.Background()
	put := func(line []byte) error { return s.Put(ctx, line) }
	if args.DryRun {
		put = func(line []byte) error {
			item, err := s.Encode(line)
			if err != nil || item == nil {
				return err
			}
			_, err = pp.Println(item)
			return err
		}
	}

	files := c.Args().Slice()
	if len(files) == 0 {
		files = []string{"-"}
	}

	var total int
	for _, fpath := range files {
		n, err := shipFile(fpath, put)
		total += n
		if err != nil {
			s.Close(ctx)
			return err
		}
	}

	if err := s.Close(ctx); err != nil {
		return errors.Wrap(err, "Failed to flush logs")
	}

	logger.WithField("records", total).Info("Done")
	return nil
}

func shipFile(fpath string, put func(line []byte) error) (int, error) {
	var r io.Reader
	if fpath == "-" {
		r = os.Stdin
	} else {
		fd, err := os.Open(fpath)
		if err != nil {
			return 0, errors.Wrapf(err, "Failed to open %s", fpath)
		}
		defer fd.Close()
		r = fd
	}

	return shipLines(r, put, logger.WithField("file", fpath))
}

// shipLines calls put for each line. Invalid records are reported and skipped.
func shipLines(r io.Reader, put func(line []byte) error, log *logrus.Entry) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var count, lineNo int
	for scanner.Scan() {
		lineNo++
		if err := put(scanner.Bytes()); err != nil {
			if errors.Is(err, models.ErrInvalidRecord) || errors.Is(err, models.ErrMissingHashKey) {
				internal.HandleError(err, log.WithField("line", lineNo))
				continue
			}
			if errors.Is(err, models.ErrClosed) {
				return count, err
			}
			// Recoverable errors keep the record in the buffer.
			log.WithError(err).WithField("line", lineNo).Warn("Failed to send, retry later")
		}
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, errors.Wrap(err, "Failed to read logs")
	}

	return count, nil
}
