package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/m-mizutani/dynamostream/internal"
	"github.com/m-mizutani/dynamostream/internal/adaptor"
	"github.com/m-mizutani/dynamostream/internal/repository"
	"github.com/m-mizutani/dynamostream/internal/service"
	"github.com/m-mizutani/dynamostream/internal/transform"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stream buffers log records and writes them to a DynamoDB table by BatchWriteItem.
// Items are sent when the buffer reaches BatchSize or every SendInterval.
type Stream struct {
	config Config
	locked bool

	logger  *logrus.Logger
	encoder *transform.Encoder
	buffer  *service.Buffer

	repo       repository.TableRepository
	newSession adaptor.SessionFactory
	tables     *service.TableService
	batch      *service.BatchService

	timer    *ticker
	retired  []*ticker
	draining bool
	closed   bool
	mutex    sync.Mutex
	inFlight sync.WaitGroup

	pending    []byte
	writeMutex sync.Mutex
}

// New creates Stream writing to DynamoDB. The client is created with Region, Endpoint and
// MaxRetries at the first send.
func New(opts *Options) (*Stream, error) {
	return newStream(nil, opts)
}

// NewWithRepository creates Stream with a given table repository.
func NewWithRepository(repo repository.TableRepository, opts *Options) (*Stream, error) {
	return newStream(repo, opts)
}

func newStream(repo repository.TableRepository, opts *Options) (*Stream, error) {
	cfg, _ := DefaultConfig().merge(opts, false)
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid stream options")
	}

	x := &Stream{
		buffer:     service.NewBuffer(),
		repo:       repo,
		newSession: adaptor.NewSession,
	}
	x.applyConfig(cfg)
	x.timer = startTicker(cfg.SendInterval, x.onTick)

	return x, nil
}

func (x *Stream) newDynamoRepository(cfg Config) (repository.TableRepository, error) {
	ssn, err := x.newSession(adaptor.SessionConfig{
		Region:     cfg.Region,
		Endpoint:   cfg.Endpoint,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	return repository.NewTableDynamoDB(ssn), nil
}

// applyConfig must be called with mutex.
func (x *Stream) applyConfig(cfg Config) {
	x.config = cfg
	if x.logger == nil {
		x.logger = internal.NewLogger(cfg.Debug, cfg.Trace)
	} else {
		// services share the logger, so only the level is changed
		x.logger.SetLevel(internal.NewLogger(cfg.Debug, cfg.Trace).GetLevel())
	}
	x.encoder = transform.NewEncoder(transform.EncoderArguments{
		HashKey:        cfg.HashKey,
		HashType:       cfg.HashType,
		RangeKey:       cfg.RangeKey,
		RangeType:      cfg.RangeType,
		EnableHostname: cfg.Hostname,
	})
	if x.batch != nil {
		x.batch.SetBatchSize(cfg.BatchSize)
	}
}

// Config returns a copy of current configuration.
func (x *Stream) Config() Config {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.config
}

// SetConfig updates configuration and restarts the send timer. Once an item is buffered
// or provisioning of the table started, changes of table identity and AWS settings are
// ignored with warning.
func (x *Stream) SetConfig(opts *Options) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if x.closed {
		return models.ErrClosed
	}

	// Buffered items are already encoded with current keys.
	locked := x.locked || x.buffer.Len() > 0
	next, dropped := x.config.merge(opts, locked)
	if err := next.validate(); err != nil {
		return errors.Wrap(err, "Invalid stream options")
	}

	x.applyConfig(next)
	for _, field := range dropped {
		x.logger.WithField("field", field).Warn("Config is locked after items are buffered or provisioning started, ignored")
	}

	x.timer.Stop()
	running := x.retired[:0]
	for _, t := range x.retired {
		if !t.Done() {
			running = append(running, t)
		}
	}
	x.retired = append(running, x.timer)
	x.timer = startTicker(next.SendInterval, x.onTick)
	return nil
}

// Put enqueues a log record and sends a batch if the buffer is full. record can be
// models.LogRecord, map[string]interface{}, []byte or string of JSON, or a struct that can be
// marshaled to JSON object. A returned error other than ErrMissingHashKey, ErrInvalidRecord or
// ErrClosed means the record is kept in the buffer and will be retried.
func (x *Stream) Put(ctx context.Context, record interface{}) error {
	x.mutex.Lock()
	if x.closed {
		x.mutex.Unlock()
		return models.ErrClosed
	}

	// Encode and push under the lock so that keys can not change in between.
	item, err := encode(x.encoder, record)
	if err == nil && item != nil {
		x.buffer.Push(item)
	}
	x.mutex.Unlock()

	if err != nil || item == nil {
		return err
	}
	return x.drain(ctx, false)
}

// Encode converts record to Item with current configuration without buffering it.
// Blank serialized record returns nil.
func (x *Stream) Encode(record interface{}) (models.Item, error) {
	x.mutex.Lock()
	encoder := x.encoder
	x.mutex.Unlock()

	return encode(encoder, record)
}

func encode(encoder *transform.Encoder, record interface{}) (models.Item, error) {
	rec, err := toRecord(encoder, record)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return encoder.Encode(rec)
}

func toRecord(encoder *transform.Encoder, record interface{}) (models.LogRecord, error) {
	switch v := record.(type) {
	case models.LogRecord:
		return v, nil
	case map[string]interface{}:
		return models.LogRecord(v), nil
	case []byte:
		return encoder.Decode(v)
	case string:
		return encoder.Decode([]byte(v))
	case nil:
		return nil, models.WithKind(models.ErrInvalidRecord, errors.New("nil record"))
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, models.WithKind(models.ErrInvalidRecord, errors.Wrap(err, "Failed json.Marshal"))
		}
		return encoder.Decode(raw)
	}
}

// Write implements io.Writer for newline delimited JSON. Incomplete last line is kept until
// next Write. Errors of each record are logged and the first one is returned.
func (x *Stream) Write(p []byte) (int, error) {
	x.writeMutex.Lock()
	defer x.writeMutex.Unlock()

	data := append(x.pending, p...)
	x.pending = nil

	var firstErr error
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := data[:idx]
		data = data[idx+1:]

		if err := x.Put(context.Background(), line); err != nil {
			x.log().WithError(err).WithField("line", string(line)).Warn("Failed to put record")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if len(data) > 0 {
		x.pending = append([]byte{}, data...)
	}

	return len(p), firstErr
}

// Flush sends all buffered items. It stops when the buffer is empty, when no progress is made
// (e.g. unprocessed items or other drain in flight), or at the first error.
func (x *Stream) Flush(ctx context.Context) error {
	x.mutex.Lock()
	closed := x.closed
	x.mutex.Unlock()
	if closed {
		return models.ErrClosed
	}

	for x.buffer.Len() > 0 {
		before := x.buffer.Len()
		if err := x.drain(ctx, true); err != nil {
			return err
		}
		if x.buffer.Len() >= before {
			return nil
		}
	}
	return nil
}

func (x *Stream) log() *logrus.Entry {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.logger.WithField("table", x.config.TableName)
}

// Len returns number of buffered items.
func (x *Stream) Len() int {
	return x.buffer.Len()
}

// TableState returns provisioning state of the table.
func (x *Stream) TableState() models.TableState {
	x.mutex.Lock()
	tables := x.tables
	x.mutex.Unlock()

	if tables == nil {
		return models.TableUnknown
	}
	return tables.State()
}

func (x *Stream) onTick() {
	if err := x.drain(context.Background(), true); err != nil {
		if errors.Is(err, models.ErrClosed) {
			return
		}
		internal.HandleError(err, x.log())
	}
}

// prepare locks configuration and builds services at the first drain. It must be called with mutex.
func (x *Stream) prepare() error {
	if x.tables != nil {
		return nil
	}

	if x.repo == nil {
		repo, err := x.newDynamoRepository(x.config)
		if err != nil {
			return err
		}
		x.repo = repo
	}

	x.locked = true
	x.tables = service.NewTableService(x.repo, &service.TableServiceArguments{
		Schema: x.config.schema(),
		Logger: x.logger,
	})
	x.batch = service.NewBatchService(x.repo, x.buffer, &service.BatchServiceArguments{
		TableName: x.config.TableName,
		BatchSize: x.config.BatchSize,
		Logger:    x.logger,
	})
	return nil
}

// drain sends one batch if forced or the buffer has BatchSize items. It is no-op while
// another drain is in flight.
func (x *Stream) drain(ctx context.Context, force bool) error {
	x.mutex.Lock()
	if x.closed {
		x.mutex.Unlock()
		return models.ErrClosed
	}
	if x.draining {
		logger := x.logger
		x.mutex.Unlock()
		logger.Trace("Drain is already in flight")
		return nil
	}

	n := x.buffer.Len()
	if n == 0 || (!force && n < x.config.BatchSize) {
		x.mutex.Unlock()
		return nil
	}

	if err := x.prepare(); err != nil {
		x.mutex.Unlock()
		return err
	}

	x.draining = true
	x.inFlight.Add(1)
	tables, batch, logger := x.tables, x.batch, x.logger
	x.mutex.Unlock()

	defer func() {
		x.mutex.Lock()
		x.draining = false
		x.mutex.Unlock()
		x.inFlight.Done()
	}()

	return send(ctx, tables, batch, logger)
}

func send(ctx context.Context, tables *service.TableService, batch *service.BatchService, logger *logrus.Logger) error {
	if _, err := tables.EnsureTable(ctx); err != nil {
		return err
	}

	sent, unprocessed, err := batch.Send(ctx)
	if err != nil {
		if errors.Is(err, models.ErrTableNotFound) {
			tables.Reset()
		}
		return err
	}

	logger.WithFields(logrus.Fields{
		"sent":        sent,
		"unprocessed": unprocessed,
	}).Trace("Drained buffer")
	return nil
}

// Close stops the timer, waits for in-flight drain and sends remaining items once.
// Put and SetConfig return ErrClosed after Close.
func (x *Stream) Close(ctx context.Context) error {
	x.mutex.Lock()
	if x.closed {
		x.mutex.Unlock()
		return models.ErrClosed
	}
	x.closed = true
	x.timer.Stop()
	timers := append(x.retired, x.timer)
	x.retired = nil
	x.mutex.Unlock()

	for _, t := range timers {
		t.Wait()
	}
	x.inFlight.Wait()

	if x.buffer.Len() == 0 {
		return nil
	}

	x.mutex.Lock()
	err := x.prepare()
	tables, batch, logger := x.tables, x.batch, x.logger
	x.mutex.Unlock()
	if err != nil {
		return err
	}

	for x.buffer.Len() > 0 {
		before := x.buffer.Len()
		if err := send(ctx, tables, batch, logger); err != nil {
			logger.WithError(err).WithField("remains", x.buffer.Len()).Error("Failed to flush buffer on close")
			return err
		}
		if x.buffer.Len() >= before {
			break
		}
	}

	if remains := x.buffer.Len(); remains > 0 {
		logger.WithField("remains", remains).Warn("Items are left in buffer on close")
	}

	return nil
}
