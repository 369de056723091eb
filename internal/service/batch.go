package service

import (
	"context"
	"sync"

	"github.com/m-mizutani/dynamostream/internal"
	"github.com/m-mizutani/dynamostream/internal/repository"
	"github.com/sirupsen/logrus"
)

const (
	// MaxBatchSize is limit of items in one BatchWriteItem call.
	MaxBatchSize = 25
)

// BatchService sends items in Buffer to the table.
type BatchService struct {
	repo      repository.TableRepository
	buffer    *Buffer
	tableName string
	logger    *logrus.Logger

	batchSize int
	mutex     sync.Mutex
}

// BatchServiceArguments is options of NewBatchService
type BatchServiceArguments struct {
	TableName string
	BatchSize int
	Logger    *logrus.Logger
}

// NewBatchService is constructor of BatchService
func NewBatchService(repo repository.TableRepository, buffer *Buffer, args *BatchServiceArguments) *BatchService {
	service := &BatchService{
		repo:      repo,
		buffer:    buffer,
		tableName: args.TableName,
		logger:    args.Logger,
	}

	if service.logger == nil {
		service.logger = internal.Logger
	}
	service.SetBatchSize(args.BatchSize)

	return service
}

// SetBatchSize changes number of items per batch. Out of range value is clamped into 1..MaxBatchSize.
func (x *BatchService) SetBatchSize(n int) {
	if n <= 0 || n > MaxBatchSize {
		n = MaxBatchSize
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.batchSize = n
}

// BatchSize returns current batch size.
func (x *BatchService) BatchSize() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.batchSize
}

// Send takes items from head of the buffer and writes them by one BatchWrite call.
// Whole items are requeued on error and unprocessed items are requeued on partial success.
func (x *BatchService) Send(ctx context.Context) (sent int, unprocessed int, err error) {
	items := x.buffer.Take(x.BatchSize())
	if len(items) == 0 {
		return 0, 0, nil
	}

	log := x.logger.WithFields(logrus.Fields{
		"table": x.tableName,
		"items": len(items),
	})
	log.Trace("Sending batch")

	remains, err := x.repo.BatchWrite(ctx, x.tableName, items)
	if err != nil {
		x.buffer.Requeue(items)
		log.WithError(err).Debug("Batch is requeued")
		return 0, len(items), err
	}

	if len(remains) > 0 {
		x.buffer.Requeue(remains)
		log.WithField("unprocessed", len(remains)).Warn("Some items are not processed")
	}

	sent = len(items) - len(remains)
	log.WithField("sent", sent).Debug("Sent batch")
	return sent, len(remains), nil
}
