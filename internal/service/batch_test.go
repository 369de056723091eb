package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/m-mizutani/dynamostream/internal/mock"
	"github.com/m-mizutani/dynamostream/internal/service"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatchService(repo *mock.TableRepository, buf *service.Buffer, batchSize int) *service.BatchService {
	return service.NewBatchService(repo, buf, &service.BatchServiceArguments{
		TableName: "logs",
		BatchSize: batchSize,
	})
}

func TestBatchServiceSend(t *testing.T) {
	t.Run("send first batchSize items", func(tt *testing.T) {
		repo := mock.NewTableRepository("logs")
		buf := service.NewBuffer()
		buf.Push(newItems(5, "a")...)
		svc := newBatchService(repo, buf, 3)

		sent, unprocessed, err := svc.Send(context.Background())
		require.NoError(tt, err)
		assert.Equal(tt, 3, sent)
		assert.Equal(tt, 0, unprocessed)
		assert.Equal(tt, 2, buf.Len())
		require.Equal(tt, 1, len(repo.Batches))
		assert.Equal(tt, []string{"a0", "a1", "a2"}, itemIDs(repo.Batches[0]))
		assert.Equal(tt, []string{"a0", "a1", "a2"}, itemIDs(repo.Items("logs")))
	})

	t.Run("empty buffer", func(tt *testing.T) {
		repo := mock.NewTableRepository("logs")
		svc := newBatchService(repo, service.NewBuffer(), 3)

		sent, unprocessed, err := svc.Send(context.Background())
		require.NoError(tt, err)
		assert.Equal(tt, 0, sent)
		assert.Equal(tt, 0, unprocessed)
		assert.Equal(tt, 0, repo.BatchCount)
	})

	t.Run("partial failure requeues unprocessed items at head", func(tt *testing.T) {
		repo := mock.NewTableRepository("logs")
		repo.Unprocessed = func(items []models.Item) []models.Item {
			return []models.Item{items[3], items[1]}
		}
		buf := service.NewBuffer()
		buf.Push(newItems(6, "a")...)
		svc := newBatchService(repo, buf, 4)

		sent, unprocessed, err := svc.Send(context.Background())
		require.NoError(tt, err)
		assert.Equal(tt, 2, sent)
		assert.Equal(tt, 2, unprocessed)

		all := buf.Take(buf.Len())
		assert.Equal(tt, []string{"a3", "a1", "a4", "a5"}, itemIDs(all))
		assert.Equal(tt, []string{"a0", "a2"}, itemIDs(repo.Items("logs")))
	})

	t.Run("transport error requeues whole batch", func(tt *testing.T) {
		repo := mock.NewTableRepository("logs")
		repo.BatchErr = models.WithKind(models.ErrBatchWrite, fmt.Errorf("connection reset"))
		buf := service.NewBuffer()
		buf.Push(newItems(4, "a")...)
		svc := newBatchService(repo, buf, 3)

		sent, unprocessed, err := svc.Send(context.Background())
		require.Error(tt, err)
		assert.True(tt, errors.Is(err, models.ErrBatchWrite))
		assert.Equal(tt, 0, sent)
		assert.Equal(tt, 3, unprocessed)

		all := buf.Take(buf.Len())
		assert.Equal(tt, []string{"a0", "a1", "a2", "a3"}, itemIDs(all))
	})

	t.Run("table not found", func(tt *testing.T) {
		repo := mock.NewTableRepository()
		buf := service.NewBuffer()
		buf.Push(newItems(2, "a")...)
		svc := newBatchService(repo, buf, 3)

		_, _, err := svc.Send(context.Background())
		assert.True(tt, errors.Is(err, models.ErrTableNotFound))
		assert.Equal(tt, 2, buf.Len())
	})
}

func TestBatchServiceBatchSize(t *testing.T) {
	svc := newBatchService(mock.NewTableRepository(), service.NewBuffer(), 0)
	assert.Equal(t, service.MaxBatchSize, svc.BatchSize())

	svc.SetBatchSize(100)
	assert.Equal(t, service.MaxBatchSize, svc.BatchSize())

	svc.SetBatchSize(7)
	assert.Equal(t, 7, svc.BatchSize())
}
