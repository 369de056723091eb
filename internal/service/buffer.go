package service

import (
	"sync"

	"github.com/m-mizutani/dynamostream/pkg/models"
)

// Buffer is an unbounded FIFO queue of encoded items. Requeued items are put back to the head.
type Buffer struct {
	items []models.Item
	mutex sync.Mutex
}

// NewBuffer is constructor of Buffer
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Push appends items to the tail.
func (x *Buffer) Push(items ...models.Item) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.items = append(x.items, items...)
}

// Take removes at most n items from the head and returns them.
func (x *Buffer) Take(n int) []models.Item {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if n > len(x.items) {
		n = len(x.items)
	}
	if n <= 0 {
		return nil
	}

	taken := make([]models.Item, n)
	copy(taken, x.items[:n])
	x.items = x.items[n:]
	return taken
}

// Requeue inserts items to the head keeping their order.
func (x *Buffer) Requeue(items []models.Item) {
	if len(items) == 0 {
		return
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()

	merged := make([]models.Item, 0, len(items)+len(x.items))
	merged = append(merged, items...)
	x.items = append(merged, x.items...)
}

// Len returns number of queued items.
func (x *Buffer) Len() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return len(x.items)
}
