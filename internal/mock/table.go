package mock

import (
	"context"
	"sync"

	"github.com/m-mizutani/dynamostream/internal/repository"
	"github.com/m-mizutani/dynamostream/pkg/models"
)

// TableRepository is in-memory implementation of repository.TableRepository.
type TableRepository struct {
	// ListErr, CreateErr, WaitErr and BatchErr are returned by the methods if not nil.
	ListErr   error
	CreateErr error
	WaitErr   error
	BatchErr  error

	// Unprocessed is called on each BatchWrite and returns items to be reported as unprocessed.
	Unprocessed func(items []models.Item) []models.Item
	// OnCreate is called in CreateTable before the table is registered.
	OnCreate func(schema *models.TableSchema)

	ListCount   int
	CreateCount int
	WaitCount   int
	BatchCount  int

	Schemas []*models.TableSchema
	Batches [][]models.Item

	tables map[string][]models.Item
	mutex  sync.Mutex
}

// NewTableRepository is constructor of mock TableRepository.
func NewTableRepository(tables ...string) *TableRepository {
	repo := &TableRepository{tables: make(map[string][]models.Item)}
	for _, name := range tables {
		repo.tables[name] = nil
	}
	return repo
}

var _ repository.TableRepository = &TableRepository{}

// ListTables returns registered table names
func (x *TableRepository) ListTables(ctx context.Context) ([]string, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.ListCount++
	if x.ListErr != nil {
		return nil, x.ListErr
	}

	var names []string
	for name := range x.tables {
		names = append(names, name)
	}
	return names, nil
}

// CreateTable registers a table
func (x *TableRepository) CreateTable(ctx context.Context, schema *models.TableSchema) error {
	x.mutex.Lock()
	x.CreateCount++
	x.Schemas = append(x.Schemas, schema)
	createErr, onCreate := x.CreateErr, x.OnCreate
	x.mutex.Unlock()

	if createErr != nil {
		return createErr
	}
	// OnCreate is called without lock so that it can block.
	if onCreate != nil {
		onCreate(schema)
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()
	if _, ok := x.tables[schema.TableName]; ok {
		return models.ErrTableAlreadyExists
	}
	x.tables[schema.TableName] = nil
	return nil
}

// WaitUntilActive returns immediately
func (x *TableRepository) WaitUntilActive(ctx context.Context, tableName string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.WaitCount++
	return x.WaitErr
}

// BatchWrite stores items except unprocessed ones.
func (x *TableRepository) BatchWrite(ctx context.Context, tableName string, items []models.Item) ([]models.Item, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.BatchCount++
	x.Batches = append(x.Batches, items)
	if x.BatchErr != nil {
		return nil, x.BatchErr
	}

	stored, ok := x.tables[tableName]
	if !ok {
		return nil, models.WithKind(models.ErrTableNotFound, nil)
	}

	var unprocessed []models.Item
	if x.Unprocessed != nil {
		unprocessed = x.Unprocessed(items)
	}

	for _, item := range items {
		if !containsItem(unprocessed, item) {
			stored = append(stored, item)
		}
	}
	x.tables[tableName] = stored

	return unprocessed, nil
}

// DropTable removes a table to emulate deletion by other actors.
func (x *TableRepository) DropTable(tableName string) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	delete(x.tables, tableName)
}

// Items returns stored items of the table in write order.
func (x *TableRepository) Items(tableName string) []models.Item {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return append([]models.Item{}, x.tables[tableName]...)
}

// Counts returns call counts with lock for concurrent tests.
func (x *TableRepository) Counts() (list, create, wait, batch int) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.ListCount, x.CreateCount, x.WaitCount, x.BatchCount
}

func containsItem(items []models.Item, target models.Item) bool {
	for _, item := range items {
		if sameItem(item, target) {
			return true
		}
	}
	return false
}

func sameItem(a, b models.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
