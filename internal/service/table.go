package service

import (
	"context"
	"sync"

	"github.com/m-mizutani/dynamostream/internal"
	"github.com/m-mizutani/dynamostream/internal/repository"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// TableService ensures that the destination table exists before items are sent.
type TableService struct {
	repo   repository.TableRepository
	schema models.TableSchema
	logger *logrus.Logger

	// provisionMutex serializes EnsureTable. stateMutex only guards state
	// so that State and Reset do not wait for provisioning.
	provisionMutex sync.Mutex
	stateMutex     sync.Mutex
	state          models.TableState
}

// TableServiceArguments is options of NewTableService
type TableServiceArguments struct {
	Schema models.TableSchema
	Logger *logrus.Logger
}

// NewTableService is constructor of TableService
func NewTableService(repo repository.TableRepository, args *TableServiceArguments) *TableService {
	service := &TableService{
		repo:   repo,
		schema: args.Schema,
		logger: args.Logger,
		state:  models.TableUnknown,
	}

	if service.logger == nil {
		service.logger = internal.Logger
	}

	return service
}

// State returns current state of the table. It does not block while the table is being created.
func (x *TableService) State() models.TableState {
	x.stateMutex.Lock()
	defer x.stateMutex.Unlock()
	return x.state
}

func (x *TableService) setState(state models.TableState) models.TableState {
	x.stateMutex.Lock()
	defer x.stateMutex.Unlock()
	x.state = state
	return state
}

// Reset forgets readiness of the table so that it is probed again in next EnsureTable.
func (x *TableService) Reset() {
	x.stateMutex.Lock()
	prev := x.state
	x.state = models.TableUnknown
	x.stateMutex.Unlock()

	if prev != models.TableUnknown {
		x.logger.WithField("table", x.schema.TableName).Warn("Table state is reset")
	}
}

// EnsureTable looks up the table and creates it if not found. Calls are serialized,
// so concurrent callers issue CreateTable at most once.
func (x *TableService) EnsureTable(ctx context.Context) (models.TableState, error) {
	x.provisionMutex.Lock()
	defer x.provisionMutex.Unlock()

	if state := x.State(); state == models.TableReady {
		return state, nil
	}

	log := x.logger.WithField("table", x.schema.TableName)

	names, err := x.repo.ListTables(ctx)
	if err != nil {
		return x.State(), models.WithKind(models.ErrProvisionTable, errors.Wrap(err, "Failed to list tables"))
	}

	for _, name := range names {
		if name == x.schema.TableName {
			log.Debug("Table already exists")
			return x.setState(models.TableReady), nil
		}
	}

	x.setState(models.TableCreating)
	log.WithFields(logrus.Fields{
		"hashKey":  x.schema.HashKey,
		"rangeKey": x.schema.RangeKey,
	}).Info("Creating table")

	if err := x.repo.CreateTable(ctx, &x.schema); err != nil {
		if !errors.Is(err, models.ErrTableAlreadyExists) {
			return x.setState(models.TableUnknown), models.WithKind(models.ErrProvisionTable, err)
		}
		log.Debug("Table is already being created")
	}

	if err := x.repo.WaitUntilActive(ctx, x.schema.TableName); err != nil {
		return x.setState(models.TableUnknown), models.WithKind(models.ErrProvisionTable, err)
	}

	log.Info("Table is active")
	return x.setState(models.TableReady), nil
}
