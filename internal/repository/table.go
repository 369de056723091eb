package repository

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/guregu/dynamo"
	"github.com/m-mizutani/dynamostream/internal/util"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
)

// TableRepository is interface of the destination table store
type TableRepository interface {
	ListTables(ctx context.Context) ([]string, error)
	// CreateTable returns models.ErrTableAlreadyExists if the table is already being created.
	CreateTable(ctx context.Context, schema *models.TableSchema) error
	WaitUntilActive(ctx context.Context, tableName string) error
	// BatchWrite puts items and returns unprocessed items in order of the response.
	BatchWrite(ctx context.Context, tableName string, items []models.Item) ([]models.Item, error)
}

const (
	defaultWaitLimit = 120
)

// TableDynamoDB is implementation of TableRepository for DynamoDB
type TableDynamoDB struct {
	WaitLimit int

	client        dynamodbiface.DynamoDBAPI
	db            *dynamo.DB
	newRetryTimer util.RetryTimerFactory
}

// NewTableDynamoDB is constructor of TableDynamoDB
func NewTableDynamoDB(ssn *session.Session, cfgs ...*aws.Config) *TableDynamoDB {
	db := dynamo.New(ssn, cfgs...)
	return newTableDynamoDB(db.Client(), db)
}

func newTableDynamoDB(client dynamodbiface.DynamoDBAPI, db *dynamo.DB) *TableDynamoDB {
	return &TableDynamoDB{
		WaitLimit:     defaultWaitLimit,
		client:        client,
		db:            db,
		newRetryTimer: util.NewExpRetryTimer,
	}
}

// ListTables returns all table names in the region
func (x *TableDynamoDB) ListTables(ctx context.Context) ([]string, error) {
	var names []string
	err := x.client.ListTablesPagesWithContext(ctx, &dynamodb.ListTablesInput{},
		func(page *dynamodb.ListTablesOutput, lastPage bool) bool {
			names = append(names, aws.StringValueSlice(page.TableNames)...)
			return true
		})
	if err != nil {
		return nil, errors.Wrap(err, "Failed ListTables")
	}

	return names, nil
}

// CreateTable creates a table having hash key and optional range key
func (x *TableDynamoDB) CreateTable(ctx context.Context, schema *models.TableSchema) error {
	input := &dynamodb.CreateTableInput{
		TableName: aws.String(schema.TableName),
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String(schema.HashKey),
				AttributeType: aws.String(string(schema.HashType)),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String(schema.HashKey),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
		},
		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(schema.ReadCapacity),
			WriteCapacityUnits: aws.Int64(schema.WriteCapacity),
		},
	}

	if schema.RangeKey != "" {
		input.AttributeDefinitions = append(input.AttributeDefinitions, &dynamodb.AttributeDefinition{
			AttributeName: aws.String(schema.RangeKey),
			AttributeType: aws.String(string(schema.RangeType)),
		})
		input.KeySchema = append(input.KeySchema, &dynamodb.KeySchemaElement{
			AttributeName: aws.String(schema.RangeKey),
			KeyType:       aws.String(dynamodb.KeyTypeRange),
		})
	}

	if _, err := x.client.CreateTableWithContext(ctx, input); err != nil {
		if isResourceInUseErr(err) {
			return models.ErrTableAlreadyExists
		}
		return errors.Wrapf(err, "Failed CreateTable: %s", schema.TableName)
	}

	return nil
}

// WaitUntilActive polls status of the table until it becomes ACTIVE.
func (x *TableDynamoDB) WaitUntilActive(ctx context.Context, tableName string) error {
	if x.db == nil {
		if err := x.client.WaitUntilTableExistsWithContext(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(tableName),
		}); err != nil {
			return errors.Wrapf(err, "Failed WaitUntilTableExists: %s", tableName)
		}
		return nil
	}

	table := x.db.Table(tableName)
	timer := x.newRetryTimer(x.WaitLimit)
	err := timer.Run(ctx, func(seq int) (bool, error) {
		desc, err := table.Describe().RunWithContext(ctx)
		if err != nil {
			if isResourceNotFoundErr(err) {
				return false, nil
			}
			return false, err
		}
		return desc.Status == dynamo.ActiveStatus, nil
	})
	if err != nil {
		return errors.Wrapf(err, "Failed to wait for table: %s", tableName)
	}

	return nil
}

// BatchWrite puts items by BatchWriteItem. Up to 25 items are allowed by DynamoDB.
func (x *TableDynamoDB) BatchWrite(ctx context.Context, tableName string, items []models.Item) ([]models.Item, error) {
	if len(items) == 0 {
		return nil, nil
	}

	requests := make([]*dynamodb.WriteRequest, len(items))
	for i := range items {
		requests[i] = items[i].WriteRequest()
	}

	input := &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]*dynamodb.WriteRequest{
			tableName: requests,
		},
	}

	resp, err := x.client.BatchWriteItemWithContext(ctx, input)
	if err != nil {
		if isResourceNotFoundErr(err) {
			return nil, models.WithKind(models.ErrTableNotFound, err)
		}
		return nil, models.WithKind(models.ErrBatchWrite, err)
	}

	var unprocessed []models.Item
	for _, req := range resp.UnprocessedItems[tableName] {
		if req.PutRequest != nil {
			unprocessed = append(unprocessed, models.Item(req.PutRequest.Item))
		}
	}

	return unprocessed, nil
}
