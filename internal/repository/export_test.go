package repository

import "github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"

// NewTableDynamoDBWithClient builds TableDynamoDB without guregu/dynamo for testing.
func NewTableDynamoDBWithClient(client dynamodbiface.DynamoDBAPI) *TableDynamoDB {
	return newTableDynamoDB(client, nil)
}
