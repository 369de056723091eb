package models

import (
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// TypeTag is DynamoDB attribute type name.
type TypeTag string

// Type tags of DynamoDB AttributeValue
const (
	TypeString    TypeTag = "S"
	TypeNumber    TypeTag = "N"
	TypeBoolean   TypeTag = "BOOL"
	TypeNull      TypeTag = "NULL"
	TypeBinary    TypeTag = "B"
	TypeMap       TypeTag = "M"
	TypeStringSet TypeTag = "SS"
	TypeNumberSet TypeTag = "NS"
	TypeBinarySet TypeTag = "BS"
	TypeList      TypeTag = "L"
)

// IsKeyType returns true if the tag can be used for hash or range key of a table.
func (x TypeTag) IsKeyType() bool {
	return x == TypeString || x == TypeNumber || x == TypeBinary
}

// Attribute names of fixed fields in a log record
const (
	AttrTime     = "time"
	AttrMessage  = "msg"
	AttrLevel    = "level"
	AttrHostname = "hostname"
	AttrPID      = "pid"
	AttrVersion  = "v"
	AttrData     = "data"
)

// LogRecord is a structured log entry given by a logger.
type LogRecord map[string]interface{}

// Item is an encoded LogRecord that can be put to DynamoDB as is.
type Item map[string]*dynamodb.AttributeValue

// WriteRequest converts Item to a PutRequest of BatchWriteItem.
func (x Item) WriteRequest() *dynamodb.WriteRequest {
	return &dynamodb.WriteRequest{
		PutRequest: &dynamodb.PutRequest{Item: x},
	}
}
