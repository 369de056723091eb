package repository

import (
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

func hasErrCode(err error, code string) bool {
	if aerr, ok := err.(awserr.Error); ok {
		return aerr.Code() == code
	}
	return false
}

func isResourceInUseErr(err error) bool {
	return hasErrCode(err, dynamodb.ErrCodeResourceInUseException)
}

func isResourceNotFoundErr(err error) bool {
	return hasErrCode(err, dynamodb.ErrCodeResourceNotFoundException)
}
