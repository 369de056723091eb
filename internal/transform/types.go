package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/m-mizutani/dynamostream/pkg/models"
)

var (
	typeOfBytes      = reflect.TypeOf([]byte(nil))
	typeOfJSONNumber = reflect.TypeOf(json.Number(""))
)

// DetectType returns DynamoDB type of a value based on its Go type.
//
// Arrays and objects are inferred shallowly. An empty array, an array having
// elements of multiple types and a map having non-string values fall back to
// TypeString, and the value is serialized as JSON by ToAttributeValue.
func DetectType(v interface{}) models.TypeTag {
	if v == nil {
		return models.TypeNull
	}
	return detectValueType(reflect.ValueOf(v))
}

func detectValueType(value reflect.Value) models.TypeTag {
	if !value.IsValid() {
		return models.TypeNull
	}
	if value.Type() == typeOfBytes {
		if value.IsNil() {
			return models.TypeNull
		}
		return models.TypeBinary
	}
	if value.Type() == typeOfJSONNumber {
		return models.TypeNumber
	}

	switch value.Kind() {
	case reflect.Ptr, reflect.Interface:
		if value.IsNil() {
			return models.TypeNull
		}
		return detectValueType(value.Elem())

	case reflect.Bool:
		return models.TypeBoolean

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return models.TypeNumber

	case reflect.Float32, reflect.Float64:
		f := value.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return models.TypeString
		}
		return models.TypeNumber

	case reflect.Slice, reflect.Array:
		return detectArrayType(value)

	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return models.TypeString
		}
		iter := value.MapRange()
		for iter.Next() {
			if !isStringValue(iter.Value()) {
				return models.TypeString
			}
		}
		return models.TypeMap

	default:
		return models.TypeString
	}
}

func detectArrayType(value reflect.Value) models.TypeTag {
	if value.Len() == 0 {
		return models.TypeString
	}

	types := map[models.TypeTag]struct{}{}
	var elemType models.TypeTag
	for i := 0; i < value.Len(); i++ {
		elemType = detectValueType(value.Index(i))
		types[elemType] = struct{}{}
	}

	// ignore arrays with multiple child data types
	if len(types) > 1 {
		return models.TypeString
	}

	switch elemType {
	case models.TypeNumber:
		return models.TypeNumberSet
	case models.TypeString:
		return models.TypeStringSet
	case models.TypeBinary:
		return models.TypeBinarySet
	case models.TypeMap:
		return models.TypeList
	default:
		return models.TypeString
	}
}

func isStringValue(value reflect.Value) bool {
	for value.Kind() == reflect.Interface || value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return false
		}
		value = value.Elem()
	}
	return value.Kind() == reflect.String && value.Type() != typeOfJSONNumber
}

// ToAttributeValue converts a value to AttributeValue according to DetectType.
// Members of sets are deduplicated because DynamoDB rejects a set having
// same values.
func ToAttributeValue(v interface{}) *dynamodb.AttributeValue {
	if v == nil {
		return &dynamodb.AttributeValue{NULL: aws.Bool(true)}
	}
	return toAttributeValue(reflect.ValueOf(v))
}

func toAttributeValue(value reflect.Value) *dynamodb.AttributeValue {
	for value.Kind() == reflect.Interface || value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return &dynamodb.AttributeValue{NULL: aws.Bool(true)}
		}
		value = value.Elem()
	}

	switch detectValueType(value) {
	case models.TypeNull:
		return &dynamodb.AttributeValue{NULL: aws.Bool(true)}

	case models.TypeNumber:
		return &dynamodb.AttributeValue{N: aws.String(formatNumber(value))}

	case models.TypeBoolean:
		return &dynamodb.AttributeValue{BOOL: aws.Bool(value.Bool())}

	case models.TypeBinary:
		return &dynamodb.AttributeValue{B: value.Bytes()}

	case models.TypeMap:
		attrs := map[string]*dynamodb.AttributeValue{}
		iter := value.MapRange()
		for iter.Next() {
			attrs[iter.Key().String()] = &dynamodb.AttributeValue{S: aws.String(toString(iter.Value()))}
		}
		return &dynamodb.AttributeValue{M: attrs}

	case models.TypeNumberSet:
		return &dynamodb.AttributeValue{NS: uniqStrings(value, formatNumber)}

	case models.TypeStringSet:
		return &dynamodb.AttributeValue{SS: uniqStrings(value, toString)}

	case models.TypeBinarySet:
		var set [][]byte
		seen := map[string]bool{}
		for i := 0; i < value.Len(); i++ {
			b := elemOf(value.Index(i)).Bytes()
			if !seen[string(b)] {
				seen[string(b)] = true
				set = append(set, b)
			}
		}
		return &dynamodb.AttributeValue{BS: set}

	case models.TypeList:
		var list []*dynamodb.AttributeValue
		for i := 0; i < value.Len(); i++ {
			list = append(list, toAttributeValue(value.Index(i)))
		}
		return &dynamodb.AttributeValue{L: list}

	default:
		return &dynamodb.AttributeValue{S: aws.String(toString(value))}
	}
}

func elemOf(value reflect.Value) reflect.Value {
	for value.Kind() == reflect.Interface || value.Kind() == reflect.Ptr {
		value = value.Elem()
	}
	return value
}

func uniqStrings(value reflect.Value, format func(reflect.Value) string) []*string {
	var set []*string
	seen := map[string]bool{}
	for i := 0; i < value.Len(); i++ {
		s := format(value.Index(i))
		if !seen[s] {
			seen[s] = true
			set = append(set, aws.String(s))
		}
	}
	return set
}

func formatNumber(value reflect.Value) string {
	value = elemOf(value)
	if value.Type() == typeOfJSONNumber {
		return value.String()
	}

	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(value.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(value.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(value.Float(), 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", value.Interface())
	}
}

func toString(value reflect.Value) string {
	value = elemOf(value)
	if !value.IsValid() {
		return ""
	}

	if t, ok := value.Interface().(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}

	switch value.Kind() {
	case reflect.String:
		return value.String()
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		raw, err := json.Marshal(value.Interface())
		if err != nil {
			return fmt.Sprintf("%v", value.Interface())
		}
		return string(raw)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(value.Float(), 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", value.Interface())
	}
}
