package transform

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/google/uuid"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/pkg/errors"
)

// EncoderArguments is configuration of Encoder.
type EncoderArguments struct {
	HashKey        string
	HashType       models.TypeTag
	RangeKey       string
	RangeType      models.TypeTag
	EnableHostname bool

	// NewID and Now can be replaced for testing.
	NewID func() string
	Now   func() time.Time
}

// Encoder converts LogRecord to Item of DynamoDB.
type Encoder struct {
	args EncoderArguments
}

type fixedField struct {
	name    string
	tag     models.TypeTag
	enabled func(args *EncoderArguments) bool
}

var fixedFields = []fixedField{
	{name: models.AttrMessage, tag: models.TypeString},
	{name: models.AttrLevel, tag: models.TypeNumber},
	{name: models.AttrHostname, tag: models.TypeString, enabled: func(args *EncoderArguments) bool { return args.EnableHostname }},
	{name: models.AttrPID, tag: models.TypeNumber},
	{name: models.AttrVersion, tag: models.TypeNumber},
}

// NewEncoder is constructor of Encoder
func NewEncoder(args EncoderArguments) *Encoder {
	if args.NewID == nil {
		args.NewID = func() string { return uuid.New().String() }
	}
	if args.Now == nil {
		args.Now = time.Now
	}

	return &Encoder{args: args}
}

// Decode parses serialized JSON log record. Blank input returns nil without error.
func (x *Encoder) Decode(raw []byte) (models.LogRecord, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var record models.LogRecord
	if err := dec.Decode(&record); err != nil {
		return nil, models.WithKind(models.ErrInvalidRecord, errors.Wrap(err, "Failed to decode JSON"))
	}
	if dec.More() {
		return nil, models.WithKind(models.ErrInvalidRecord, errors.New("Trailing data after JSON object"))
	}

	return record, nil
}

// numbersOf replaces json.Number in decoded values with dynamodbattribute.Number so that
// MarshalMap stores them as N without losing precision.
func numbersOf(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		return dynamodbattribute.Number(t.String())
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for key, value := range t {
			out[key] = numbersOf(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, value := range t {
			out[i] = numbersOf(value)
		}
		return out
	default:
		return v
	}
}

// Encode converts LogRecord to Item. The record is not modified.
func (x *Encoder) Encode(record models.LogRecord) (models.Item, error) {
	if record == nil {
		return nil, models.WithKind(models.ErrInvalidRecord, errors.New("record is nil"))
	}

	item := models.Item{}
	reserved := map[string]bool{
		x.args.HashKey: true,
		models.AttrTime: true,
	}

	ts, err := x.encodeTime(record[models.AttrTime])
	if err != nil {
		return nil, err
	}
	item[models.AttrTime] = ts

	if x.args.RangeKey != "" && !reserved[x.args.RangeKey] {
		v, ok := record[x.args.RangeKey]
		if !ok || v == nil {
			return nil, models.WithKind(models.ErrInvalidRecord, errors.Errorf("Range key '%s' is not found", x.args.RangeKey))
		}
		attr, err := EncodeAs(x.args.RangeType, v)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to encode range key '%s'", x.args.RangeKey)
		}
		item[x.args.RangeKey] = attr
		reserved[x.args.RangeKey] = true
	}

	hashValue, err := x.hashValue(record)
	if err != nil {
		return nil, err
	}
	hashAttr, err := EncodeAs(x.args.HashType, hashValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to encode hash key '%s'", x.args.HashKey)
	}
	item[x.args.HashKey] = hashAttr

	for _, f := range fixedFields {
		if reserved[f.name] {
			continue
		}
		reserved[f.name] = true

		if f.enabled != nil && !f.enabled(&x.args) {
			continue
		}

		v, ok := record[f.name]
		if !ok || v == nil {
			continue
		}
		if name, ok := v.(string); ok && f.name == models.AttrLevel {
			if n, ok := LevelNumber(name); ok {
				v = n
			}
		}

		attr, err := EncodeAs(f.tag, v)
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to encode field '%s'", f.name)
		}
		item[f.name] = attr
	}

	// store all other properties in the data attribute
	data := map[string]interface{}{}
	for key, value := range record {
		if !reserved[key] {
			data[key] = numbersOf(value)
		}
	}

	attrs, err := dynamodbattribute.MarshalMap(data)
	if err != nil {
		return nil, models.WithKind(models.ErrInvalidRecord, errors.Wrap(err, "Failed to marshal data"))
	}
	item[models.AttrData] = &dynamodb.AttributeValue{M: attrs}

	return item, nil
}

func isEmptyKey(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func (x *Encoder) hashValue(record models.LogRecord) (interface{}, error) {
	v := record[x.args.HashKey]
	if !isEmptyKey(v) {
		return v, nil
	}

	switch x.args.HashType {
	case models.TypeString:
		return x.args.NewID(), nil
	case models.TypeNumber:
		return globalSequence.next(x.args.Now()), nil
	default:
		return nil, models.WithKind(models.ErrMissingHashKey, errors.Errorf("The hash field '%s' must be defined", x.args.HashKey))
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// encodeTime converts timestamp to number of epoch milliseconds. A number is
// regarded as epoch milliseconds already. Current time is used if empty.
func (x *Encoder) encodeTime(v interface{}) (*dynamodb.AttributeValue, error) {
	if isEmptyKey(v) {
		return msecAttr(x.args.Now()), nil
	}

	switch t := v.(type) {
	case time.Time:
		return msecAttr(t), nil
	case *time.Time:
		return msecAttr(*t), nil
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return msecAttr(ts), nil
			}
		}
		if _, err := strconv.ParseFloat(t, 64); err == nil {
			return &dynamodb.AttributeValue{N: aws.String(t)}, nil
		}
		return nil, models.WithKind(models.ErrInvalidRecord, errors.Errorf("Failed to parse time: %s", t))
	}

	if DetectType(v) == models.TypeNumber {
		return &dynamodb.AttributeValue{N: aws.String(formatNumber(reflect.ValueOf(v)))}, nil
	}

	return nil, models.WithKind(models.ErrInvalidRecord, errors.Errorf("Unsupported time value: %v", v))
}

func msecAttr(t time.Time) *dynamodb.AttributeValue {
	msec := t.UnixNano() / int64(time.Millisecond)
	return &dynamodb.AttributeValue{N: aws.String(strconv.FormatInt(msec, 10))}
}

// EncodeAs converts v to AttributeValue of the tag. The inferred type of v is
// used as is if it matches. Otherwise v is coerced: any value becomes S by
// string representation, numeric strings become N and base64 strings become B.
func EncodeAs(tag models.TypeTag, v interface{}) (*dynamodb.AttributeValue, error) {
	detected := DetectType(v)
	if detected == tag {
		return ToAttributeValue(v), nil
	}

	switch tag {
	case models.TypeString:
		if detected == models.TypeNull {
			break
		}
		return &dynamodb.AttributeValue{S: aws.String(toString(reflect.ValueOf(v)))}, nil

	case models.TypeNumber:
		s, ok := v.(string)
		if !ok {
			break
		}
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			break
		}
		return &dynamodb.AttributeValue{N: aws.String(s)}, nil

	case models.TypeBinary:
		s, ok := v.(string)
		if !ok {
			break
		}
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			break
		}
		return &dynamodb.AttributeValue{B: b}, nil
	}

	return nil, models.WithKind(models.ErrInvalidRecord, errors.Errorf("Can not convert %v (%s) to %s", v, detected, tag))
}

var levelNumbers = map[string]int{
	"trace":   10,
	"debug":   20,
	"info":    30,
	"warn":    40,
	"warning": 40,
	"error":   50,
	"fatal":   60,
	"panic":   60,
}

// LevelNumber converts level name to bunyan style level number.
func LevelNumber(name string) (int, bool) {
	n, ok := levelNumbers[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// sequence provides strictly increasing numbers based on nanosecond clock.
type sequence struct {
	mutex sync.Mutex
	last  int64
}

var globalSequence = &sequence{}

func (x *sequence) next(now time.Time) int64 {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	n := now.UnixNano()
	if n <= x.last {
		n = x.last + 1
	}
	x.last = n
	return n
}
