package transform_test

import (
	"math"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/m-mizutani/dynamostream/internal/transform"
	"github.com/m-mizutani/dynamostream/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectType(t *testing.T) {
	var nilMap map[string]string
	testCases := []struct {
		title  string
		value  interface{}
		expect models.TypeTag
	}{
		{"nil", nil, models.TypeNull},
		{"nil map", nilMap, models.TypeMap},
		{"nil pointer", (*int)(nil), models.TypeNull},
		{"float64", 1.5, models.TypeNumber},
		{"int", 3, models.TypeNumber},
		{"uint32", uint32(3), models.TypeNumber},
		{"NaN", math.NaN(), models.TypeString},
		{"bool", true, models.TypeBoolean},
		{"string", "blue", models.TypeString},
		{"bytes", []byte("blue"), models.TypeBinary},
		{"time", time.Now(), models.TypeString},
		{"pointer of int", aws.Int64(5), models.TypeNumber},

		{"empty array", []interface{}{}, models.TypeString},
		{"number array", []interface{}{1.0, 2.0, 2.0}, models.TypeNumberSet},
		{"int slice", []int{1, 2}, models.TypeNumberSet},
		{"string array", []interface{}{"a", "b"}, models.TypeStringSet},
		{"bytes array", [][]byte{[]byte("a")}, models.TypeBinarySet},
		{"map array", []interface{}{
			map[string]interface{}{"a": "x"},
			map[string]string{"b": "y"},
		}, models.TypeList},
		{"mixed array", []interface{}{"a", 1.0}, models.TypeString},
		{"array with nil", []interface{}{"a", nil}, models.TypeString},
		{"bool array", []interface{}{true, false}, models.TypeString},
		{"nested array", []interface{}{[]interface{}{1.0}}, models.TypeString},

		{"string map", map[string]interface{}{"a": "x", "b": "y"}, models.TypeMap},
		{"empty map", map[string]interface{}{}, models.TypeMap},
		{"number map", map[string]interface{}{"a": "x", "b": 1.0}, models.TypeString},
		{"nested map", map[string]interface{}{"a": map[string]interface{}{"b": "c"}}, models.TypeString},
		{"int key map", map[int]string{1: "x"}, models.TypeString},
		{"struct", struct{ A string }{A: "x"}, models.TypeString},
	}

	for _, tc := range testCases {
		t.Run(tc.title, func(tt *testing.T) {
			assert.Equal(tt, tc.expect, transform.DetectType(tc.value))
		})
	}
}

func TestDetectTypeUniformArrays(t *testing.T) {
	for n := 1; n <= 30; n++ {
		var nums, strs, maps []interface{}
		for i := 0; i < n; i++ {
			nums = append(nums, float64(i))
			strs = append(strs, "s")
			maps = append(maps, map[string]interface{}{"k": "v"})
		}
		assert.Equal(t, models.TypeNumberSet, transform.DetectType(nums))
		assert.Equal(t, models.TypeStringSet, transform.DetectType(strs))
		assert.Equal(t, models.TypeList, transform.DetectType(maps))

		mixed := append(append([]interface{}{}, nums...), "s")
		assert.Equal(t, models.TypeString, transform.DetectType(mixed))
	}
}

func TestToAttributeValue(t *testing.T) {
	t.Run("null", func(tt *testing.T) {
		v := transform.ToAttributeValue(nil)
		require.NotNil(tt, v.NULL)
		assert.True(tt, *v.NULL)
	})

	t.Run("number", func(tt *testing.T) {
		assert.Equal(tt, "1.5", aws.StringValue(transform.ToAttributeValue(1.5).N))
		assert.Equal(tt, "42", aws.StringValue(transform.ToAttributeValue(42).N))
		assert.Equal(tt, "1589000000000", aws.StringValue(transform.ToAttributeValue(1.589e12).N))
	})

	t.Run("bool", func(tt *testing.T) {
		v := transform.ToAttributeValue(false)
		require.NotNil(tt, v.BOOL)
		assert.False(tt, *v.BOOL)
	})

	t.Run("binary", func(tt *testing.T) {
		assert.Equal(tt, []byte("abc"), transform.ToAttributeValue([]byte("abc")).B)
	})

	t.Run("string map", func(tt *testing.T) {
		v := transform.ToAttributeValue(map[string]interface{}{"color": "blue"})
		require.Contains(tt, v.M, "color")
		assert.Equal(tt, "blue", aws.StringValue(v.M["color"].S))
	})

	t.Run("number set is deduplicated", func(tt *testing.T) {
		v := transform.ToAttributeValue([]interface{}{1.0, 2.0, 1.0})
		assert.Equal(tt, []string{"1", "2"}, aws.StringValueSlice(v.NS))
	})

	t.Run("string set is deduplicated", func(tt *testing.T) {
		v := transform.ToAttributeValue([]string{"a", "b", "a"})
		assert.Equal(tt, []string{"a", "b"}, aws.StringValueSlice(v.SS))
	})

	t.Run("binary set", func(tt *testing.T) {
		v := transform.ToAttributeValue([][]byte{[]byte("a"), []byte("a"), []byte("b")})
		assert.Equal(tt, [][]byte{[]byte("a"), []byte("b")}, v.BS)
	})

	t.Run("list of maps", func(tt *testing.T) {
		v := transform.ToAttributeValue([]interface{}{
			map[string]interface{}{"a": "1"},
			map[string]interface{}{"b": "2"},
		})
		require.Equal(tt, 2, len(v.L))
		assert.Equal(tt, "1", aws.StringValue(v.L[0].M["a"].S))
		assert.Equal(tt, "2", aws.StringValue(v.L[1].M["b"].S))
	})

	t.Run("mixed array is serialized", func(tt *testing.T) {
		v := transform.ToAttributeValue([]interface{}{"a", 1.0})
		assert.Equal(tt, `["a",1]`, aws.StringValue(v.S))
	})

	t.Run("empty array is serialized", func(tt *testing.T) {
		v := transform.ToAttributeValue([]interface{}{})
		assert.Equal(tt, `[]`, aws.StringValue(v.S))
	})

	t.Run("nested map is serialized", func(tt *testing.T) {
		v := transform.ToAttributeValue(map[string]interface{}{"a": map[string]interface{}{"b": 1.0}})
		assert.Equal(tt, `{"a":{"b":1}}`, aws.StringValue(v.S))
	})
}
