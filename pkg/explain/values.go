package explain

import (
	"encoding/json"
	"math"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is an untyped explain document or sub-document.
type Document = map[string]interface{}

// asDocument normalizes the document representations the driver and
// encoding/json produce.
func asDocument(v interface{}) (Document, bool) {
	switch d := v.(type) {
	case map[string]interface{}:
		return d, d != nil
	case primitive.M:
		return Document(d), d != nil
	case primitive.D:
		doc := make(Document, len(d))
		for _, e := range d {
			doc[e.Key] = e.Value
		}
		return doc, true
	default:
		return nil, false
	}
}

func asArray(v interface{}) ([]interface{}, bool) {
	switch a := v.(type) {
	case []interface{}:
		return a, true
	case primitive.A:
		return []interface{}(a), true
	case []primitive.M:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	case []primitive.D:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func toFloat64(v interface{}) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func toInt64(v interface{}) *int64 {
	switch n := v.(type) {
	case int64:
		return &n
	case int32:
		i := int64(n)
		return &i
	case int:
		i := int64(n)
		return &i
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return &i
		}
	}
	f := toFloat64(v)
	if f == nil || math.Abs(*f) > math.MaxInt64 {
		return nil
	}
	i := int64(math.Round(*f))
	return &i
}

func isOK(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	f := toFloat64(v)
	return f != nil && *f == 1
}
