package report

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/TFMV/planbench/pkg/errors"
)

const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// extensionEncoders maps driver extension types to their Extended JSON shape.
var extensionEncoders = map[reflect.Type]func(v any) any{
	reflect.TypeOf(primitive.Regex{}): func(v any) any {
		r := v.(primitive.Regex)
		return map[string]any{"$regex": r.Pattern, "$options": r.Options}
	},
	reflect.TypeOf(primitive.ObjectID{}): func(v any) any {
		return map[string]any{"$oid": v.(primitive.ObjectID).Hex()}
	},
	reflect.TypeOf(primitive.DateTime(0)): func(v any) any {
		return map[string]any{"$date": v.(primitive.DateTime).Time().UTC().Format(dateLayout)}
	},
	reflect.TypeOf(time.Time{}): func(v any) any {
		return map[string]any{"$date": v.(time.Time).UTC().Format(dateLayout)}
	},
	reflect.TypeOf(primitive.Decimal128{}): func(v any) any {
		return map[string]any{"$numberDecimal": v.(primitive.Decimal128).String()}
	},
}

// Encoder turns raw explain values into trees encoding/json can always
// marshal. Encode never fails: values without a known encoding fall back to
// relaxed Extended JSON and finally to their fmt representation.
type Encoder struct {
	log zerolog.Logger
}

// NewEncoder creates an encoder that reports fallbacks to logger.
func NewEncoder(logger zerolog.Logger) *Encoder {
	return &Encoder{log: logger.With().Str("component", "encoder").Logger()}
}

// Encode returns a JSON-native copy of v.
func (e *Encoder) Encode(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return e.encodeMap(x)
	case primitive.M:
		return e.encodeMap(x)
	case primitive.D:
		out := make(map[string]any, len(x))
		for _, el := range x {
			out[el.Key] = e.Encode(el.Value)
		}
		return out
	case []any:
		return e.encodeSlice(x)
	case primitive.A:
		return e.encodeSlice(x)
	case string, bool, json.Number, json.RawMessage,
		int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return finite(float64(x))
	case float64:
		return finite(x)
	}

	if enc, ok := extensionEncoders[reflect.TypeOf(v)]; ok {
		return enc(v)
	}
	if out, ok := extJSON(v); ok {
		return out
	}

	e.log.Warn().
		Str("code", errors.CodeEncodingDefect).
		Str("type", fmt.Sprintf("%T", v)).
		Msg("No encoder for value, stringifying")
	return fmt.Sprint(v)
}

func (e *Encoder) encodeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = e.Encode(v)
	}
	return out
}

func (e *Encoder) encodeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = e.Encode(v)
	}
	return out
}

// finite keeps JSON numbers JSON-safe; encoding/json rejects NaN and Inf.
func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

// extJSON encodes v as relaxed Extended JSON through the driver.
func extJSON(v any) (out any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			out, ok = nil, false
		}
	}()

	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: v}}, false, false)
	if err != nil {
		return nil, false
	}
	var wrapper map[string]any
	if err := json.Unmarshal(b, &wrapper); err != nil {
		return nil, false
	}
	return wrapper["v"], true
}
