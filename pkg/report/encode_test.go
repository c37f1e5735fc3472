package report

import (
	"bytes"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/TFMV/planbench/pkg/errors"
)

func TestEncoder_Regex(t *testing.T) {
	enc := NewEncoder(zerolog.Nop())

	out := enc.Encode(primitive.Regex{Pattern: "^a.*", Options: "i"})
	b, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"$regex": "^a.*", "$options": "i"}`, string(b))
}

func TestEncoder_ExtensionTypes(t *testing.T) {
	enc := NewEncoder(zerolog.Nop())
	oid, err := primitive.ObjectIDFromHex("65f1a2b3c4d5e6f708192a3b")
	require.NoError(t, err)
	when := time.Date(2024, 3, 1, 12, 30, 0, 250_000_000, time.UTC)
	dec, err := primitive.ParseDecimal128("12.50")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"object id", oid, `{"$oid": "65f1a2b3c4d5e6f708192a3b"}`},
		{"datetime", primitive.NewDateTimeFromTime(when), `{"$date": "2024-03-01T12:30:00.250Z"}`},
		{"time", when, `{"$date": "2024-03-01T12:30:00.250Z"}`},
		{"decimal", dec, `{"$numberDecimal": "12.50"}`},
		{"timestamp via extended json", primitive.Timestamp{T: 7, I: 1}, `{"$timestamp": {"t": 7, "i": 1}}`},
		{"min key via extended json", primitive.MinKey{}, `{"$minKey": 1}`},
		{"NaN", math.NaN(), `"NaN"`},
		{"Inf", math.Inf(-1), `"-Inf"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(enc.Encode(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))
		})
	}
}

func TestEncoder_NestedDriverDocument(t *testing.T) {
	enc := NewEncoder(zerolog.Nop())

	doc := bson.M{
		"queryPlanner": bson.D{
			{Key: "parsedQuery", Value: bson.M{"name": primitive.Regex{Pattern: "^a.*", Options: "i"}}},
		},
		"stages": bson.A{bson.M{"nReturned": int32(3)}, nil},
		"ok":     1.0,
	}

	b, err := json.Marshal(enc.Encode(doc))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"queryPlanner": {"parsedQuery": {"name": {"$regex": "^a.*", "$options": "i"}}},
		"stages": [{"nReturned": 3}, null],
		"ok": 1
	}`, string(b))
}

func TestEncoder_LastResortNeverFails(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(zerolog.New(&buf))

	values := []any{
		make(chan int),
		func() {},
		bson.M{"fn": func() {}},
		struct{ C chan int }{C: make(chan int)},
	}
	for _, v := range values {
		var out any
		assert.NotPanics(t, func() { out = enc.Encode(v) })
		_, err := json.Marshal(out)
		assert.NoError(t, err)
	}
	assert.Contains(t, buf.String(), errors.CodeEncodingDefect)
}
