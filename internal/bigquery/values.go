package bigquery

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
)

// SchemaFields flattens a result schema to name/type/mode triples.
func SchemaFields(schema bigquery.Schema) []Field {
	out := make([]Field, 0, len(schema))
	for _, f := range schema {
		mode := "NULLABLE"
		switch {
		case f.Repeated:
			mode = "REPEATED"
		case f.Required:
			mode = "REQUIRED"
		}
		out = append(out, Field{Name: f.Name, Type: string(f.Type), Mode: mode})
	}
	return out
}

// JSONRow converts a result row into values encoding/json can always
// marshal. Numerics become exact decimal strings, bytes become hex, and
// times use ISO 8601.
func JSONRow(row map[string]bigquery.Value, schema bigquery.Schema) map[string]any {
	out := make(map[string]any, len(row))
	for name, v := range row {
		out[name] = jsonValue(v, fieldNamed(schema, name))
	}
	return out
}

func fieldNamed(schema bigquery.Schema, name string) *bigquery.FieldSchema {
	for _, f := range schema {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func jsonValue(v bigquery.Value, field *bigquery.FieldSchema) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool, string, int64, int:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Sprint(x)
		}
		return x
	case []byte:
		return hex.EncodeToString(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *big.Rat:
		if x == nil {
			return nil
		}
		if field != nil && field.Type == bigquery.BigNumericFieldType {
			return bigquery.BigNumericString(x)
		}
		return bigquery.NumericString(x)
	case []bigquery.Value:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e, field)
		}
		return out
	case map[string]bigquery.Value:
		var nested bigquery.Schema
		if field != nil {
			nested = field.Schema
		}
		return JSONRow(x, nested)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
