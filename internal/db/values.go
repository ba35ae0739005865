package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// String renders a column value as text. UUID columns arrive as [16]byte.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.UUID:
		if !val.Valid {
			return ""
		}
		return uuid.UUID(val.Bytes).String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int converts integer-like column values.
func Int(v any) (int, bool) {
	switch val := v.(type) {
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	case int16:
		return int(val), true
	case int:
		return val, true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

// Float converts float-like column values.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	default:
		return 0, false
	}
}

// Time returns a timestamp column value, or the zero time.
func Time(v any) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}

// JSON decodes a json/jsonb column into out. pgx returns decoded jsonb as
// maps and slices, so those are re-marshalled first.
func JSON(v any, out any) error {
	var data []byte
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		data = val
	case string:
		data = []byte(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("remarshal json column: %w", err)
		}
		data = b
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
