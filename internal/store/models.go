package store

import (
	"fmt"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one stored message.
type Turn struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnPreview is a shortened user turn for history listings.
type TurnPreview struct {
	ID        int64     `json:"id"`
	Preview   string    `json:"preview"`
	Timestamp time.Time `json:"timestamp"`
}

// Hit is one similarity search result.
type Hit struct {
	RowID    int64   `json:"row_id"`
	Distance float64 `json:"distance"`
}

// Row holds the values of one selected row in field order.
type Row []any

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(time.DateTime, t); err == nil {
			return parsed
		}
	case []byte:
		if parsed, err := time.Parse(time.DateTime, string(t)); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
