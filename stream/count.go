package stream

import (
	"context"
	"fmt"
)

// CountOperator keeps a running count per record key and emits the updated
// count for every record it sees. The counts are its checkpointed state.
type CountOperator struct {
	BaseOperator
}

// NewCountOperator creates a new CountOperator.
func NewCountOperator(id string) *CountOperator {
	return &CountOperator{BaseOperator: *NewBaseOperator(id)}
}

func (o *CountOperator) Process(ctx context.Context, rec Record) ([]Record, error) {
	key := string(rec.Key)
	n, err := asInt64(o.state[key])
	if err != nil {
		return nil, fmt.Errorf("count operator %s: key %q: %w", o.id, key, err)
	}
	n++
	o.state[key] = n
	return []Record{{Key: rec.Key, Value: n, EventTime: rec.EventTime}}, nil
}

// Count returns the current count for key.
func (o *CountOperator) Count(key string) int64 {
	n, _ := asInt64(o.state[key])
	return n
}

// Restore accepts states decoded by any backend; integer widths are
// normalized to int64.
func (o *CountOperator) Restore(state State) {
	normalized := make(State, len(state))
	for k, v := range state {
		n, err := asInt64(v)
		if err != nil {
			continue
		}
		normalized[k] = n
	}
	o.BaseOperator.Restore(normalized)
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
