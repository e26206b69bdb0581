package stream

import "context"

// MapFunction is a function that maps a record to another record.
type MapFunction func(rec Record) Record

// MapOperator is an operator that applies a function to each record in the stream.
type MapOperator struct {
	BaseOperator
	mapFn MapFunction
}

// NewMapOperator creates a new MapOperator.
func NewMapOperator(id string, mapFn MapFunction) *MapOperator {
	return &MapOperator{
		BaseOperator: *NewBaseOperator(id),
		mapFn:        mapFn,
	}
}

// Process processes a record.
func (o *MapOperator) Process(ctx context.Context, rec Record) ([]Record, error) {
	return []Record{o.mapFn(rec)}, nil
}

// FilterFunction reports whether a record should be kept.
type FilterFunction func(rec Record) bool

// FilterOperator drops every record its predicate rejects.
type FilterOperator struct {
	BaseOperator
	keep FilterFunction
}

// NewFilterOperator creates a new FilterOperator.
func NewFilterOperator(id string, keep FilterFunction) *FilterOperator {
	return &FilterOperator{
		BaseOperator: *NewBaseOperator(id),
		keep:         keep,
	}
}

func (o *FilterOperator) Process(ctx context.Context, rec Record) ([]Record, error) {
	if !o.keep(rec) {
		return nil, nil
	}
	return []Record{rec}, nil
}
