package scan

// RowBatch is a fixed-capacity output buffer for one kernel's result
// rows: capacity is a hard ceiling, not just a preallocation hint, since
// the Scan contract is to fill the caller's batch and return as soon as
// it is full rather than grow past what the caller asked for.
type RowBatch[T any] struct {
	rows []T
	cap  int
}

// NewRowBatch preallocates a batch that holds at most capacity rows.
func NewRowBatch[T any](capacity int) *RowBatch[T] {
	return &RowBatch[T]{rows: make([]T, 0, capacity), cap: capacity}
}

// Append adds row to the batch and reports whether it fit. Once the batch
// reaches its declared capacity, Append refuses further rows instead of
// growing past it; callers (kernel Scan implementations) check Full
// before each Append and stop claiming work for the current call once it
// reports true.
func (b *RowBatch[T]) Append(row T) bool {
	if len(b.rows) >= b.cap {
		return false
	}
	b.rows = append(b.rows, row)
	return true
}

// Full reports whether the batch has reached its declared capacity.
func (b *RowBatch[T]) Full() bool { return len(b.rows) >= b.cap }

// Len reports the number of rows appended so far.
func (b *RowBatch[T]) Len() int { return len(b.rows) }

// Cap reports the batch's declared capacity.
func (b *RowBatch[T]) Cap() int { return b.cap }

// Rows returns the accumulated rows.
func (b *RowBatch[T]) Rows() []T { return b.rows }

// Reset empties the batch for reuse, keeping its backing array and
// declared capacity.
func (b *RowBatch[T]) Reset() {
	b.rows = b.rows[:0]
}

// NullableFloat64 is a nullable numeric output cell: many kernel rows
// (alt_freq, p_hwe, r2, d_prime) can be legitimately null rather than 0,
// so every such field is carried alongside its own *Null flag instead of
// overloading a sentinel float value.
type NullableFloat64 struct {
	Value float64
	Null  bool
}

// Float64 returns a populated, non-null cell.
func Float64(v float64) NullableFloat64 { return NullableFloat64{Value: v} }

// NullFloat64 returns a null cell.
func NullFloat64() NullableFloat64 { return NullableFloat64{Null: true} }

// NullableInt8 is a nullable genotype call cell, used by the raw readers'
// genotype-list columns where a missing call is an element-level null
// rather than the decoder's internal -1 sentinel.
type NullableInt8 struct {
	Value int8
	Null  bool
}

// Int8 returns a populated, non-null cell.
func Int8(v int8) NullableInt8 { return NullableInt8{Value: v} }

// NullInt8 returns a null cell.
func NullInt8() NullableInt8 { return NullableInt8{Null: true} }
