package source

// Result is the outcome of one capability call: a value, or an absence with
// the reason it is absent.
type Result[T any] struct {
	Value  T
	OK     bool
	Source string // adapter that produced Value
	Reason error  // why the value is absent; nil when OK
}

func found[T any](v T, src string) Result[T] {
	return Result[T]{Value: v, OK: true, Source: src}
}

func absent[T any](reason error, src string) Result[T] {
	return Result[T]{Reason: reason, Source: src}
}

// Get returns the value and whether it is present.
func (r Result[T]) Get() (T, bool) { return r.Value, r.OK }
