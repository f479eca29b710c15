// Package sf provides a generic single-flight mechanism for deduplicating
// concurrent function calls with the same key. Only one execution is
// in-flight per key at a time; concurrent callers block and receive the
// same result. The broker gateway uses it to guard lazy channel creation.
package sf

import "golang.org/x/sync/singleflight"

// Singleflight deduplicates concurrent function calls with the same key.
type Singleflight[T any] struct {
	group singleflight.Group
}

// Do executes fn for the given key, deduplicating concurrent calls. If a
// call is already in-flight for this key, Do blocks until it completes and
// returns the same result. A failed call is not cached: the next Do for the
// key executes fn again.
func (s *Singleflight[T]) Do(key string, fn func() (*T, error)) (*T, error) {
	v, err, _ := s.group.Do(key, func() (out any, err error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// New creates a new Singleflight instance for type T.
func New[T any]() *Singleflight[T] {
	return &Singleflight[T]{}
}
