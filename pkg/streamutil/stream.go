package streamutil

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/apperror"
)

// Item is one element yielded by a Stream: either a value or the error
// attached to producing it. Per-item errors do not stop the stream;
// callers decide whether to continue.
type Item[T any] struct {
	Value T
	Err   error
}

// Producer emits values via emit, returning early if emit reports false
// (the consuming side stopped reading, usually due to cancellation).
type Producer[T any] func(ctx context.Context, emit func(T, error) bool)

// Stream is a lazy, finite, non-restartable sequence of Item[T] fed by a
// background goroutine. Exactly one consumer should read a given Stream.
type Stream[T any] struct {
	ch <-chan Item[T]
}

// New starts produce in a background goroutine and returns a Stream
// reading its output. produce must return promptly when ctx is done.
func New[T any](ctx context.Context, produce Producer[T]) *Stream[T] {
	ch := make(chan Item[T])
	go func() {
		defer close(ch)
		produce(ctx, func(v T, err error) bool {
			select {
			case ch <- Item[T]{Value: v, Err: err}:
				return true
			case <-ctx.Done():
				return false
			}
		})
	}()
	return &Stream[T]{ch: ch}
}

// Next blocks for the next item, reporting ok=false once the stream is
// exhausted. If ctx is cancelled before an item arrives, it returns an
// apperror.AbortError.
func (s *Stream[T]) Next(ctx context.Context) (Item[T], bool) {
	select {
	case item, ok := <-s.ch:
		return item, ok
	case <-ctx.Done():
		return Item[T]{Err: apperror.NewAbort(ctx.Err())}, true
	}
}

// ForEach drains the stream, invoking fn for every item until the stream
// is exhausted or fn returns false. It returns the cancellation error if
// ctx was cancelled mid-iteration.
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(Item[T]) bool) error {
	for {
		item, ok := s.Next(ctx)
		if !ok {
			return nil
		}
		if !fn(item) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return apperror.NewAbort(err)
		}
	}
}

// Collect drains the entire stream into a slice. Intended for tests and
// small, known-bounded listings; production callers should prefer Next/
// ForEach to preserve laziness and cancellability.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]Item[T], error) {
	var out []Item[T]
	err := ForEach(ctx, s, func(item Item[T]) bool {
		out = append(out, item)
		return true
	})
	return out, err
}
