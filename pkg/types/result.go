package types

import (
	"encoding/json"
	"errors"
)

// Result carries either a decrypted/verified value or the reason it could
// not be produced. Node names and authors are never allowed to come back
// as a thrown error: a signature failure or undecryptable blob downgrades
// the field to Result.Err and lets every other field on the node populate
// normally.
type Result[T any] struct {
	value T
	err   error
}

// Ok wraps a successfully produced value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Errored wraps the reason a value could not be produced.
func Errored[T any](err error) Result[T] {
	if err == nil {
		panic("types: Errored called with nil error")
	}
	return Result[T]{err: err}
}

// OK reports whether the result holds a value.
func (r Result[T]) OK() bool { return r.err == nil }

// Value returns the held value and true, or the zero value and false if
// the result is an error.
func (r Result[T]) Value() (T, bool) {
	if r.err != nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Must returns the held value, panicking if the result is an error. Only
// appropriate in tests or after an explicit OK() check.
func (r Result[T]) Must() T {
	if r.err != nil {
		panic(r.err)
	}
	return r.value
}

// Error returns the failure reason, or nil if the result holds a value.
func (r Result[T]) Error() error { return r.err }

// resultWire is the durable/wire shape of a Result: exactly one of Value
// or Error is present. Round-tripping through JSON loses the original
// error's concrete type — durable cache storage only needs the message.
type resultWire[T any] struct {
	Value *T     `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(resultWire[T]{Error: r.err.Error()})
	}
	return json.Marshal(resultWire[T]{Value: &r.value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result[T]) UnmarshalJSON(data []byte) error {
	var wire resultWire[T]
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Error != "" {
		r.err = errors.New(wire.Error)
		return nil
	}
	if wire.Value != nil {
		r.value = *wire.Value
	}
	return nil
}

// AuthorEmail is the value carried by a successful Author result: nil
// means the node is anonymous (uploaded without a signature email and
// signed by the parent key instead of an address key).
type AuthorEmail = *string

// Author is the Result carried by key-author and name-author fields.
type Author = Result[AuthorEmail]

// AnonymousAuthor is the Ok author value for an anonymous node.
func AnonymousAuthor() Author { return Ok[AuthorEmail](nil) }

// AuthoredBy returns an Ok author attributed to the given address.
func AuthoredBy(email string) Author { return Ok[AuthorEmail](&email) }

// Name is the Result carried by a node's decrypted name.
type Name = Result[string]
