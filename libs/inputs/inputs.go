// Package inputs provides decode + validate plumbing for request inputs.
package inputs

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
)

// Decodable - an interface that allows for decoding of inputs and params
type Decodable interface {
	Decode(context.Context, []byte) error
}

// Validatable - an interface that allows for validation of inputs and params
type Validatable interface {
	Validate(context.Context) error
}

// DecodeValidate - decode and validate for inputs
type DecodeValidate interface {
	Validatable
	Decodable
}

// Decode - decode a decodable thing
func Decode(ctx context.Context, d Decodable, input []byte) error {
	return d.Decode(ctx, input)
}

// Validate - validate a validatable thing
func Validate(ctx context.Context, v Validatable) error {
	return v.Validate(ctx)
}

// DecodeAndValidate - perform decode and validate of input in one swipe
func DecodeAndValidate(ctx context.Context, v DecodeValidate, input []byte) error {
	if err := Decode(ctx, v, input); err != nil {
		return fmt.Errorf("failed decoding: %w", err)
	}
	return Validate(ctx, v)
}

// DecodeAndValidateString - perform decode and validate of input in one swipe of a string input
func DecodeAndValidateString(ctx context.Context, v DecodeValidate, input string) error {
	return DecodeAndValidate(ctx, v, []byte(input))
}

// DecodeAndValidateReader - perform decode and validate of input in one swipe
func DecodeAndValidateReader(ctx context.Context, v DecodeValidate, input io.Reader) error {
	b, err := ioutil.ReadAll(input)
	if err != nil {
		return fmt.Errorf("failed reading input: %w", err)
	}
	return DecodeAndValidate(ctx, v, b)
}
