package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is matched by errors.Is for any screenshot that could not be decoded.
	ErrDecode = errors.New("image decode failed")
	// ErrOracle is matched by errors.Is for any failure of the text recognition engine.
	ErrOracle = errors.New("text recognition failed")
)

// DecodeError reports a screenshot that could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// OracleError reports a failure inside the recognition engine.
type OracleError struct {
	Engine string
	Err    error
}

func (e *OracleError) Error() string {
	return fmt.Sprintf("%s recognize: %v", e.Engine, e.Err)
}

func (e *OracleError) Unwrap() []error { return []error{ErrOracle, e.Err} }
