package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/native-reverb/device"
	"github.com/cwbudde/native-reverb/engine"
)

// Code classifies a failed bridge call for the host runtime.
type Code string

const (
	CodeOK                Code = "OK"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeNotInitialized    Code = "NOT_INITIALIZED"
	CodeDeviceUnavailable Code = "DEVICE_UNAVAILABLE"
	CodeBusy              Code = "BUSY"
	CodeUnknownMethod     Code = "UNKNOWN_METHOD"
	CodeInternal          Code = "INTERNAL"
)

// Error is the structured failure returned across the bridge. It serializes
// as {"code": ..., "message": ...}.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Unwrap returns the engine or device error the failure came from, if any.
func (e *Error) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return sentinelFor(e.Code)
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf classifies err. A nil error is CodeOK.
func CodeOf(err error) Code {
	var be *Error
	switch {
	case err == nil:
		return CodeOK
	case errors.As(err, &be):
		return be.Code
	case errors.Is(err, engine.ErrInvalidArgument), errors.Is(err, device.ErrInvalidConfig):
		return CodeInvalidArgument
	case errors.Is(err, engine.ErrNotInitialized):
		return CodeNotInitialized
	case errors.Is(err, engine.ErrDeviceUnavailable):
		return CodeDeviceUnavailable
	case errors.Is(err, engine.ErrBusy):
		return CodeBusy
	default:
		return CodeInternal
	}
}

// AsError converts err to a bridge Error, keeping it as the cause.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	code := CodeOf(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = CodeBusy
	}
	return &Error{Code: code, Message: err.Error(), cause: err}
}

func sentinelFor(code Code) error {
	switch code {
	case CodeInvalidArgument:
		return engine.ErrInvalidArgument
	case CodeNotInitialized:
		return engine.ErrNotInitialized
	case CodeDeviceUnavailable:
		return engine.ErrDeviceUnavailable
	case CodeBusy:
		return engine.ErrBusy
	default:
		return nil
	}
}
