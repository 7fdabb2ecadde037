// Package errors provides the coded error type shared by every pipeline stage.
// Each stage failure carries a Code so the orchestrator can turn it into a
// structured result and the HTTP host can pick a status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Code categorizes a failure.
type Code string

// Pipeline failure codes.
const (
	CodeInvalidPayload   Code = "INVALID_PAYLOAD"
	CodeConfiguration    Code = "CONFIGURATION_ERROR"
	CodeDownloadFailed   Code = "DOWNLOAD_FAILED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeTranscodeFailed  Code = "TRANSCODE_FAILED"
	CodeTranscodeTimeout Code = "TRANSCODE_TIMEOUT"
	CodeUploadFailed     Code = "UPLOAD_FAILED"
	CodeCleanupFailed    Code = "CLEANUP_FAILED"
)

// Generic codes.
const (
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeConflict    Code = "CONFLICT"
	CodeUnavailable Code = "UNAVAILABLE"
)

// Error is a failure with a code, the operation that produced it and
// optional structured fields.
type Error struct {
	// Code is the failure category.
	Code Code
	// Message is the human-readable error message.
	Message string
	// Op is the operation that failed (e.g. "pipeline.fetch").
	Op string
	// Err is the underlying error.
	Err error
	// Fields carries extra context such as captured process output.
	Fields map[string]any
	// Stack is captured at construction.
	Stack []Frame
}

// Frame is a single stack frame.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString("[")
		b.WriteString(string(e.Code))
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithField adds a field to the error.
func (e *Error) WithField(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// HTTPStatus maps the code to the status the function host answers with.
func (e *Error) HTTPStatus() int {
	return StatusForCode(e.Code)
}

// StatusForCode maps a failure code to an HTTP status.
func StatusForCode(code Code) int {
	switch code {
	case CodeInvalidPayload:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTranscodeFailed:
		return http.StatusUnprocessableEntity
	case CodeDownloadFailed, CodeUploadFailed:
		return http.StatusBadGateway
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeTranscodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// StackTrace formats the captured stack.
func (e *Error) StackTrace() string {
	if len(e.Stack) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range e.Stack {
		fmt.Fprintf(&b, "  %s:%d %s\n", f.File, f.Line, f.Function)
	}
	return b.String()
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps err, keeping the code of an inner *Error when there is one.
func Wrap(err error, op string, message string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return &Error{
			Code:    e.Code,
			Message: message,
			Op:      op,
			Err:     err,
			Fields:  e.Fields,
			Stack:   captureStack(2),
		}
	}

	return &Error{
		Code:    CodeInternal,
		Message: message,
		Op:      op,
		Err:     err,
		Stack:   captureStack(2),
	}
}

// WrapWithCode wraps err under an explicit code.
func WrapWithCode(err error, code Code, op string, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
		Stack:   captureStack(2),
	}
}

// InvalidPayload reports a malformed or incomplete request payload.
func InvalidPayload(message string) *Error {
	return New(CodeInvalidPayload, message)
}

// InvalidPayloadField reports a payload field that failed validation.
func InvalidPayloadField(field string, message string) *Error {
	return New(CodeInvalidPayload, message).WithField("field", field)
}

// Configuration reports missing or invalid process configuration.
func Configuration(message string, keys ...string) *Error {
	e := New(CodeConfiguration, message)
	if len(keys) > 0 {
		e.WithField("keys", keys)
	}
	return e
}

// NotFound reports a missing object.
func NotFound(resource string, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

// Conflict reports a conflicting concurrent operation.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// GetCode extracts the code from err, defaulting to CodeInternal.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the status code for err.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetFields extracts the fields from err.
func GetFields(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) && e.Fields != nil {
		return e.Fields
	}
	return nil
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

func captureStack(skip int) []Frame {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])

	frames := make([]Frame, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()

		if strings.Contains(frame.File, "runtime/") {
			if !more {
				break
			}
			continue
		}

		frames = append(frames, Frame{
			File:     frame.File,
			Line:     frame.Line,
			Function: frame.Function,
		})

		if !more || len(frames) >= 10 {
			break
		}
	}

	return frames
}

// As is errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
