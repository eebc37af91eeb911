// Package errcode provides a toolkit for defining and assigning error
// codes to cache proxy responses. An ErrorCode is identified globally by
// a string value, typically all uppercase, by convention. When an
// ErrorCode is registered, a value unique to the process is assigned,
// which can be used for identity tests.
//
// Each error is registered with Register, which takes a group name and
// an ErrorDescriptor. The returned ErrorCode behaves like any other
// error; WithArgs and WithDetail extend it with substitution values and
// a detail payload respectively.
package errcode

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// ErrorCode represents the error type, held as an integer that is unique
// across the whole process.
type ErrorCode int

// ErrorDescriptor provides relevant information about a given error code.
type ErrorDescriptor struct {
	// Code is the error code that this descriptor describes.
	Code ErrorCode

	// Value provides a unique, string key, often captialized with
	// underscores, to identify the error code. This value is used as the
	// keyed value when serializing api errors.
	Value string

	// Message is a short, human readable description of the error
	// condition. It may contain `%s` substitutions filled by WithArgs.
	Message string

	// Description provides a complete account of the errors purpose,
	// suitable for use in documentation.
	Description string

	// HTTPStatusCode provides the http status code that is associated
	// with this error condition.
	HTTPStatusCode int
}

// ParseErrorCode returns the value of the named error, looked up by the
// string value of the error code.
func ParseErrorCode(value string) ErrorCode {
	ed, ok := idToDescriptors[value]
	if !ok {
		return ErrorCodeUnknown
	}

	return ed.Code
}

// Descriptor returns the descriptor for the error code.
func (ec ErrorCode) Descriptor() ErrorDescriptor {
	d, ok := errorCodeToDescriptors[ec]
	if !ok {
		return ErrorCodeUnknown.Descriptor()
	}

	return d
}

// String returns the canonical identifier for this error code.
func (ec ErrorCode) String() string {
	return ec.Descriptor().Value
}

// Message returned the human-readable error message for this error code.
func (ec ErrorCode) Message() string {
	return ec.Descriptor().Message
}

// MarshalText encodes the receiver into UTF-8-encoded text and returns
// the result.
func (ec ErrorCode) MarshalText() (text []byte, err error) {
	return []byte(ec.String()), nil
}

// UnmarshalText decodes the form generated by MarshalText.
func (ec *ErrorCode) UnmarshalText(text []byte) error {
	desc, ok := idToDescriptors[string(text)]
	if !ok {
		desc = ErrorCodeUnknown.Descriptor()
	}

	*ec = desc.Code
	return nil
}

// Error returns the error message for the given code.
func (ec ErrorCode) Error() string {
	return strings.ToLower(strings.ReplaceAll(ec.String(), "_", " "))
}

// WithMessage creates a new Error struct based on the passed-in info and
// overrides the Message property.
func (ec ErrorCode) WithMessage(message string) Error {
	return Error{
		Code:    ec,
		Message: message,
	}
}

// WithDetail creates a new Error struct based on the passed-in info, with
// Detail set to the given value.
func (ec ErrorCode) WithDetail(detail interface{}) Error {
	return Error{
		Code:    ec,
		Message: ec.Message(),
		Detail:  detail,
	}
}

// WithArgs creates a new Error struct, using the arguments to format the
// error message.
func (ec ErrorCode) WithArgs(args ...interface{}) Error {
	return Error{
		Code:    ec,
		Message: fmt.Sprintf(ec.Message(), args...),
	}
}

// Error provides a wrapper around ErrorCode with extra Details provided.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

// ErrorCoder is implemented by error types that carry an ErrorCode.
type ErrorCoder interface {
	ErrorCode() ErrorCode
}

// WithDetail returns a copy of e with Detail set to the given value; e
// itself is left unchanged.
func (e Error) WithDetail(detail interface{}) Error {
	e.Detail = detail
	return e
}

// ErrorCode returns the ID/Value of this Error.
func (e Error) ErrorCode() ErrorCode {
	return e.Code
}

// Error returns a human readable representation of the error.
func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", strings.ToLower(strings.ReplaceAll(e.Code.String(), "_", " ")), e.Message)
}

// Errors provides the envelope for multiple errors and a JSON report for
// them. It can be used as a regular error, by aggregating the errors in
// the slice.
type Errors []error

func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return "<nil>"
	case 1:
		return errs[0].Error()
	default:
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return strings.Join(msgs, ", ")
	}
}

// MarshalJSON converts slice of error, ErrorCode or Error into a JSON
// envelope: {"errors":[...]}.
func (errs Errors) MarshalJSON() ([]byte, error) {
	var tmpErrs struct {
		Errors []Error `json:"errors"`
	}

	for _, daErr := range errs {
		var err Error

		switch daErr := daErr.(type) {
		case ErrorCode:
			err = daErr.WithDetail(nil)
		case Error:
			err = daErr
		default:
			err = ErrorCodeUnknown.WithDetail(daErr.Error())
		}

		if err.Message == "" {
			err.Message = err.Code.Message()
		}

		tmpErrs.Errors = append(tmpErrs.Errors, err)
	}

	return json.Marshal(tmpErrs)
}

// UnmarshalJSON deserializes the envelope produced by MarshalJSON.
func (errs *Errors) UnmarshalJSON(data []byte) error {
	var tmpErrs struct {
		Errors []Error
	}

	if err := json.Unmarshal(data, &tmpErrs); err != nil {
		return err
	}

	var newErrs Errors
	for _, daErr := range tmpErrs.Errors {
		newErrs = append(newErrs, daErr)
	}

	*errs = newErrs
	return nil
}

var (
	errorCodeToDescriptors = map[ErrorCode]ErrorDescriptor{}
	idToDescriptors        = map[string]ErrorDescriptor{}
	groupToDescriptors     = map[string][]ErrorDescriptor{}
)

var (
	nextCode     = 1000
	registerLock sync.Mutex
)

// Register makes the passed-in error known to the process and returns a
// new ErrorCode for it. Panics if the value or code is already
// registered, which indicates a programming error at startup.
func Register(group string, descriptor ErrorDescriptor) ErrorCode {
	registerLock.Lock()
	defer registerLock.Unlock()

	descriptor.Code = ErrorCode(nextCode)

	if _, ok := idToDescriptors[descriptor.Value]; ok {
		panic(fmt.Sprintf("errcode value %q is already registered", descriptor.Value))
	}
	if _, ok := errorCodeToDescriptors[descriptor.Code]; ok {
		panic(fmt.Sprintf("errcode %v is already registered", descriptor.Code))
	}

	groupToDescriptors[group] = append(groupToDescriptors[group], descriptor)
	errorCodeToDescriptors[descriptor.Code] = descriptor
	idToDescriptors[descriptor.Value] = descriptor

	nextCode++
	return descriptor.Code
}

type byValue []ErrorDescriptor

func (a byValue) Len() int           { return len(a) }
func (a byValue) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byValue) Less(i, j int) bool { return a[i].Value < a[j].Value }

// GetGroupNames returns the list of registered error group names.
func GetGroupNames() []string {
	keys := make([]string, 0, len(groupToDescriptors))
	for k := range groupToDescriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetErrorCodeGroup returns the named group of error descriptors, sorted
// by value.
func GetErrorCodeGroup(name string) []ErrorDescriptor {
	desc := groupToDescriptors[name]
	sort.Sort(byValue(desc))
	return desc
}

// ErrorCodeUnknown is a generic error used as a last resort when no
// situation-specific code applies.
var ErrorCodeUnknown = Register("errcode", ErrorDescriptor{
	Value:          "UNKNOWN",
	Message:        "unknown error",
	Description:    "Generic error returned when the error does not have a cache proxy classification.",
	HTTPStatusCode: http.StatusInternalServerError,
})
