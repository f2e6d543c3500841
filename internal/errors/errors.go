// Package errors provides the typed error values passed between pipeline stages.
package errors

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// Kind classifies a failure by the subsystem that produced it.
type Kind string

const (
	KindConfig   Kind = "config"
	KindAPI      Kind = "api"
	KindStorage  Kind = "storage"
	KindInternal Kind = "internal"
)

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedKind = errors.New("unsupported resource type")
	ErrNoSelector      = errors.New("workload has no pod selector")
	ErrMissingConfig   = errors.New("required configuration missing")
)

// Error is a failure annotated with its kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config wraps err as a configuration error.
func Config(op string, err error) *Error {
	return &Error{Kind: KindConfig, Op: op, Err: err}
}

// API wraps err as a cluster API error.
func API(op string, err error) *Error {
	return &Error{Kind: KindAPI, Op: op, Err: err}
}

// Storage wraps err as an object storage error.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorage, Op: op, Err: err}
}

// Internal wraps err as a local processing error.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf returns the kind of the outermost *Error in err's chain,
// or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err wraps a Kubernetes NotFound status.
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}

// StorageCode returns the service error code carried by an S3 failure
// (e.g. "NoSuchBucket", "AccessDenied"), or "" if err has none.
func StorageCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
