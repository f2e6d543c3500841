package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

func TestError_Error(t *testing.T) {
	err := API("get deployment", errors.New("connection refused"))
	assert.Contains(t, err.Error(), "api error")
	assert.Contains(t, err.Error(), "get deployment")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestError_NoCause(t *testing.T) {
	err := &Error{Kind: KindConfig, Op: "load"}
	assert.Equal(t, "config error: load", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	err := Config("resolve", ErrUnsupportedKind)
	assert.ErrorIs(t, err, ErrUnsupportedKind)

	wrapped := fmt.Errorf("run: %w", err)
	assert.ErrorIs(t, wrapped, ErrUnsupportedKind)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConfig, KindOf(Config("x", nil)))
	assert.Equal(t, KindAPI, KindOf(fmt.Errorf("outer: %w", API("x", nil))))
	assert.Equal(t, KindStorage, KindOf(Storage("x", nil)))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	nf := apierrors.NewNotFound(schema.GroupResource{Group: "apps", Resource: "deployments"}, "web")
	assert.True(t, IsNotFound(API("get", nf)))
	assert.False(t, IsNotFound(API("get", errors.New("timeout"))))
}

func TestStorageCode(t *testing.T) {
	err := Storage("put", &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "missing"})
	assert.Equal(t, "NoSuchBucket", StorageCode(err))
	assert.Empty(t, StorageCode(errors.New("dial tcp")))
}
