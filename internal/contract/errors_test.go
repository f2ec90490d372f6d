package contract

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := NewError(IoError, "read", "src/a.rs", fs.ErrPermission)
	wrapped := fmt.Errorf("scan chunk: %w", base)

	assert.True(t, errors.Is(wrapped, &Error{Kind: IoError}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: EncodingError}))
	assert.True(t, errors.Is(wrapped, fs.ErrPermission), "cause stays reachable")

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, IoError, kind)
	assert.False(t, IsFatal(wrapped))

	assert.Equal(t, "IO_ERROR read src/a.rs: permission denied", base.Error())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewError(EnvironmentFatal, "stat root", "/missing", nil)))
	assert.False(t, IsFatal(errors.New("plain")))

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}
