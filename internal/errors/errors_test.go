package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/devdash/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid interval value", f.New(errors.ErrInvalidInterval).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInternal, "custom").Error())
	assert.Equal(t, "Invalid argument provided: bad", f.WithData(errors.ErrInvalidArgument, "bad").Error())
	assert.Equal(t, "unknown_code", f.New(errors.ErrorCode("unknown_code")).Error())
}

func TestCodeOf(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrTimeout)
	wrapped := fmt.Errorf("outer: %w", inner)

	code, ok := errors.CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrTimeout, code)

	_, ok = errors.CodeOf(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	err := f.Wrap(errors.ErrInitFailed, f.New(errors.ErrReadConfig))

	assert.True(t, errors.HasCode(err, errors.ErrInitFailed))
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
	assert.False(t, errors.HasCode(err, errors.ErrTimeout))
	assert.False(t, errors.HasCode(nil, errors.ErrTimeout))
}
