package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAsError(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			panic("test panic")
		}

		err := fn()
		require.Error(t, err)

		var panicErr *PanicError
		require.ErrorAs(t, err, &panicErr)
		assert.Equal(t, "test panic", panicErr.Value)
		assert.NotEmpty(t, panicErr.StackTrace)
	})

	t.Run("no error when no panic", func(t *testing.T) {
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return nil
		}
		assert.NoError(t, fn())
	})

	t.Run("preserves original error", func(t *testing.T) {
		originalErr := errors.New("original error")
		fn := func() (err error) {
			defer RecoverAsError(&err)
			return originalErr
		}
		assert.Same(t, originalErr, fn())
	})

	t.Run("unwraps error panics", func(t *testing.T) {
		sentinel := errors.New("boom")
		fn := func() (err error) {
			defer RecoverAsError(&err)
			panic(sentinel)
		}
		assert.ErrorIs(t, fn(), sentinel)
	})
}

func TestRecoverWithCallback(t *testing.T) {
	t.Run("calls callback on panic", func(t *testing.T) {
		var capturedErr error
		fn := func() {
			defer RecoverWithCallback(func(err error) {
				capturedErr = err
			})
			panic("callback test")
		}

		fn()

		var panicErr *PanicError
		require.ErrorAs(t, capturedErr, &panicErr)
		assert.Equal(t, "callback test", panicErr.Value)
	})

	t.Run("handles nil callback", func(t *testing.T) {
		fn := func() {
			defer RecoverWithCallback(nil)
			panic("nil callback test")
		}
		assert.NotPanics(t, fn)
	})
}

func TestPanicErrorString(t *testing.T) {
	err := &PanicError{Value: "test value"}
	assert.Equal(t, "panic: test value", err.Error())
	assert.Nil(t, err.Unwrap())
}
