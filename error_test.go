package conclave

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

var errExample = xerrors.New("example")

func makeError() error {
	return xerrors.Errorf("oops: %w", errExample)
}

// Test that the basic function create an error when the parameter
// is not nil, and returns nil otherwise.
func TestError_ErrorOrNil(t *testing.T) {
	err := ErrorOrNil(makeError(), "test")

	require.Equal(t, "test: oops: example", err.Error())
	require.Nil(t, ErrorOrNil(nil, ""))
}

// Test that the skip option is correctly used to prevent a call
// to be included in the stack trace.
func TestError_ErrorOrNilSkip(t *testing.T) {
	err := ErrorOrNilSkip(makeError(), "test", 2)

	require.NotContains(t, fmt.Sprintf("%+v", err), t.Name())
	require.Contains(t, fmt.Sprintf("%+v", err), ".makeError")
}

// Test that the wrapper is invisible but allows the error
// comparison to work.
func TestError_WrapError(t *testing.T) {
	err := WrapError(makeError())

	require.Equal(t, "oops: example", err.Error())
	require.Contains(t, fmt.Sprintf("%+v", err), ".makeError")
	require.True(t, xerrors.Is(err, errExample))
	require.False(t, xerrors.Is(err, xerrors.New("abc")))
}

func TestError_Classify(t *testing.T) {
	require.Nil(t, Classify(ErrTransport, nil))

	err := Classify(ErrTransport, makeError())
	require.True(t, xerrors.Is(err, ErrTransport))
	require.True(t, xerrors.Is(err, errExample))
	require.False(t, xerrors.Is(err, ErrValidation))
	require.Equal(t, "transport error: oops: example", err.Error())
	require.Equal(t, KindTransport, KindOf(err))

	// Classifying twice keeps the first wrapper.
	require.Equal(t, err, Classify(ErrTransport, err))
}

func TestError_KindOf(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(nil))
	require.Equal(t, KindUnknown, KindOf(errExample))
	require.Equal(t, KindValidation,
		KindOf(xerrors.Errorf("bad signature: %w", ErrValidation)))
	require.Equal(t, KindCryptographicFault,
		KindOf(ErrorOrNil(ErrCryptographicFault, "mix")))
	require.Equal(t, KindSerialization, KindOf(ErrSerialization))
	require.Equal(t, KindConfig, KindOf(WrapError(ErrConfig)))
	require.Equal(t, "CryptographicFault", KindCryptographicFault.String())
}
