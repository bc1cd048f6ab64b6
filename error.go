package conclave

import (
	"fmt"

	"golang.org/x/xerrors"
)

// The failure classes of the engine. Concrete errors wrap one of these so
// that callers can decide with xerrors.Is whether to retry, drop or halt.
var (
	// ErrTransport is returned when the board cannot be reached or an I/O
	// operation fails. It is always retryable.
	ErrTransport = xerrors.New("transport error")
	// ErrValidation marks an entry that has a bad signature, a mismatched
	// configuration hash or an otherwise malformed statement.
	ErrValidation = xerrors.New("validation error")
	// ErrCryptographicFault marks a failed proof or inconsistent shares. The
	// protocol instance stops progressing when it is raised.
	ErrCryptographicFault = xerrors.New("cryptographic fault")
	// ErrSerialization marks a board entry that cannot be decoded.
	ErrSerialization = xerrors.New("serialization error")
	// ErrConfig marks missing or invalid local configuration or secrets.
	ErrConfig = xerrors.New("configuration error")
)

// Kind is the failure class of an error.
type Kind int

const (
	// KindUnknown is any error that does not wrap one of the classes.
	KindUnknown Kind = iota
	// KindTransport wraps ErrTransport.
	KindTransport
	// KindValidation wraps ErrValidation.
	KindValidation
	// KindCryptographicFault wraps ErrCryptographicFault.
	KindCryptographicFault
	// KindSerialization wraps ErrSerialization.
	KindSerialization
	// KindConfig wraps ErrConfig.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "TransportError"
	case KindValidation:
		return "ValidationError"
	case KindCryptographicFault:
		return "CryptographicFault"
	case KindSerialization:
		return "SerializationError"
	case KindConfig:
		return "ConfigError"
	default:
		return "UnknownError"
	}
}

// KindOf returns the failure class of err.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case xerrors.Is(err, ErrTransport):
		return KindTransport
	case xerrors.Is(err, ErrValidation):
		return KindValidation
	case xerrors.Is(err, ErrCryptographicFault):
		return KindCryptographicFault
	case xerrors.Is(err, ErrSerialization):
		return KindSerialization
	case xerrors.Is(err, ErrConfig):
		return KindConfig
	}
	return KindUnknown
}

// Error is a wrapper around an standard error that allows
// to print the stack trace from the call of the constructor.
type Error struct {
	err   error
	msg   string
	frame xerrors.Frame
}

// ErrorOrNil returns the error if any with the stack trace
// beginning at the call of the function.
func ErrorOrNil(err error, msg string) error {
	return ErrorOrNilSkip(err, msg, 1)
}

// ErrorOrNilSkip returns the error if any with the stack trace
// beginning at the call of the skip-nth caller.
func ErrorOrNilSkip(err error, msg string, skip int) error {
	if err == nil {
		return nil
	}
	return &Error{
		err:   err,
		msg:   msg,
		frame: xerrors.Caller(skip),
	}
}

// WrapError returns a wrapper of the error is it can be used
// for comparison.
func WrapError(err error) error {
	return ErrorOrNilSkip(err, "", 2)
}

// Classify wraps err so that it is recognised as being of the given class,
// keeping the original error in the chain. A nil err stays nil.
func Classify(class error, err error) error {
	if err == nil {
		return nil
	}
	if xerrors.Is(err, class) {
		return err
	}
	return &classified{class: class, err: err, frame: xerrors.Caller(1)}
}

type classified struct {
	class error
	err   error
	frame xerrors.Frame
}

func (c *classified) Error() string {
	return fmt.Sprintf("%v: %v", c.class, c.err)
}

func (c *classified) Unwrap() error {
	return c.err
}

func (c *classified) Is(target error) bool {
	return target == c.class
}

func (c *classified) Format(f fmt.State, r rune) {
	xerrors.FormatError(c, f, r)
}

func (c *classified) FormatError(p xerrors.Printer) error {
	p.Printf("%v: %v", c.class, c.err)
	if p.Detail() {
		c.frame.Format(p)
	}
	return nil
}

func (e *Error) Error() string {
	if e.msg != "" {
		return e.msg + ": " + fmt.Sprintf("%v", e.err)
	}
	return fmt.Sprintf("%v", e.err)
}

// Unwrap returns the next error in the chain.
func (e *Error) Unwrap() error {
	return e.err
}

// Format prints the error to the formatter.
func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

// FormatError prints the error to the printer. It prints
// the stack trace when the '+' is used in combination with
// 'v'.
func (e *Error) FormatError(p xerrors.Printer) error {
	if e.msg != "" {
		p.Printf("%s: %v", e.msg, e.err)
	} else {
		p.Printf("%v", e.err)
	}

	if p.Detail() {
		e.frame.Format(p)
		p.Printf("%+v", e.err)
	}
	return nil
}
