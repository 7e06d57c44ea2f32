package update

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies update failures.
type Kind int

const (
	KindConnectivity Kind = iota + 1 // network unreachable, timeout or bad status on fetch
	KindFormat                       // unparsable manifest or state file
	KindDownload                     // failure while transferring the archive
	KindArchive                      // corrupt or unreadable package
	KindFilesystem                   // permission or space issues on disk
	KindParse                        // malformed version string
	KindTimeout                      // a configured deadline expired
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConnectivity = errors.New("connectivity error")
	ErrFormat       = errors.New("format error")
	ErrDownload     = errors.New("download error")
	ErrArchive      = errors.New("archive error")
	ErrFilesystem   = errors.New("filesystem error")
	ErrParse        = errors.New("parse error")
	ErrTimeout      = errors.New("timeout")
)

var (
	// ErrBusy is returned when a check or apply is already in flight.
	ErrBusy = errors.New("operation already in progress")
	// ErrNoPendingUpdate is returned by Apply when no update has been recorded.
	ErrNoPendingUpdate = errors.New("no pending update")
)

var kindSentinels = map[Kind]error{
	KindConnectivity: ErrConnectivity,
	KindFormat:       ErrFormat,
	KindDownload:     ErrDownload,
	KindArchive:      ErrArchive,
	KindFilesystem:   ErrFilesystem,
	KindParse:        ErrParse,
	KindTimeout:      ErrTimeout,
}

// String returns the sentinel message of the kind.
func (k Kind) String() string {
	if err, ok := kindSentinels[k]; ok {
		return err.Error()
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified update failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// classify wraps err as kind, or as KindTimeout when the deadline expired.
func classify(ctx context.Context, kind Kind, op string, err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return newError(KindTimeout, op, err)
	}
	return newError(kind, op, err)
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
