package market

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures crossing a component boundary.
type ErrorKind string

const (
	KindUpstreamUnavailable     ErrorKind = "upstream_unavailable"
	KindMalformedResponse       ErrorKind = "malformed_upstream_response"
	KindAssetNotFoundInUniverse ErrorKind = "asset_not_found_in_universe"
)

// Sentinels usable with errors.Is.
var (
	ErrUpstreamUnavailable     = &Error{Kind: KindUpstreamUnavailable}
	ErrMalformedResponse       = &Error{Kind: KindMalformedResponse}
	ErrAssetNotFoundInUniverse = &Error{Kind: KindAssetNotFoundInUniverse}
)

// Error is a typed market-data failure. Source names the upstream (usually a DEX code or endpoint).
type Error struct {
	Kind   ErrorKind
	Source string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Source != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Source)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels compare by kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Unavailable wraps err as an UpstreamUnavailable failure.
func Unavailable(source string, err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Source: source, Err: err}
}

// Malformed wraps err as a MalformedUpstreamResponse failure.
func Malformed(source string, err error) error {
	return &Error{Kind: KindMalformedResponse, Source: source, Err: err}
}

// NotFound reports that symbol is absent from the universe of dex.
func NotFound(dex, symbol string) error {
	return &Error{Kind: KindAssetNotFoundInUniverse, Source: dex, Err: fmt.Errorf("symbol %s", symbol)}
}

// KindOf returns the kind of err, or "" when err is not a market error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
