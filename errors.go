// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidDescriptor is reported (wrapped) when a descriptor does not
	// have the required shape.
	ErrInvalidDescriptor = errors.New("invalid descriptor")

	// ErrNotObject is reported (wrapped) when a response body is not a JSON
	// object.
	ErrNotObject = errors.New("response is not a JSON object")

	// ErrNoPollTarget is reported when long polling is requested for an
	// instance that does not have both a $ref and a $hash.
	ErrNoPollTarget = &ConfigError{Message: "long polling requires $ref and $hash"}
)

// NameError reports an invalid or reserved identifier in a descriptor.
type NameError struct {
	Name   string // the offending identifier
	Class  bool   // whether the name was used as a type name
	Reason string // e.g., "is a reserved word"
}

// Error satisfies the error interface.
func (e *NameError) Error() string {
	if e.Class {
		return fmt.Sprintf("class name %q %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("name %q %s", e.Name, e.Reason)
}

// HTTPError reports an unsuccessful HTTP status from a remote peer.
type HTTPError struct {
	Code    int         // HTTP status code
	Message string      // defaults to "<code> <status text>"
	Headers http.Header // response headers, never nil
}

// NewHTTPError constructs an *HTTPError from any subset of a status code
// (int), a message (string), and headers (http.Header or map[string]string),
// given in any order. Other argument types are ignored. The code defaults to
// 500 and the message to the standard text for the code.
func NewHTTPError(args ...any) *HTTPError {
	e := &HTTPError{}
	for _, arg := range args {
		switch t := arg.(type) {
		case int:
			e.Code = t
		case string:
			e.Message = t
		case http.Header:
			e.Headers = t
		case map[string]string:
			h := make(http.Header, len(t))
			for k, v := range t {
				h.Set(k, v)
			}
			e.Headers = h
		case map[string][]string:
			e.Headers = http.Header(t)
		}
	}
	if e.Code == 0 {
		e.Code = http.StatusInternalServerError
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
	}
	if e.Headers == nil {
		e.Headers = make(http.Header)
	}
	return e
}

// Error satisfies the error interface.
func (e *HTTPError) Error() string { return e.Message }

// IsNotModified reports whether err is an *HTTPError with status 304.
func IsNotModified(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Code == http.StatusNotModified
}

// ConfigError reports a configuration that cannot be honored.
type ConfigError struct {
	Message string
}

// Error satisfies the error interface.
func (e *ConfigError) Error() string { return "configuration error: " + e.Message }

// ArgumentTypeError reports an argument to Resolve that is neither a
// descriptor nor a supported URL.
type ArgumentTypeError struct {
	Value any
}

// Error satisfies the error interface.
func (e *ArgumentTypeError) Error() string {
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("unsupported argument: string %q is not an HTTP or FTP URL", s)
	}
	return fmt.Sprintf("unsupported argument type %T", e.Value)
}
