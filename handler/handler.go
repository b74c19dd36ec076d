// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package handler provides adapters to the remotes.Method type for functions
// with other signatures.
//
// A parameter of type P is decoded from the first argument of the call as
// JSON. If the call has no arguments, the parameter is the zero value of P.
// A call with more than one argument is rejected. As a special case, if P is
// []json.RawMessage it receives all the arguments undecoded.
//
// Results are returned to the caller encoded as JSON, except that a time.Time
// is sent as a Date.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sendanor/cloudclient"
	"github.com/sendanor/cloudclient/remotes"
)

// reqContextKey is a context key for the request value to a handler.
type reqContextKey struct{}

// ContextRequest returns the original request passed to the handler, or nil if
// ctx has no associated request. The context passed to a function adapted by
// this package will have this value.
func ContextRequest(ctx context.Context) *remotes.Request {
	if v := ctx.Value(reqContextKey{}); v != nil {
		return v.(*remotes.Request)
	}
	return nil
}

// ParamResultError adapts a function f that accepts parameters of type P and
// returns a result of type R and an error, to a remotes.Method.
func ParamResultError[P, R any](f func(context.Context, P) (R, error)) remotes.Method {
	return func(ctx context.Context, req *remotes.Request) (any, error) {
		var p P
		if err := unmarshal(req.Args, &p); err != nil {
			return nil, err
		}
		hctx := context.WithValue(ctx, reqContextKey{}, req)
		r, err := f(hctx, p)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// ParamResult adapts a function f that accepts parameters of type P and
// returns a result of type R without error, to a remotes.Method.
func ParamResult[P, R any](f func(context.Context, P) R) remotes.Method {
	return func(ctx context.Context, req *remotes.Request) (any, error) {
		var p P
		if err := unmarshal(req.Args, &p); err != nil {
			return nil, err
		}
		hctx := context.WithValue(ctx, reqContextKey{}, req)
		return f(hctx, p), nil
	}
}

// ParamError adapts a function f that accepts parameters of type P and returns
// an error with no result, to a remotes.Method. The result of a successful
// call is null.
func ParamError[P any](f func(context.Context, P) error) remotes.Method {
	return func(ctx context.Context, req *remotes.Request) (any, error) {
		var p P
		if err := unmarshal(req.Args, &p); err != nil {
			return nil, err
		}
		hctx := context.WithValue(ctx, reqContextKey{}, req)
		return nil, f(hctx, p)
	}
}

// ResultError adapts a function f that accepts no parameters and returns a
// result of type R and an error, to a remotes.Method. Any arguments to the
// call are ignored.
func ResultError[R any](f func(context.Context) (R, error)) remotes.Method {
	return func(ctx context.Context, req *remotes.Request) (any, error) {
		hctx := context.WithValue(ctx, reqContextKey{}, req)
		r, err := f(hctx)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Result adapts a function f that accepts no parameters and returns a result
// of type R without error, to a remotes.Method. Any arguments to the call are
// ignored.
func Result[R any](f func(context.Context) R) remotes.Method {
	return func(ctx context.Context, req *remotes.Request) (any, error) {
		hctx := context.WithValue(ctx, reqContextKey{}, req)
		return f(hctx), nil
	}
}

// unmarshal decodes args into v, which must be a pointer. If v is a pointer to
// a []json.RawMessage, it receives args unmodified; otherwise args must have at
// most one element, which is decoded into v. Decoding failures are reported as
// HTTP 400 errors.
func unmarshal(args []json.RawMessage, v any) error {
	if raw, ok := v.(*[]json.RawMessage); ok {
		*raw = args
		return nil
	}
	switch len(args) {
	case 0:
		return nil
	case 1:
		if err := json.Unmarshal(args[0], v); err != nil {
			return cloudclient.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid argument: %v", err))
		}
		return nil
	default:
		return cloudclient.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("got %d arguments, want at most 1", len(args)))
	}
}
