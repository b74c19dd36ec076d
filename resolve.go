// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ClassFromObject returns the proxy type for schema, a prototype descriptor.
// Schema must have a $id that is a UUID and a $type that is a string or a list
// of strings. Types are cached by their most-derived name and $id, so a
// prototype seen before yields the same *Type.
//
// If t == nil, DefaultTransport() is used.
// If opts == nil, default options are used.
func ClassFromObject(ctx context.Context, schema *Object, t Transport, opts *Options) (*Type, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: missing prototype", ErrInvalidDescriptor)
	}
	id := schema.String(KeyID)
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a UUID", ErrInvalidDescriptor, KeyID, id)
	}
	tv, _ := schema.Get(KeyType)
	switch tv.(type) {
	case string, []any, []string:
	default:
		return nil, fmt.Errorf("%w: %s is %s, not string or array", ErrInvalidDescriptor, KeyType, jsonKind(tv))
	}
	names := ParseTypeToArray(tv)
	var key string
	if len(names) != 0 {
		key = names[0]
	}
	if t == nil {
		t = DefaultTransport()
	}
	return opts.cache().lookup(key, id, opts.logger(), func() (*Type, error) {
		return buildType(schema, names, newTypeParams(t, opts))
	})
}

// ClassFromURL fetches the instance descriptor at url and returns the proxy
// type for its $prototype. Credentials in url are forwarded to requests made
// by the type to the same host.
func ClassFromURL(ctx context.Context, url string, t Transport, opts *Options) (*Type, error) {
	if t == nil {
		t = DefaultTransport()
	}
	t = WithAuth(t, url)
	body, err := t.Get(ctx, url, GetOptions{})
	if err != nil {
		return nil, err
	}
	proto := body.Object(KeyPrototype)
	if proto == nil {
		return nil, fmt.Errorf("%w: %s has no %s", ErrInvalidDescriptor, url, KeyPrototype)
	}
	return ClassFromObject(ctx, proto, t, opts)
}

// InstanceFromObject returns a proxy instance for desc, an instance descriptor
// with a $prototype. See Type.New for the effect of long polling. The instance
// uses t and opts even if its type was built by an earlier resolution.
func InstanceFromObject(ctx context.Context, desc *Object, t Transport, opts *Options) (*Instance, error) {
	proto := desc.Object(KeyPrototype)
	if proto == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidDescriptor, KeyPrototype)
	}
	if t == nil {
		t = DefaultTransport()
	}
	typ, err := ClassFromObject(ctx, proto, t, opts)
	if err != nil {
		return nil, err
	}
	return typ.newInstance(ctx, desc, newTypeParams(t, opts))
}

// InstanceFromURL fetches the instance descriptor at url and returns a proxy
// instance for it. Credentials in url are forwarded to requests made by the
// instance to the same host.
func InstanceFromURL(ctx context.Context, url string, t Transport, opts *Options) (*Instance, error) {
	if t == nil {
		t = DefaultTransport()
	}
	t = WithAuth(t, url)
	body, err := t.Get(ctx, url, GetOptions{})
	if err != nil {
		return nil, err
	}
	return InstanceFromObject(ctx, body, t, opts)
}

var isURL = regexp.MustCompile(`^(ftp|https?)://`)

// Resolve returns a proxy instance for arg, which may be an instance
// descriptor (*Object or map[string]any) or the URL of one (a string with an
// http, https, or ftp scheme). Any other argument yields an
// *ArgumentTypeError.
func Resolve(ctx context.Context, arg any, t Transport, opts *Options) (*Instance, error) {
	switch v := arg.(type) {
	case *Object:
		return InstanceFromObject(ctx, v, t, opts)
	case map[string]any:
		return InstanceFromObject(ctx, ObjectFromMap(v), t, opts)
	case string:
		if isURL.MatchString(v) {
			return InstanceFromURL(ctx, v, t, opts)
		}
	}
	return nil, &ArgumentTypeError{Value: arg}
}
