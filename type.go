// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/creachadair/mds/value"
	"go.uber.org/zap"
)

// ErrNoMethod is reported (wrapped) by Call for a method the type does not
// declare.
var ErrNoMethod = errors.New("no such method")

// A Type is a proxy type synthesized from a remote object's prototype.
//
// A Type built from a $type list of several names is the most-derived level
// of a chain whose other levels are inert markers: they have names but no
// methods or data, and exist so that Is and Chain reflect the full list. Only
// the most-derived level installs data and starts polling in New. A Type is
// immutable after construction and safe for concurrent use.
type Type struct {
	name string
	base *Type

	// The remaining fields are populated only on the most-derived level.
	setup      bool
	ref        string
	schema     *Object
	methods    []string
	properties []string
	urls       map[string]string // method name → call URL
	t          Transport
	poll       bool
	cfg        Config
	log        *zap.Logger
	onUpdate   func(*Instance)
}

// typeParams carries the resolver state a new type captures.
type typeParams struct {
	t        Transport
	poll     bool
	cfg      Config
	log      *zap.Logger
	onUpdate func(*Instance)
}

func newTypeParams(t Transport, opts *Options) typeParams {
	return typeParams{
		t:        t,
		poll:     opts.longPolling(),
		cfg:      opts.config(),
		log:      opts.logger(),
		onUpdate: opts.onUpdate(),
	}
}

// buildType constructs a proxy type for schema with the given type names,
// most derived first. An empty list yields an anonymous type.
func buildType(schema *Object, names []string, p typeParams) (*Type, error) {
	methods, properties, err := Classify(schema)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := CheckClassName(name); err != nil {
			return nil, err
		}
	}

	var base *Type
	for i := len(names) - 1; i >= 1; i-- {
		base = &Type{name: names[i], base: base}
	}
	typ := &Type{
		base:       base,
		setup:      true,
		ref:        schema.String(KeyRef),
		schema:     schema.Clone(),
		methods:    methods,
		properties: properties,
		urls:       make(map[string]string, len(methods)),
		t:          p.t,
		poll:       p.poll,
		cfg:        p.cfg,
		log:        p.log,
		onUpdate:   p.onUpdate,
	}
	if len(names) != 0 {
		typ.name = names[0]
	}
	for _, m := range methods {
		typ.urls[m] = joinURL(typ.ref, m)
	}
	rootMetrics.typesBuilt.Add(1)
	return typ, nil
}

// joinURL appends name to ref as a path element.
func joinURL(ref, name string) string {
	return ref + value.Cond(strings.HasSuffix(ref, "/"), "", "/") + name
}

// Name returns the name of t, or "" if t is anonymous.
func (t *Type) Name() string { return t.name }

// Base returns the next level of the type chain of t, or nil if t is the root.
func (t *Type) Base() *Type { return t.base }

// Chain returns the names of t and its bases, most derived first.
func (t *Type) Chain() []string {
	var out []string
	for cur := t; cur != nil; cur = cur.base {
		if cur.name != "" {
			out = append(out, cur.name)
		}
	}
	return out
}

// Is reports whether name is the name of t or any of its bases.
func (t *Type) Is(name string) bool {
	for cur := t; cur != nil; cur = cur.base {
		if cur.name != "" && cur.name == name {
			return true
		}
	}
	return false
}

// Methods returns the names of the remote methods of t, in descriptor order.
func (t *Type) Methods() []string { return slices.Clone(t.methods) }

// Properties returns the names of the data members declared by the prototype
// of t, in descriptor order.
func (t *Type) Properties() []string { return slices.Clone(t.properties) }

// Ref returns the URL of the prototype of t, or "" if it has none.
func (t *Type) Ref() string { return t.ref }

// MethodURL returns the URL that calls to the named method are posted to, and
// reports whether t has such a method.
func (t *Type) MethodURL(name string) (string, bool) {
	u, ok := t.urls[name]
	return u, ok
}

// callBody is the request body of a remote method call.
type callBody struct {
	Args []any `json:"args"`
}

// params returns the resolver state captured when t was built.
func (t *Type) params() typeParams {
	return typeParams{t: t.t, poll: t.poll, cfg: t.cfg, log: t.log, onUpdate: t.onUpdate}
}

// Call invokes the named remote method with the given arguments and returns
// its payload, as decoded by ParsePayload. The call uses the transport of the
// resolution that built t.
func (t *Type) Call(ctx context.Context, name string, args ...any) (any, error) {
	return t.call(ctx, t.t, name, args)
}

func (t *Type) call(ctx context.Context, tr Transport, name string, args []any) (any, error) {
	u, ok := t.MethodURL(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoMethod, name)
	}
	if args == nil {
		args = []any{}
	}
	rootMetrics.callOut.Add(1)
	rsp, err := tr.Post(ctx, u, callBody{Args: args})
	if err != nil {
		rootMetrics.callOutErr.Add(1)
		return nil, fmt.Errorf("call %s: %w", name, err)
	}
	return ParsePayload(rsp)
}

// New constructs an instance of t, initialized from the prototype's data and
// then from data, if non-nil. If long polling was enabled when t was
// resolved, New also starts a poller keeping the instance synchronized; in
// that case the instance must have both a $ref and a $hash, or New reports
// ErrNoPollTarget. The poller is not governed by ctx; call Stop on the
// instance to end it.
func (t *Type) New(ctx context.Context, data *Object) (*Instance, error) {
	return t.newInstance(ctx, data, t.params())
}

// newInstance implements New with the transport and polling settings of p.
func (t *Type) newInstance(ctx context.Context, data *Object, p typeParams) (*Instance, error) {
	inst := &Instance{typ: t, t: p.t, props: NewObject()}
	if !t.setup {
		return inst, nil
	}
	installStatic(inst.props, t.properties, t.schema, data)
	if !p.poll {
		return inst, nil
	}

	ref, hash := inst.Ref(), inst.Hash()
	if ref == "" || hash == "" {
		return nil, ErrNoPollTarget
	}
	inst.poll = newPoller(inst, ref, hash, p)
	inst.poll.start(ctx)
	return inst, nil
}

// installStatic populates dst with deep copies of the named properties of
// schema, skipping names that begin with "$" or "_", and then with the
// contents of data, skipping keys that begin with "_" and $prototype. Values
// from data replace values from schema.
func installStatic(dst *Object, properties []string, schema, data *Object) {
	for _, key := range properties {
		if isHidden(key) {
			continue
		}
		v, _ := schema.Get(key)
		dst.Set(key, deepCopy(v))
	}
	for _, key := range data.Keys() {
		if key == KeyPrototype || strings.HasPrefix(key, "_") {
			continue
		}
		v, _ := data.Get(key)
		dst.Set(key, deepCopy(v))
	}
}
