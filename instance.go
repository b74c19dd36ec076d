// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"context"
	"fmt"
	"sync"
)

// An Instance is a local proxy for a remote object. Its data is a copy of the
// remote object's properties, refreshed by a poller if long polling is
// enabled, and its methods call the remote object.
//
// An Instance is safe for concurrent use.
type Instance struct {
	typ  *Type
	t    Transport
	poll *poller // nil if not polling

	μ     sync.Mutex
	props *Object
}

// Type returns the proxy type of i.
func (i *Instance) Type() *Type { return i.typ }

// TypeName returns the most-derived type name of i, or "" if its type is
// anonymous.
func (i *Instance) TypeName() string { return i.typ.Name() }

// Is reports whether i is an instance of the named type or one of its bases.
func (i *Instance) Is(name string) bool { return i.typ.Is(name) }

// Get returns a copy of the value of the named property of i, and reports
// whether it was present.
func (i *Instance) Get(name string) (any, bool) {
	i.μ.Lock()
	defer i.μ.Unlock()
	v, ok := i.props.Get(name)
	return deepCopy(v), ok
}

// Keys returns the names of the properties of i in order.
func (i *Instance) Keys() []string {
	i.μ.Lock()
	defer i.μ.Unlock()
	return i.props.Keys()
}

// Snapshot returns a copy of the current properties of i.
func (i *Instance) Snapshot() *Object {
	i.μ.Lock()
	defer i.μ.Unlock()
	return i.props.Clone()
}

func (i *Instance) str(key string) string {
	i.μ.Lock()
	defer i.μ.Unlock()
	return i.props.String(key)
}

// ID returns the $id of i, or "".
func (i *Instance) ID() string { return i.str(KeyID) }

// Ref returns the $ref of i, or "".
func (i *Instance) Ref() string { return i.str(KeyRef) }

// Hash returns the current $hash of i, or "".
func (i *Instance) Hash() string { return i.str(KeyHash) }

// Call invokes the named remote method of i through the transport i was
// resolved with. See Type.Call.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	return i.typ.call(ctx, i.t, name, args)
}

// Polling reports whether a poller is keeping i synchronized.
func (i *Instance) Polling() bool { return i.poll != nil && i.poll.running.Load() }

// Stop ends long polling for i, if it is active. A request already in flight
// is allowed to complete, but no further requests are made. Stop is safe to
// call more than once, and does not block; use Wait to wait for the poller to
// exit.
func (i *Instance) Stop() {
	if i.poll != nil {
		i.poll.stop()
	}
}

// Wait blocks until the poller of i, if any, has exited.
func (i *Instance) Wait() {
	if i.poll != nil {
		i.poll.tasks.Wait()
	}
}

// merge applies an update from the remote object to i.
func (i *Instance) merge(src *Object) error {
	i.μ.Lock()
	defer i.μ.Unlock()
	if ref, ok := src.Get(KeyRef); ok {
		cur := i.props.String(KeyRef)
		if s, _ := ref.(string); cur != "" && s != cur {
			return fmt.Errorf("%w: update %s %v does not match %q", ErrInvalidDescriptor, KeyRef, ref, cur)
		}
	}
	MergeUpdate(i.props, src)
	return nil
}

// MergeUpdate copies into dst the members of src that carry remote object
// state: $id, $hash, and every key that does not begin with "$" or "_".
// Values are deep-copied.
func MergeUpdate(dst, src *Object) {
	for _, key := range src.Keys() {
		if key == KeyID || key == KeyHash || !isHidden(key) {
			v, _ := src.Get(key)
			dst.Set(key, deepCopy(v))
		}
	}
}
