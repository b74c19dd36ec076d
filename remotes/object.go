// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package remotes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sendanor/cloudclient"
)

// A Method implements a remote method of an Object. The value it returns is
// encoded as JSON in the response payload, except that a time.Time is sent as
// a Date payload.
type Method func(ctx context.Context, req *Request) (any, error)

// A Request is an inbound call to a remote method.
type Request struct {
	Object *Object           // the object whose method was called
	Method string            // the name of the method
	Args   []json.RawMessage // the encoded arguments, in order
	HTTP   *http.Request     // the underlying HTTP request
}

type method struct {
	args []string
	fn   Method
}

// An Object is a value published by a Server as a remote object. Its data
// fields are visible to clients in its descriptor, and each change to a field
// advances its version, waking clients that are long polling for it.
//
// An Object is safe for concurrent use.
type Object struct {
	id      string
	protoID string
	types   []string

	μ       sync.Mutex
	data    *cloudclient.Object
	methods *cloudclient.Object // name → *method, in declaration order
	version int

	// Closed and replaced when data changes.
	changed chan struct{}
}

// NewObject constructs a new object with the given type names, most derived
// first. The object has a fresh $id, and a prototype $id shared by no other
// object.
func NewObject(types ...string) *Object {
	for _, name := range types {
		if err := cloudclient.CheckClassName(name); err != nil {
			panic(err.Error())
		}
	}
	return &Object{
		id:      uuid.NewString(),
		protoID: uuid.NewString(),
		types:   types,
		data:    cloudclient.NewObject(),
		version: 1,
		changed: make(chan struct{}),
		methods: cloudclient.NewObject(),
	}
}

// ID returns the $id of o.
func (o *Object) ID() string { return o.id }

// Field sets the initial value of the named data field of o and returns o to
// permit chaining. It panics if name is not a valid member name.
func (o *Object) Field(name string, v any) *Object {
	o.Set(name, v)
	return o
}

// Method registers m as the implementation of the named method of o, whose
// arguments are described by args, and returns o to permit chaining. It
// panics if name is not a valid member name or is already in use.
func (o *Object) Method(name string, args []string, m Method) *Object {
	if err := cloudclient.CheckName(name); err != nil {
		panic(err.Error())
	}
	o.μ.Lock()
	defer o.μ.Unlock()
	if o.methods.Has(name) || o.data.Has(name) {
		panic("duplicate member name: " + name)
	}
	o.methods.Set(name, &method{args: args, fn: m})
	return o
}

// Set sets the named data field of o to v and advances the version of o. It
// panics if name is not a valid member name or names a method.
func (o *Object) Set(name string, v any) {
	if err := cloudclient.CheckName(name); err != nil {
		panic(err.Error())
	}
	o.μ.Lock()
	defer o.μ.Unlock()
	if o.methods.Has(name) {
		panic("field name is a method: " + name)
	}
	o.data.Set(name, v)
	o.version++
	close(o.changed)
	o.changed = make(chan struct{})
}

// Get returns the current value of the named data field of o.
func (o *Object) Get(name string) (any, bool) {
	o.μ.Lock()
	defer o.μ.Unlock()
	return o.data.Get(name)
}

// Hash returns the current version tag of o.
func (o *Object) Hash() string {
	o.μ.Lock()
	defer o.μ.Unlock()
	return o.hashLocked()
}

func (o *Object) hashLocked() string { return "v" + strconv.Itoa(o.version) }

// watch returns the current version tag of o and a channel that is closed
// when it next changes.
func (o *Object) watch() (string, <-chan struct{}) {
	o.μ.Lock()
	defer o.μ.Unlock()
	return o.hashLocked(), o.changed
}

func (o *Object) lookup(name string) *method {
	o.μ.Lock()
	defer o.μ.Unlock()
	v, _ := o.methods.Get(name)
	m, _ := v.(*method)
	return m
}

// descriptor renders the instance descriptor of o as published at ref.
func (o *Object) descriptor(ref string) *cloudclient.Object {
	o.μ.Lock()
	defer o.μ.Unlock()

	proto := cloudclient.NewObject()
	proto.Set(cloudclient.KeyID, o.protoID)
	if len(o.types) == 1 {
		proto.Set(cloudclient.KeyType, o.types[0])
	} else {
		types := make([]any, len(o.types))
		for i, t := range o.types {
			types[i] = t
		}
		proto.Set(cloudclient.KeyType, types)
	}
	proto.Set(cloudclient.KeyRef, ref)
	for _, name := range o.methods.Keys() {
		v, _ := o.methods.Get(name)
		m := v.(*method)
		args := make([]any, len(m.args))
		for i, a := range m.args {
			args[i] = a
		}
		fd := cloudclient.NewObject()
		fd.Set(cloudclient.KeyType, cloudclient.FunctionType)
		fd.Set(cloudclient.KeyRef, strings.TrimSuffix(ref, "/")+"/"+name)
		fd.Set(cloudclient.KeyArgs, args)
		proto.Set(name, fd)
	}

	desc := cloudclient.NewObject()
	desc.Set(cloudclient.KeyID, o.id)
	desc.Set(cloudclient.KeyHash, o.hashLocked())
	desc.Set(cloudclient.KeyRef, ref)
	cloudclient.MergeUpdate(desc, o.data)
	desc.Set(cloudclient.KeyPrototype, proto)
	return desc
}
