// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/sendanor/cloudclient"
	"go.uber.org/zap"
)

// request records a request made through a fakeTransport.
type request struct {
	Method string
	URL    string
	Opts   cloudclient.GetOptions
	Body   string
}

// fakeTransport is a cloudclient.Transport that records requests and serves
// responses from callbacks.
type fakeTransport struct {
	get  func(url string, opts cloudclient.GetOptions) (*cloudclient.Object, error)
	post func(url string, body any) (*cloudclient.Object, error)

	μ    sync.Mutex
	reqs []request
}

func (f *fakeTransport) Get(_ context.Context, url string, opts cloudclient.GetOptions) (*cloudclient.Object, error) {
	f.μ.Lock()
	f.reqs = append(f.reqs, request{Method: "GET", URL: url, Opts: opts})
	f.μ.Unlock()
	if f.get == nil {
		return nil, errors.New("unexpected GET")
	}
	return f.get(url, opts)
}

func (f *fakeTransport) Post(_ context.Context, url string, body any) (*cloudclient.Object, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	f.μ.Lock()
	f.reqs = append(f.reqs, request{Method: "POST", URL: url, Body: string(data)})
	f.μ.Unlock()
	if f.post == nil {
		return nil, errors.New("unexpected POST")
	}
	return f.post(url, body)
}

func (f *fakeTransport) requests() []request {
	f.μ.Lock()
	defer f.μ.Unlock()
	return append([]request(nil), f.reqs...)
}

// testOptions returns options with an isolated cache and a silent logger.
func testOptions() *cloudclient.Options {
	return &cloudclient.Options{
		Cache:  cloudclient.NewCache(0),
		Logger: zap.NewNop(),
	}
}

const protoID = "9f1b6bb0-64c1-4b0a-a3a9-2b5c6f3b2f4e"

func protoWithType(typ string) string {
	return fmt.Sprintf(`{
  "$id": %q, "$type": %s, "$ref": "http://h/",
  "greeting": "hello",
  "list": [1, 2],
  "_private": true,
  "send": {"$type": "Function", "$args": ["msg"]},
  "getDate": {"$type": "Function"}
}`, protoID, typ)
}

func TestTypeChain(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		typ   string
		name  string
		chain []string
		bases int
	}{
		{`[]`, "", nil, 0},
		{`"Foo"`, "Foo", []string{"Foo"}, 0},
		{`["Foo"]`, "Foo", []string{"Foo"}, 0},
		{`["Foo", "Bar", "Baz"]`, "Foo", []string{"Foo", "Bar", "Baz"}, 2},
	}
	for _, tc := range tests {
		typ, err := cloudclient.ClassFromObject(ctx, mustParse(t, protoWithType(tc.typ)), &fakeTransport{}, testOptions())
		if err != nil {
			t.Errorf("ClassFromObject %s: unexpected error: %v", tc.typ, err)
			continue
		}
		if got := typ.Name(); got != tc.name {
			t.Errorf("Name %s: got %q, want %q", tc.typ, got, tc.name)
		}
		if diff := cmp.Diff(tc.chain, typ.Chain()); diff != "" {
			t.Errorf("Chain %s (-want, +got):\n%s", tc.typ, diff)
		}
		var nb int
		for b := typ.Base(); b != nil; b = b.Base() {
			nb++
			if len(b.Methods()) != 0 {
				t.Errorf("Base %q has methods %q, want none", b.Name(), b.Methods())
			}
		}
		if nb != tc.bases {
			t.Errorf("Bases %s: got %d, want %d", tc.typ, nb, tc.bases)
		}
		for _, name := range tc.chain {
			if !typ.Is(name) {
				t.Errorf("Is(%q): got false, want true", name)
			}
		}
		if typ.Is("Nonesuch") {
			t.Error("Is(Nonesuch): got true, want false")
		}
		if diff := cmp.Diff([]string{"send", "getDate"}, typ.Methods()); diff != "" {
			t.Errorf("Methods (-want, +got):\n%s", diff)
		}
	}

	for _, bad := range []string{`["Foo", "class"]`, `"1st"`, `["Foo", 17]`, `"Date"`} {
		_, err := cloudclient.ClassFromObject(ctx, mustParse(t, protoWithType(bad)), &fakeTransport{}, testOptions())
		var ne *cloudclient.NameError
		if !errors.As(err, &ne) || !ne.Class {
			t.Errorf("ClassFromObject %s: got %v, want class *NameError", bad, err)
		}
	}
}

func TestClassFromObjectErrors(t *testing.T) {
	ctx := context.Background()
	for _, input := range []string{
		`{"$type": "Foo"}`,
		`{"$id": "not-a-uuid", "$type": "Foo"}`,
		fmt.Sprintf(`{"$id": %q}`, protoID),
		fmt.Sprintf(`{"$id": %q, "$type": 5}`, protoID),
		fmt.Sprintf(`{"$id": %q, "$type": {"a": 1}}`, protoID),
	} {
		typ, err := cloudclient.ClassFromObject(ctx, mustParse(t, input), &fakeTransport{}, testOptions())
		if !errors.Is(err, cloudclient.ErrInvalidDescriptor) {
			t.Errorf("ClassFromObject %s: got %v, %v; want %v", input, typ, err, cloudclient.ErrInvalidDescriptor)
		}
	}
}

func TestMethodURL(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		ref, want string
	}{
		{"http://h", "http://h/send"},
		{"http://h/", "http://h/send"},
		{"http://h/obj", "http://h/obj/send"},
		{"http://h/obj/", "http://h/obj/send"},
	}
	for _, tc := range tests {
		schema := mustParse(t, fmt.Sprintf(`{"$id": %q, "$type": "Foo", "$ref": %q, "send": {"$type": "Function"}}`, protoID, tc.ref))
		typ, err := cloudclient.ClassFromObject(ctx, schema, &fakeTransport{}, testOptions())
		if err != nil {
			t.Fatalf("ClassFromObject: unexpected error: %v", err)
		}
		if got, ok := typ.MethodURL("send"); !ok || got != tc.want {
			t.Errorf("MethodURL(send) for %q: got %q, %v; want %q", tc.ref, got, ok, tc.want)
		}
		if got, ok := typ.MethodURL("nonesuch"); ok {
			t.Errorf("MethodURL(nonesuch): got %q, want none", got)
		}
	}
}

func TestCall(t *testing.T) {
	defer leaktest.Check(t)()

	when := time.UnixMilli(1500000000000).UTC()
	ft := &fakeTransport{
		post: func(url string, body any) (*cloudclient.Object, error) {
			switch url {
			case "http://h/send":
				return cloudclient.ParseObject([]byte(`{"$path": "payload", "payload": "ok", "_statusCode": 200}`))
			case "http://h/getDate":
				return cloudclient.ParseObject([]byte(`{"$type": "Date", "$path": "payload", "payload": 1500000000000}`))
			}
			return nil, cloudclient.NewHTTPError(404)
		},
	}
	ctx := context.Background()
	typ, err := cloudclient.ClassFromObject(ctx, mustParse(t, protoWithType(`"Foo"`)), ft, testOptions())
	if err != nil {
		t.Fatalf("ClassFromObject: unexpected error: %v", err)
	}
	obj, err := typ.New(ctx, nil)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}

	got, err := obj.Call(ctx, "send", map[string]any{"foo": "bar"})
	if err != nil || got != "ok" {
		t.Errorf("Call send: got %v, %v; want ok, nil", got, err)
	}
	got, err = obj.Call(ctx, "getDate")
	if err != nil {
		t.Errorf("Call getDate: unexpected error: %v", err)
	} else if d, ok := got.(time.Time); !ok || !d.Equal(when) {
		t.Errorf("Call getDate: got %v, want %v", got, when)
	}
	if got, err := obj.Call(ctx, "nonesuch"); !errors.Is(err, cloudclient.ErrNoMethod) {
		t.Errorf("Call nonesuch: got %v, %v; want %v", got, err, cloudclient.ErrNoMethod)
	}

	want := []request{
		{Method: "POST", URL: "http://h/send", Body: `{"args":[{"foo":"bar"}]}`},
		{Method: "POST", URL: "http://h/getDate", Body: `{"args":[]}`},
	}
	if diff := cmp.Diff(want, ft.requests()); diff != "" {
		t.Errorf("Requests (-want, +got):\n%s", diff)
	}

	t.Run("Error", func(t *testing.T) {
		ft := &fakeTransport{post: func(string, any) (*cloudclient.Object, error) {
			return nil, cloudclient.NewHTTPError(500, "boom")
		}}
		typ, err := cloudclient.ClassFromObject(ctx, mustParse(t, protoWithType(`"Foo"`)), ft, testOptions())
		if err != nil {
			t.Fatalf("ClassFromObject: unexpected error: %v", err)
		}
		_, err = typ.Call(ctx, "send", 1, 2)
		var he *cloudclient.HTTPError
		if !errors.As(err, &he) || he.Code != 500 || he.Message != "boom" {
			t.Errorf("Call: got %v, want HTTP 500 boom", err)
		}
	})
}

func TestNew(t *testing.T) {
	ctx := context.Background()
	typ, err := cloudclient.ClassFromObject(ctx, mustParse(t, protoWithType(`["Foo", "Bar"]`)), &fakeTransport{}, testOptions())
	if err != nil {
		t.Fatalf("ClassFromObject: unexpected error: %v", err)
	}

	t.Run("Defaults", func(t *testing.T) {
		obj, err := typ.New(ctx, nil)
		if err != nil {
			t.Fatalf("New: unexpected error: %v", err)
		}
		if got, want := mustJSON(t, obj.Snapshot()), `{"greeting":"hello","list":[1,2]}`; got != want {
			t.Errorf("Data: got %s, want %s", got, want)
		}
		if obj.TypeName() != "Foo" || !obj.Is("Bar") || obj.Polling() {
			t.Errorf("Instance: got type %q, is Bar %v, polling %v", obj.TypeName(), obj.Is("Bar"), obj.Polling())
		}
	})

	t.Run("Override", func(t *testing.T) {
		data := mustParse(t, `{
  "$id": "i1", "$hash": "h1", "$ref": "http://h/",
  "greeting": "bonjour", "extra": {"k": "v"},
  "_hidden": 1, "$prototype": {"x": 1}
}`)
		obj, err := typ.New(ctx, data)
		if err != nil {
			t.Fatalf("New: unexpected error: %v", err)
		}
		want := `{"greeting":"bonjour","list":[1,2],"$id":"i1","$hash":"h1","$ref":"http://h/","extra":{"k":"v"}}`
		if got := mustJSON(t, obj.Snapshot()); got != want {
			t.Errorf("Data: got %s, want %s", got, want)
		}
		if obj.ID() != "i1" || obj.Hash() != "h1" || obj.Ref() != "http://h/" {
			t.Errorf("Instance: got id %q hash %q ref %q", obj.ID(), obj.Hash(), obj.Ref())
		}

		// The instance does not share structure with its sources.
		data.Object("extra").Set("k", "changed")
		if v, _ := obj.Get("extra"); mustJSON(t, v) != `{"k":"v"}` {
			t.Errorf("Instance changed with its input: got %s", mustJSON(t, v))
		}
		v, _ := obj.Get("list")
		v.([]any)[0] = "changed"
		other, _ := typ.New(ctx, nil)
		if got := mustJSON(t, other.Snapshot()); got != `{"greeting":"hello","list":[1,2]}` {
			t.Errorf("Prototype changed by an instance: got %s", got)
		}
	})

	t.Run("Inert", func(t *testing.T) {
		obj, err := typ.Base().New(ctx, mustParse(t, `{"greeting": "hi"}`))
		if err != nil {
			t.Fatalf("New: unexpected error: %v", err)
		}
		if n := len(obj.Keys()); n != 0 {
			t.Errorf("Base instance has %d keys, want 0", n)
		}
		if obj.TypeName() != "Bar" {
			t.Errorf("Base instance type: got %q, want Bar", obj.TypeName())
		}
	})
}
