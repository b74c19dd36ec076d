// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/synctest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sendanor/cloudclient"
)

const instanceID = "3d0e5f5e-7a8c-4a59-9d4f-1c3e0d6b9a01"

// pollDescriptor returns an instance descriptor with the given hash.
func pollDescriptor(t *testing.T, hash string) *cloudclient.Object {
	t.Helper()
	return mustParse(t, fmt.Sprintf(`{
  "$id": %q, "$hash": %q, "$ref": "http://h/obj",
  "value": "A",
  "$prototype": {"$id": %q, "$type": "Thing", "$ref": "http://h/obj"}
}`, instanceID, hash, protoID))
}

func pollOptions(onUpdate func(*cloudclient.Instance)) *cloudclient.Options {
	opts := testOptions()
	opts.EnableLongPolling = true
	opts.Config = &cloudclient.Config{MinDelay: 500 * time.Millisecond, PreferWait: 20 * time.Second}
	opts.OnUpdate = onUpdate
	return opts
}

func TestPollSequence(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		start := time.Now()
		var pollTimes []time.Duration
		ft := &fakeTransport{
			get: func(url string, opts cloudclient.GetOptions) (*cloudclient.Object, error) {
				pollTimes = append(pollTimes, time.Since(start))
				switch opts.ETag {
				case "A":
					return cloudclient.ParseObject([]byte(`{"$id": "x", "$hash": "B", "$ref": "http://h/obj", "value": "B", "_statusCode": 200}`))
				case "B":
					return cloudclient.ParseObject([]byte(`{"$hash": "C", "value": "C", "$type": "Other"}`))
				}
				return nil, fmt.Errorf("unexpected poll with hash %q", opts.ETag)
			},
		}

		var updates []string
		opts := pollOptions(func(inst *cloudclient.Instance) {
			updates = append(updates, inst.Hash())
			if inst.Hash() == "C" {
				inst.Stop()
			}
		})
		obj, err := cloudclient.InstanceFromObject(t.Context(), pollDescriptor(t, "A"), ft, opts)
		if err != nil {
			t.Fatalf("InstanceFromObject: unexpected error: %v", err)
		}
		if !obj.Polling() {
			t.Error("Polling: got false, want true")
		}
		obj.Wait()

		if obj.Polling() {
			t.Error("Polling after stop: got true, want false")
		}
		want := []request{
			{Method: "GET", URL: "http://h/obj", Opts: cloudclient.GetOptions{ETag: "A", Wait: 20 * time.Second}},
			{Method: "GET", URL: "http://h/obj", Opts: cloudclient.GetOptions{ETag: "B", Wait: 20 * time.Second}},
		}
		if diff := cmp.Diff(want, ft.requests()); diff != "" {
			t.Errorf("Requests (-want, +got):\n%s", diff)
		}
		if diff := cmp.Diff([]time.Duration{500 * time.Millisecond, time.Second}, pollTimes); diff != "" {
			t.Errorf("Poll times (-want, +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"B", "C"}, updates); diff != "" {
			t.Errorf("Updates (-want, +got):\n%s", diff)
		}
		if got, want := mustJSON(t, obj.Snapshot()), `{"$id":"x","$hash":"C","$ref":"http://h/obj","value":"C"}`; got != want {
			t.Errorf("Data: got %s, want %s", got, want)
		}
	})
}

func TestPollSkipsAndErrors(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var n int
		ft := &fakeTransport{
			get: func(url string, opts cloudclient.GetOptions) (*cloudclient.Object, error) {
				n++
				switch n {
				case 1:
					return nil, errors.New("connection refused")
				case 2:
					return cloudclient.ParseObject([]byte(`{"_statusCode": 304}`))
				case 3:
					return nil, cloudclient.NewHTTPError(304)
				case 4:
					return nil, nil
				case 5:
					return cloudclient.ParseObject([]byte(`{"$ref": "http://elsewhere/", "$hash": "Z", "value": "Z"}`))
				case 6:
					return nil, cloudclient.NewHTTPError(503)
				case 7:
					return cloudclient.ParseObject([]byte(`{"$hash": "B", "value": "B"}`))
				}
				return nil, fmt.Errorf("unexpected poll %d", n)
			},
		}
		opts := pollOptions(func(inst *cloudclient.Instance) { inst.Stop() })

		obj, err := cloudclient.InstanceFromObject(t.Context(), pollDescriptor(t, "A"), ft, opts)
		if err != nil {
			t.Fatalf("InstanceFromObject: unexpected error: %v", err)
		}
		obj.Wait()

		if n != 7 {
			t.Errorf("Polls: got %d, want 7", n)
		}
		for i, req := range ft.requests() {
			if req.Opts.ETag != "A" {
				t.Errorf("Request %d: got ETag %q, want A", i+1, req.Opts.ETag)
			}
		}
		if v, _ := obj.Get("value"); v != "B" {
			t.Errorf("Value: got %v, want B", v)
		}
		if got := obj.Ref(); got != "http://h/obj" {
			t.Errorf("Ref: got %q, want http://h/obj", got)
		}
	})
}

func TestPollStop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ft := &fakeTransport{}
		obj, err := cloudclient.InstanceFromObject(t.Context(), pollDescriptor(t, "A"), ft, pollOptions(nil))
		if err != nil {
			t.Fatalf("InstanceFromObject: unexpected error: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
		obj.Stop()
		obj.Stop() // idempotent
		obj.Wait()

		if reqs := ft.requests(); len(reqs) != 0 {
			t.Errorf("Requests after stop: got %+v, want none", reqs)
		}
	})
}

func TestPollStopInFlight(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var obj *cloudclient.Instance
		ready := make(chan struct{})
		ft := &fakeTransport{
			get: func(url string, opts cloudclient.GetOptions) (*cloudclient.Object, error) {
				<-ready
				obj.Stop()
				time.Sleep(time.Second) // the request completes after Stop
				return cloudclient.ParseObject([]byte(`{"$hash": "B", "value": "B"}`))
			},
		}
		var err error
		obj, err = cloudclient.InstanceFromObject(t.Context(), pollDescriptor(t, "A"), ft, pollOptions(nil))
		if err != nil {
			t.Fatalf("InstanceFromObject: unexpected error: %v", err)
		}
		close(ready)
		obj.Wait()

		if n := len(ft.requests()); n != 1 {
			t.Errorf("Requests: got %d, want 1", n)
		}
		if v, _ := obj.Get("value"); v != "B" {
			t.Errorf("Value: got %v, want B", v)
		}
	})
}

func TestPollTarget(t *testing.T) {
	ctx := context.Background()
	for _, input := range []string{
		`{"$id": "x", "$ref": "http://h/obj"}`,
		`{"$id": "x", "$hash": "A"}`,
	} {
		desc := mustParse(t, input)
		desc.Set(cloudclient.KeyPrototype, mustParse(t, protoWithType(`"Thing"`)))
		obj, err := cloudclient.InstanceFromObject(ctx, desc, &fakeTransport{}, pollOptions(nil))
		if !errors.Is(err, cloudclient.ErrNoPollTarget) {
			t.Errorf("InstanceFromObject %s: got %v, %v; want %v", input, obj, err, cloudclient.ErrNoPollTarget)
		}
		var ce *cloudclient.ConfigError
		if !errors.As(err, &ce) {
			t.Errorf("InstanceFromObject %s: got %T, want *ConfigError", input, err)
		}
	}
}

func TestPollCachedType(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		opts := testOptions()
		first, err := cloudclient.InstanceFromObject(t.Context(), pollDescriptor(t, "A"), &fakeTransport{}, opts)
		if err != nil {
			t.Fatalf("InstanceFromObject: unexpected error: %v", err)
		}
		if first.Polling() {
			t.Error("First instance: got polling, want not polling")
		}

		// The same prototype with polling enabled reuses the cached type but
		// polls through its own transport.
		ft := &fakeTransport{
			get: func(url string, opts cloudclient.GetOptions) (*cloudclient.Object, error) {
				return cloudclient.ParseObject([]byte(`{"$hash": "B", "value": "B"}`))
			},
		}
		popts := pollOptions(func(inst *cloudclient.Instance) { inst.Stop() })
		popts.Cache = opts.Cache
		second, err := cloudclient.InstanceFromObject(t.Context(), pollDescriptor(t, "A"), ft, popts)
		if err != nil {
			t.Fatalf("InstanceFromObject: unexpected error: %v", err)
		}
		if second.Type() != first.Type() {
			t.Error("Second instance: got a different type, want the cached one")
		}
		if !second.Polling() {
			t.Error("Second instance: got not polling, want polling")
		}
		second.Wait()

		if n := len(ft.requests()); n != 1 {
			t.Errorf("Requests: got %d, want 1", n)
		}
		if v, _ := second.Get("value"); v != "B" {
			t.Errorf("Value: got %v, want B", v)
		}
		if v, _ := first.Get("value"); v != "A" {
			t.Errorf("First value: got %v, want A", v)
		}
	})
}
