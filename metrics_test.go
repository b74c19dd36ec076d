// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient_test

import (
	"context"
	"expvar"
	"testing"

	"github.com/sendanor/cloudclient"
)

func TestMetrics(t *testing.T) {
	m := cloudclient.Metrics()
	get := func(name string) int64 {
		t.Helper()
		v, ok := m.Get(name).(*expvar.Int)
		if !ok {
			t.Fatalf("Metric %q not found", name)
		}
		return v.Value()
	}
	built, hits, misses := get("types_built"), get("cache_hits"), get("cache_misses")

	opts := testOptions()
	schema := mustParse(t, protoWithType(`"Counted"`))
	for range 3 {
		if _, err := cloudclient.ClassFromObject(context.Background(), schema, &fakeTransport{}, opts); err != nil {
			t.Fatalf("ClassFromObject: unexpected error: %v", err)
		}
	}
	if got := get("types_built") - built; got != 1 {
		t.Errorf("types_built: got +%d, want +1", got)
	}
	if got := get("cache_misses") - misses; got != 1 {
		t.Errorf("cache_misses: got +%d, want +1", got)
	}
	if got := get("cache_hits") - hits; got != 2 {
		t.Errorf("cache_hits: got +%d, want +2", got)
	}
}
