// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import "expvar"

// clientMetrics record client activity counters.
type clientMetrics struct {
	typesBuilt      expvar.Int // number of types constructed by the factory
	cacheHits       expvar.Int
	cacheMisses     expvar.Int
	cacheEvicted    expvar.Int // number of idle entries swept from the cache
	callOut         expvar.Int // number of remote method calls initiated
	callOutErr      expvar.Int // number of remote method calls reporting an error
	pollSent        expvar.Int
	pollApplied     expvar.Int // number of polls that updated an instance
	pollNotModified expvar.Int
	pollFailed      expvar.Int // number of polls that failed or were malformed
	pollActive      expvar.Int // number of running pollers

	emap *expvar.Map
}

var rootMetrics = newClientMetrics()

func newClientMetrics() *clientMetrics {
	cm := &clientMetrics{emap: new(expvar.Map)}
	cm.emap.Set("types_built", &cm.typesBuilt)
	cm.emap.Set("cache_hits", &cm.cacheHits)
	cm.emap.Set("cache_misses", &cm.cacheMisses)
	cm.emap.Set("cache_evicted", &cm.cacheEvicted)
	cm.emap.Set("calls_out", &cm.callOut)
	cm.emap.Set("calls_out_failed", &cm.callOutErr)
	cm.emap.Set("polls_sent", &cm.pollSent)
	cm.emap.Set("polls_applied", &cm.pollApplied)
	cm.emap.Set("polls_not_modified", &cm.pollNotModified)
	cm.emap.Set("polls_failed", &cm.pollFailed)
	cm.emap.Set("pollers_active", &cm.pollActive)
	return cm
}

// Metrics returns a map of client activity counters for all types and
// instances in the process. The caller is responsible for publishing it, for
// example with expvar.Publish. The map is shared, so it should be published
// at most once.
func Metrics() *expvar.Map { return rootMetrics.emap }
