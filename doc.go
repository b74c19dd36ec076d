// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

// Package cloudclient implements a client for remote objects described in
// JSON and published over HTTP.
//
// A remote object is published at a URL as an instance descriptor: a JSON
// object carrying the object's data, a stable $id, a version $hash, its own
// URL in $ref, and a $prototype describing its type. The prototype lists the
// type names in $type (most derived first), default data, and the methods of
// the object, each described by an object whose $type is "Function":
//
//	{
//	  "$id": "4c9a2d0e-...", "$hash": "v7", "$ref": "http://host/counter",
//	  "value": 7,
//	  "$prototype": {
//	    "$id": "91f03b6a-...", "$type": ["Counter", "Object"],
//	    "$ref": "http://host/counter",
//	    "value": 0,
//	    "add": {"$type": "Function", "$args": ["n"]}
//	  }
//	}
//
// # Types
//
// The prototype is turned into a [Type], a proxy type whose methods issue
// remote calls. Types are cached by name and prototype $id in a [Cache], so
// many instances of one prototype share a type. To resolve the type of a
// published object:
//
//	typ, err := cloudclient.ClassFromURL(ctx, "http://host/counter", nil, nil)
//
// Names in a descriptor must be valid identifiers and must not be reserved
// words; see [IsValidName] and [IsReservedWord]. A descriptor using an invalid
// name is rejected with a [*NameError].
//
// # Instances
//
// An [Instance] is a local proxy for a remote object. Its data is a copy of
// the descriptor's data, and its methods post to the method URLs of its type:
//
//	obj, err := cloudclient.Resolve(ctx, "http://host/counter", nil, nil)
//	...
//	v, err := obj.Call(ctx, "add", 5)
//
// A call posts a JSON body {"args": [...]} to the $ref of the prototype with
// the method name appended, and the result is decoded by [ParsePayload].
//
// # Long polling
//
// If [Options].EnableLongPolling is set, each instance starts a poller that
// keeps its data synchronized with the remote object. The poller repeatedly
// fetches the $ref of the instance with an If-None-Match header carrying the
// last known $hash and a "Prefer: wait=N" header asking the peer to hold the
// request until the object changes. Updates are merged into the instance as
// they arrive; a 304 Not Modified response leaves it unchanged. Polls start at
// least [Config].MinDelay apart. Errors are logged and polling continues until
// the instance is stopped:
//
//	obj.Stop()
//	obj.Wait()
//
// The timing defaults may be overridden by the environment variables
// CLOUD_CLIENT_LONG_POLLING_MIN_DELAY (milliseconds) and
// CLOUD_CLIENT_LONG_POLLING_PREFER_WAIT (seconds), or per resolution with
// [Options].Config.
//
// # Transports
//
// Requests are made through a [Transport]. The default, [HTTPTransport], uses
// an [net/http.Client]. When a descriptor is fetched from a URL carrying user
// credentials, those credentials are forwarded to later requests for the same
// host (see [WithAuth]).
package cloudclient
