// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"fmt"
	"strings"
	"time"
)

// DateType is the $type tag of a payload holding a timestamp in milliseconds
// since the Unix epoch.
const DateType = "Date"

// ParsePayload extracts the result of a method call from its response object.
//
// If resp has a non-empty string $path, the payload is the value found by
// following that path from resp, or nil if the path does not resolve. A path
// is a sequence of keys separated by dots, where array elements may also be
// written as bracketed indices, as in "list[1].name". Otherwise the payload
// is resp itself. If resp has $type "Date", the payload is converted from
// epoch milliseconds to a time.Time in UTC.
func ParsePayload(resp *Object) (any, error) {
	if resp == nil {
		return nil, nil
	}
	var payload any = resp
	if v, ok := resp.Get(KeyPath); ok {
		path, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s is %s, not string", ErrInvalidDescriptor, KeyPath, jsonKind(v))
		}
		if path = strings.TrimSpace(path); path != "" {
			payload, _ = lookupPath(resp, path)
		}
	}

	if tv, _ := resp.Get(KeyType); tv == DateType {
		ms, ok := toInt64(payload)
		if !ok {
			return nil, fmt.Errorf("%w: Date payload is %s, not number", ErrInvalidDescriptor, jsonKind(payload))
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	return payload, nil
}
