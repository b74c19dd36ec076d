// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import "fmt"

// isStructural reports whether key is one of the descriptor keys that
// describe an object rather than name one of its members.
func isStructural(key string) bool {
	switch key {
	case KeyID, KeyHash, KeyRef, KeyType, KeyPrototype:
		return true
	}
	return false
}

// isHidden reports whether key is excluded from installed instance data.
func isHidden(key string) bool {
	return key != "" && (key[0] == '$' || key[0] == '_')
}

// isMethod reports whether v is a method descriptor.
func isMethod(v any) bool {
	obj, ok := v.(*Object)
	if !ok {
		return false
	}
	tv, _ := obj.Get(KeyType)
	return tv == FunctionType
}

// Classify splits the member keys of schema into method names and property
// names, each in the order they appear in schema. A member whose value is an
// object with $type "Function" is a method; every other member is a property.
// The structural keys $id, $hash, $ref, $type, and $prototype are not members.
//
// Classify reports a *NameError for the first member key that is not a valid
// name or is reserved.
func Classify(schema *Object) (methods, properties []string, err error) {
	for _, key := range schema.Keys() {
		if isStructural(key) {
			continue
		}
		if err := CheckName(key); err != nil {
			return nil, nil, err
		}
		v, _ := schema.Get(key)
		if isMethod(v) {
			methods = append(methods, key)
		} else {
			properties = append(properties, key)
		}
	}
	return methods, properties, nil
}

// ParseTypeToArray normalizes a $type value to a list of type names, most
// derived first. A string yields a one-element list, and a list of strings is
// returned as-is. Other elements of a list are formatted with %v, so they will
// fail class name validation. Any other value yields an empty list.
func ParseTypeToArray(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			if s, ok := e.(string); ok {
				out[i] = s
			} else {
				out[i] = fmt.Sprint(e)
			}
		}
		return out
	}
	return []string{}
}
