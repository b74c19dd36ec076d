// Copyright (C) 2026 Michael J. Fromberger. All Rights Reserved.

package cloudclient

import (
	"regexp"

	"github.com/creachadair/mds/mapset"
)

var (
	validName      = regexp.MustCompile(`^[A-Za-z$_][A-Za-z0-9$_]*$`)
	validClassName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9$_]*$`)
)

// reservedWords are the ES6 keywords and global names that a remote object
// may not use as member or type names. Remote peers are commonly written in
// JavaScript, so the same names are rejected here.
var reservedWords = mapset.New(
	// Keywords
	"await", "break", "case", "catch", "class", "const", "continue",
	"debugger", "default", "delete", "do", "else", "enum", "export",
	"extends", "false", "finally", "for", "function", "if", "implements",
	"import", "in", "instanceof", "interface", "let", "new", "null",
	"package", "private", "protected", "public", "return", "static", "super",
	"switch", "this", "throw", "true", "try", "typeof", "var", "void",
	"while", "with", "yield",

	// Global names
	"Array", "ArrayBuffer", "Boolean", "DataView", "Date", "Error",
	"EvalError", "Float32Array", "Float64Array", "Function", "Infinity",
	"Int16Array", "Int32Array", "Int8Array", "JSON", "Map", "Math", "NaN",
	"Number", "Object", "Promise", "Proxy", "RangeError", "ReferenceError",
	"Reflect", "RegExp", "Set", "String", "Symbol", "SyntaxError", "System",
	"TypeError", "URIError", "Uint16Array", "Uint32Array", "Uint8Array",
	"Uint8ClampedArray", "WeakMap", "WeakSet", "constructor", "decodeURI",
	"decodeURIComponent", "encodeURI", "encodeURIComponent", "escape",
	"eval", "hasOwnProperty", "isFinite", "isNaN", "isPrototypeOf",
	"parseFloat", "parseInt", "propertyIsEnumerable", "toLocaleString",
	"toString", "undefined", "unescape", "valueOf",
)

// IsValidName reports whether name may be used as a property or method name:
// an ASCII letter, "$", or "_", followed by letters, digits, "$", or "_".
func IsValidName(name string) bool { return validName.MatchString(name) }

// IsValidClassName reports whether name may be used as a type name. Type names
// must begin with an ASCII letter.
func IsValidClassName(name string) bool { return validClassName.MatchString(name) }

// IsReservedWord reports whether name is a reserved keyword or global name.
func IsReservedWord(name string) bool { return reservedWords.Has(name) }

// CheckName reports a *NameError if name is not a valid member name or is
// reserved.
func CheckName(name string) error {
	if !IsValidName(name) {
		return &NameError{Name: name, Reason: "is not a valid name"}
	} else if IsReservedWord(name) {
		return &NameError{Name: name, Reason: "is a reserved word"}
	}
	return nil
}

// CheckClassName reports a *NameError if name is not a valid type name or is
// reserved.
func CheckClassName(name string) error {
	if !IsValidClassName(name) {
		return &NameError{Name: name, Class: true, Reason: "is not a valid name"}
	} else if IsReservedWord(name) {
		return &NameError{Name: name, Class: true, Reason: "is a reserved word"}
	}
	return nil
}
