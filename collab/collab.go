// Package collab declares named interfaces, with no implementation, for
// every collaborator spec.md explicitly places out of scope (§1, §6): the
// widget/paint layer, the style-sheet parser, fonts, the JSON value tree,
// the string class, the regular-expression wrapper, file-system helpers,
// cryptographic primitives, the interactive console, the debug sink, and
// CLI argument parsing.
//
// These mirror the original source's header-only collaborator classes
// (e.g. SwWidget, SwJsonValue): the core's public signatures that need to
// hand a collaborator to user code have something concrete to type
// against, without this module taking on any of that collaborator's
// actual behaviour.
package collab

import "io"

// JSONValue is a JSON value tree node: get/set by dotted path, out of
// scope per §1 ("the JSON value tree... treated as external collaborators
// with named interfaces only").
type JSONValue interface {
	Get(path string) (any, bool)
	Set(path string, value any) error
	MarshalJSON() ([]byte, error)
}

// Widget is the paint-layer hook: anything the core could hand a byte
// stream or an event to without drawing it itself (§1 "the widget/paint
// layer... and everything that draws pixels").
type Widget interface {
	Update()
	Resize(width, height int)
}

// StyleSheetParser parses the toolkit's CSS-like style language (§1 "the
// style-sheet parser").
type StyleSheetParser interface {
	Parse(source string) (StyleSheet, error)
}

// StyleSheet is the parsed result of a StyleSheetParser.
type StyleSheet interface {
	Rule(selector string) (map[string]string, bool)
}

// FontMetrics reports text measurement for layout (§1 "fonts").
type FontMetrics interface {
	Width(text string) int
	Height() int
}

// StringOps stands in for the toolkit's own string class, where one
// exists separately from Go's native string (§1 "the string class").
type StringOps interface {
	Normalize(s string) string
	Compare(a, b string) int
}

// RegularExpression wraps a compiled pattern (§1 "the regular-expression
// wrapper").
type RegularExpression interface {
	MatchString(s string) bool
	FindAllString(s string) []string
}

// FileSystem is the toolkit's file-system helper surface, distinct from
// ioloop.FileDevice's async read/write (§1 "file-system helpers").
type FileSystem interface {
	Exists(path string) bool
	ReadDir(path string) ([]string, error)
}

// Crypto stands in for cryptographic primitives (§1 "cryptographic
// primitives").
type Crypto interface {
	Hash(data []byte) []byte
}

// Console is the interactive console/REPL collaborator (§1 "interactive
// console").
type Console interface {
	io.Writer
	ReadLine() (string, error)
}

// DebugSink receives structured debug/log records from anywhere in the
// framework (§1 "debug channel"). debugchannel.Server is a concrete,
// in-scope implementation of the wire protocol this sink's records are
// serialized to, not of DebugSink itself.
type DebugSink interface {
	Log(level, file string, line int, function, message string)
}

// ArgParser parses argv into a key/value map (§6 "CLI surface... out of
// scope"): "--key=value", "--key value", "-k value".
type ArgParser interface {
	Parse(args []string) (map[string]string, error)
}
