package callgrind

import (
	"errors"
	"fmt"
)

// PositionKind is one of the position categories whose names the format
// compresses.
type PositionKind int

const (
	Object PositionKind = iota
	SourceFile
	CalledObject
	CalledSourceFile
	Function
	CalledFunction
)

var positionKindNames = [...]string{
	Object:           "object",
	SourceFile:       "file",
	CalledObject:     "called object",
	CalledSourceFile: "called file",
	Function:         "function",
	CalledFunction:   "called function",
}

// String returns the name of the kind.
func (k PositionKind) String() string {
	if int(k) >= 0 && int(k) < len(positionKindNames) {
		return positionKindNames[k]
	}
	return fmt.Sprintf("PositionKind(%d)", int(k))
}

// Namespace returns the kind whose ID space k shares. A called position
// reuses the IDs of its caller counterpart, so "cfn=(3)" refers to the
// name given by an earlier "fn=(3) name".
func (k PositionKind) Namespace() PositionKind {
	switch k {
	case CalledObject:
		return Object
	case CalledSourceFile:
		return SourceFile
	case CalledFunction:
		return Function
	default:
		return k
	}
}

// ErrDanglingReference is returned when an ID is used before it is defined.
var ErrDanglingReference = errors.New("dangling name reference")

// NameTable maps compressed IDs to names for one parse session.
//
// There are three ID spaces, not one per PositionKind: object, file and
// function. Called kinds resolve through their caller counterpart (see
// Namespace), matching dumps where "cfn=(3)" names a function first
// defined by "fn=(3) name", and the other way round. SourceFile covers
// fl=, fi= and fe= alike.
type NameTable struct {
	names map[PositionKind]map[uint64]string
}

// NewNameTable creates an empty table.
func NewNameTable() *NameTable {
	return &NameTable{
		names: map[PositionKind]map[uint64]string{
			Object:     {},
			SourceFile: {},
			Function:   {},
		},
	}
}

// Define records name under id. Redefinition overwrites.
func (t *NameTable) Define(kind PositionKind, id uint64, name string) {
	t.names[kind.Namespace()][id] = name
}

// Resolve returns the name defined for id.
func (t *NameTable) Resolve(kind PositionKind, id uint64) (string, error) {
	name, ok := t.names[kind.Namespace()][id]
	if !ok {
		return "", fmt.Errorf("%w: %s id %d", ErrDanglingReference, kind, id)
	}
	return name, nil
}

// Len returns the number of IDs defined in kind's namespace.
func (t *NameTable) Len(kind PositionKind) int {
	return len(t.names[kind.Namespace()])
}
