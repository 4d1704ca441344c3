// Package structs implements the structured-data layer (C6): the type
// dictionary and arena-logged value tree used to transport nested
// user-defined compound results ("opaque blocks") across the wire.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package structs

import "fmt"

// AtomicTag enumerates the wire-level scalar element types a CompoundField
// can ultimately bottom out at.
type AtomicTag int

const (
	TagUnknown AtomicTag = iota
	TagInt8
	TagInt16
	TagInt32
	TagInt64
	TagUint8
	TagUint16
	TagUint32
	TagUint64
	TagFloat32
	TagFloat64
	TagString
	TagCompound // field is itself a nested UserDefinedType
)

// CompoundField describes one field of a UserDefinedType: name, type,
// pointer-ness, shape, and the byte layout needed to walk raw memory
// deterministically.
type CompoundField struct {
	Name      string
	TypeName  string
	Atomic    AtomicTag
	IsPointer bool
	Rank      int
	Shape     []int // length Rank; empty/nil for scalar fields
	Count     int   // total element count (product of Shape, or 1)
	Offset    int   // byte offset within the parent structure
	Padding   int
	Alignment int
}

// UserDefinedType is the schema for one nested structure. A tree of these
// forms the type dictionary shipped ahead of the value tree (protocol_id 13,
// STRUCTURES).
type UserDefinedType struct {
	Name   string
	Size   int // sizeof, in bytes, of one instance
	Fields []CompoundField
}

// UserDefinedTypeList is the ordered dictionary of every UserDefinedType
// referenced, directly or transitively, by one DataBlock's opaque block.
type UserDefinedTypeList struct {
	Types []*UserDefinedType
}

// Find looks up a registered type by name (case-sensitive: compound type
// names are identifiers, not user-facing strings).
func (l *UserDefinedTypeList) Find(name string) (*UserDefinedType, bool) {
	for _, t := range l.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// Register adds a type to the dictionary, rejecting duplicate names: the
// dictionary is meant to be built once per request by the sending plugin.
func (l *UserDefinedTypeList) Register(t *UserDefinedType) error {
	if _, exists := l.Find(t.Name); exists {
		return fmt.Errorf("structs: duplicate type name %q", t.Name)
	}
	l.Types = append(l.Types, t)
	return nil
}
