package ptb

import (
	"bytes"
	"fmt"

	"github.com/iov-one/idgov"
)

// InputKind tells if an input is a plain value or an object.
type InputKind uint8

const (
	// PureInput is a binary encoded plain value.
	PureInput InputKind = iota + 1
	// ObjectInput is a ledger object.
	ObjectInput
)

// ObjectArgKind tells how a transaction accesses an object input.
type ObjectArgKind uint8

const (
	// ImmOrOwnedObject is an owned or immutable object referenced by exact
	// version.
	ImmOrOwnedObject ObjectArgKind = iota + 1
	// SharedObject is referenced by its initial shared version.
	SharedObject
	// ReceivingObject is an object owned by another object that a
	// contract function receives through its parent.
	ReceivingObject
)

// ObjectArg describes an object input.
type ObjectArg struct {
	Kind ObjectArgKind
	// Ref is the exact reference for ImmOrOwnedObject and ReceivingObject.
	// Only the id is used for SharedObject.
	Ref                  idgov.ObjectRef
	InitialSharedVersion uint64
	Mutable              bool
}

// ImmOrOwned returns an argument for an owned object.
func ImmOrOwned(ref idgov.ObjectRef) ObjectArg {
	return ObjectArg{Kind: ImmOrOwnedObject, Ref: ref}
}

// Shared returns an argument for a shared object.
func Shared(id idgov.ObjectID, initialSharedVersion uint64, mutable bool) ObjectArg {
	return ObjectArg{
		Kind:                 SharedObject,
		Ref:                  idgov.ObjectRef{ID: id},
		InitialSharedVersion: initialSharedVersion,
		Mutable:              mutable,
	}
}

// Receiving returns an argument for an object owned by another object.
func Receiving(ref idgov.ObjectRef) ObjectArg {
	return ObjectArg{Kind: ReceivingObject, Ref: ref}
}

// Input is a transaction input.
type Input struct {
	Kind   InputKind
	Pure   []byte
	Object ObjectArg
}

// PureValue returns an input holding given encoded value.
func PureValue(raw []byte) Input {
	return Input{Kind: PureInput, Pure: raw}
}

// ObjectValue returns an object input.
func ObjectValue(arg ObjectArg) Input {
	return Input{Kind: ObjectInput, Object: arg}
}

// Equal returns true if both inputs hold the same value.
func (in Input) Equal(other Input) bool {
	if in.Kind != other.Kind {
		return false
	}
	switch in.Kind {
	case PureInput:
		return bytes.Equal(in.Pure, other.Pure)
	case ObjectInput:
		return in.Object == other.Object
	}
	return false
}

func (in Input) String() string {
	switch in.Kind {
	case PureInput:
		return fmt.Sprintf("Pure(%x)", in.Pure)
	case ObjectInput:
		switch in.Object.Kind {
		case ImmOrOwnedObject:
			return fmt.Sprintf("ImmOrOwned(%s)", in.Object.Ref)
		case SharedObject:
			return fmt.Sprintf("Shared(%s, %d, mutable=%t)", in.Object.Ref.ID, in.Object.InitialSharedVersion, in.Object.Mutable)
		case ReceivingObject:
			return fmt.Sprintf("Receiving(%s)", in.Object.Ref)
		}
	}
	return fmt.Sprintf("Input(%d)", in.Kind)
}
