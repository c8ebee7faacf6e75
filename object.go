package idgov

import (
	"fmt"
)

// ObjectRef points to a specific version of an object.
type ObjectRef struct {
	ID      ObjectID
	Version uint64
	Digest  Digest
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s@%d", r.ID, r.Version)
}

// OwnerKind tells how an object is owned.
type OwnerKind uint8

const (
	// AddressOwner objects can be used only by their owner. The owner can
	// be an account or another object.
	AddressOwner OwnerKind = iota + 1
	// Shared objects can be used by anyone.
	Shared
	// Immutable objects can be read by anyone and never change.
	Immutable
)

func (k OwnerKind) String() string {
	switch k {
	case AddressOwner:
		return "address"
	case Shared:
		return "shared"
	case Immutable:
		return "immutable"
	}
	return fmt.Sprintf("OwnerKind(%d)", uint8(k))
}

// Owner describes who may use an object.
type Owner struct {
	Kind OwnerKind
	// Address is set for AddressOwner objects.
	Address Address
	// InitialSharedVersion is set for Shared objects. Transactions must
	// reference shared objects by this version.
	InitialSharedVersion uint64
}

// OwnedBy returns an AddressOwner owner.
func OwnedBy(a Address) Owner {
	return Owner{Kind: AddressOwner, Address: a}
}

// SharedOwner returns an owner of a shared object.
func SharedOwner(initialVersion uint64) Owner {
	return Owner{Kind: Shared, InitialSharedVersion: initialVersion}
}

// IsOwnedBy returns true if an object with this owner belongs to given
// address.
func (o Owner) IsOwnedBy(a Address) bool {
	return o.Kind == AddressOwner && o.Address == a
}

func (o Owner) String() string {
	switch o.Kind {
	case AddressOwner:
		return "address:" + o.Address.String()
	case Shared:
		return fmt.Sprintf("shared:%d", o.InitialSharedVersion)
	}
	return o.Kind.String()
}

// ObjectData is a snapshot of a ledger object.
type ObjectData struct {
	Ref   ObjectRef
	Type  string
	Owner Owner
	// Content is the binary encoded object layout.
	Content []byte
}

// ID returns the object id.
func (o *ObjectData) ID() ObjectID {
	return o.Ref.ID
}

// OwnedObjectRef is an object reference together with the object owner, as
// reported by transaction effects.
type OwnedObjectRef struct {
	Ref   ObjectRef
	Owner Owner
}
