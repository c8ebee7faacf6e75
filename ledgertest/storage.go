package ledgertest

import (
	"encoding/binary"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/store"
)

var (
	objectPrefix = []byte("o:")
	ownerPrefix  = []byte("w:")
)

func objectKey(id idgov.ObjectID) []byte {
	return append(append([]byte{}, objectPrefix...), id[:]...)
}

func ownerIndexPrefix(owner idgov.Address) []byte {
	return append(append([]byte{}, ownerPrefix...), owner[:]...)
}

func ownerKey(owner idgov.Address, id idgov.ObjectID) []byte {
	return append(ownerIndexPrefix(owner), id[:]...)
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func objectDigest(obj *idgov.ObjectData) idgov.Digest {
	version := make([]byte, 8)
	binary.BigEndian.PutUint64(version, obj.Ref.Version)
	return idgov.NewDigest(obj.Ref.ID[:], version, []byte(obj.Type), obj.Content)
}

func loadObject(db store.ReadOnlyKVStore, id idgov.ObjectID) (*idgov.ObjectData, error) {
	raw, err := db.Get(objectKey(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.WithObject(errors.ErrNotFound.New("object does not exist"), "object", id)
	}
	var obj idgov.ObjectData
	if err := contract.Decode(raw, &obj); err != nil {
		return nil, errors.Wrap(errors.ErrHuman, err.Error())
	}
	return &obj, nil
}

// saveObject writes an object and maintains the owner index. previous is the
// owner the object had when it was loaded, nil for new objects.
func saveObject(db store.SetDeleter, previous *idgov.Owner, obj *idgov.ObjectData) error {
	raw, err := contract.Encode(obj)
	if err != nil {
		return err
	}
	if err := db.Set(objectKey(obj.Ref.ID), raw); err != nil {
		return err
	}
	if previous != nil && previous.Kind == idgov.AddressOwner && !obj.Owner.IsOwnedBy(previous.Address) {
		if err := db.Delete(ownerKey(previous.Address, obj.Ref.ID)); err != nil {
			return err
		}
	}
	if obj.Owner.Kind == idgov.AddressOwner {
		return db.Set(ownerKey(obj.Owner.Address, obj.Ref.ID), obj.Ref.ID[:])
	}
	return nil
}

// deleteObject removes an object together with its owner index entry.
func deleteObject(db store.SetDeleter, owner idgov.Owner, id idgov.ObjectID) error {
	if owner.Kind == idgov.AddressOwner {
		if err := db.Delete(ownerKey(owner.Address, id)); err != nil {
			return err
		}
	}
	return db.Delete(objectKey(id))
}

// ownedObjects returns all objects owned by an address, ordered by id.
func ownedObjects(db store.ReadOnlyKVStore, owner idgov.Address) ([]*idgov.ObjectData, error) {
	prefix := ownerIndexPrefix(owner)
	it, err := db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var res []*idgov.ObjectData
	for ; it.Valid(); it.Next() {
		var id idgov.ObjectID
		copy(id[:], it.Value())
		obj, err := loadObject(db, id)
		if err != nil {
			return nil, err
		}
		res = append(res, obj)
	}
	return res, nil
}
