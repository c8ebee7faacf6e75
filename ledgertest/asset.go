package ledgertest

import (
	"encoding/binary"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
)

// AssetModule is a minimal module published next to the identity contract.
// Its objects are used to exercise borrowing.
const AssetModule = "asset"

// Asset is the layout of an asset object.
type Asset struct {
	ID    idgov.ObjectID
	Value uint64
}

// AssetType returns the type of asset objects.
func AssetType(pkg idgov.ObjectID) string {
	return contract.TypeTag(pkg, AssetModule, "Asset")
}

func registerAssetRoutes(r *Router) {
	r.Handle("asset::new", newAsset)
	r.Handle("asset::set_value", setAssetValue)
}

func newAsset(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 1); err != nil {
		return nil, err
	}
	a := &Asset{ID: ex.newID()}
	if err := ex.pure(args[0], &a.Value); err != nil {
		return nil, err
	}
	obj := ex.create(a.ID, AssetType(ex.pkg), idgov.OwnedBy(ex.sender), a)
	obj.taken = true
	return []*value{{kind: objectValue, obj: obj, mutable: true}}, nil
}

func setAssetValue(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error) {
	if err := arity(args, 2); err != nil {
		return nil, err
	}
	obj, err := ex.mutable(args[0])
	if err != nil {
		return nil, err
	}
	a, ok := obj.content.(*Asset)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.Newf("%s is not an asset", obj.data.Type), "object", obj.data.Ref.ID)
	}
	return nil, ex.pure(args[1], &a.Value)
}

// NewAsset stores an asset owned by owner outside of any transaction. Owner
// may be an identity address, making the asset borrowable through
// proposals.
func (l *Ledger) NewAsset(owner idgov.Address, value uint64) (idgov.ObjectRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.version++
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, l.version)
	a := Asset{ID: idgov.ObjectID(idgov.NewDigest([]byte(AssetModule), owner[:], seq)), Value: value}
	raw, err := contract.Encode(&a)
	if err != nil {
		return idgov.ObjectRef{}, err
	}
	obj := idgov.ObjectData{
		Ref:     idgov.ObjectRef{ID: a.ID, Version: l.version},
		Type:    AssetType(l.pkg),
		Owner:   idgov.OwnedBy(owner),
		Content: raw,
	}
	obj.Ref.Digest = objectDigest(&obj)
	if err := saveObject(l.db, nil, &obj); err != nil {
		return idgov.ObjectRef{}, err
	}
	return obj.Ref, nil
}

// AssetValue returns the value of an asset.
func (l *Ledger) AssetValue(id idgov.ObjectID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	obj, err := loadObject(l.db, id)
	if err != nil {
		return 0, err
	}
	var a Asset
	if err := contract.DecodeObject(obj, []string{AssetType(l.pkg)}, &a); err != nil {
		return 0, err
	}
	return a.Value, nil
}
