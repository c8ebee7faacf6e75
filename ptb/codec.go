package ptb

import (
	"github.com/iov-one/idgov/errors"
	amino "github.com/tendermint/go-amino"
)

var cdc = amino.NewCodec()

func init() {
	cdc.RegisterInterface((*Command)(nil), nil)
	cdc.RegisterConcrete(MoveCall{}, "idgov/ptb/MoveCall", nil)
	cdc.RegisterConcrete(TransferObjects{}, "idgov/ptb/TransferObjects", nil)
	cdc.RegisterConcrete(SplitCoins{}, "idgov/ptb/SplitCoins", nil)
	cdc.RegisterConcrete(MergeCoins{}, "idgov/ptb/MergeCoins", nil)
	cdc.RegisterConcrete(MakeMoveVec{}, "idgov/ptb/MakeMoveVec", nil)
	cdc.Seal()
}

// Marshal serializes a fragment into the wire format accepted by the ledger.
func Marshal(f *Fragment) ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	raw, err := cdc.MarshalBinaryBare(f)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransactionBuilding, "marshal: %s", err)
	}
	return raw, nil
}

// Unmarshal deserializes and validates a fragment.
func Unmarshal(raw []byte) (*Fragment, error) {
	var f Fragment
	if err := cdc.UnmarshalBinaryBare(raw, &f); err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "unmarshal fragment: %s", err)
	}
	if err := f.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return &f, nil
}

// OptionU64 is an optional number passed as a pure value.
type OptionU64 struct {
	Set   bool
	Value uint64
}

// SomeU64 returns a set option.
func SomeU64(v uint64) OptionU64 {
	return OptionU64{Set: true, Value: v}
}

// Ptr returns the option value as a pointer, nil when unset.
func (o OptionU64) Ptr() *uint64 {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// OptionFromPtr converts a pointer into an option.
func OptionFromPtr(v *uint64) OptionU64 {
	if v == nil {
		return OptionU64{}
	}
	return SomeU64(*v)
}

// EncodePure serializes a plain value used as a pure input.
func EncodePure(v interface{}) ([]byte, error) {
	raw, err := cdc.MarshalBinaryBare(v)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrTransactionBuilding, "encode %T: %s", v, err)
	}
	return raw, nil
}

// DecodePure deserializes a pure input into dest, which must be a pointer.
func DecodePure(raw []byte, dest interface{}) error {
	if err := cdc.UnmarshalBinaryBare(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrInput, "decode %T: %s", dest, err)
	}
	return nil
}
