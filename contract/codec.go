package contract

import (
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	amino "github.com/tendermint/go-amino"
)

var cdc = amino.NewCodec()

func init() {
	cdc.RegisterInterface((*Action)(nil), nil)
	cdc.RegisterConcrete(BorrowAction{}, "idgov/contract/Borrow", nil)
	cdc.RegisterConcrete(ControllerExecutionAction{}, "idgov/contract/ControllerExecution", nil)
	cdc.RegisterConcrete(AccessSubIdentityAction{}, "idgov/contract/AccessSubIdentity", nil)
	cdc.RegisterConcrete(ConfigChangeAction{}, "idgov/contract/ConfigChange", nil)
	cdc.RegisterConcrete(DeactivationAction{}, "idgov/contract/Deactivation", nil)
	cdc.RegisterConcrete(SendAction{}, "idgov/contract/Send", nil)
	cdc.RegisterConcrete(UpgradeAction{}, "idgov/contract/Upgrade", nil)
	cdc.Seal()
}

// Encode serializes an object layout or an event.
func Encode(v interface{}) ([]byte, error) {
	raw, err := cdc.MarshalBinaryBare(v)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "encode %T: %s", v, err)
	}
	return raw, nil
}

// MustEncode is Encode that panics on failure.
func MustEncode(v interface{}) []byte {
	raw, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// Decode deserializes an object layout or an event into dest.
func Decode(raw []byte, dest interface{}) error {
	if err := cdc.UnmarshalBinaryBare(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrInput, "decode %T: %s", dest, err)
	}
	return nil
}

// DecodeObject deserializes object content after checking that the object
// type is one of the accepted types.
func DecodeObject(obj *idgov.ObjectData, accepted []string, dest interface{}) error {
	for _, t := range accepted {
		if obj.Type == t {
			return errors.WithObject(Decode(obj.Content, dest), "object", obj.Ref.ID)
		}
	}
	return errors.WithObject(errors.ErrInput.Newf("unexpected object type %q", obj.Type), "object", obj.Ref.ID)
}
