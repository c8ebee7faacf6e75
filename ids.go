package idgov

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/iov-one/idgov/crypto/bech32"
	"github.com/iov-one/idgov/errors"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// IDLength is the byte length of object ids, addresses and digests.
const IDLength = 32

// AddressHRP is the human readable part of bech32 encoded addresses.
const AddressHRP = "idg"

// ObjectID uniquely identifies a ledger object.
type ObjectID [IDLength]byte

// ZeroID is the zero value of an object id. It never identifies an object.
var ZeroID ObjectID

// ParseObjectID decodes a hex representation, with or without the 0x prefix.
// Shorter values are left padded with zeros.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	raw, err := decodeHex(s)
	if err != nil {
		return id, err
	}
	copy(id[IDLength-len(raw):], raw)
	return id, nil
}

// MustParseObjectID is ParseObjectID that panics on invalid input.
func MustParseObjectID(s string) ObjectID {
	id, err := ParseObjectID(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id ObjectID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Address returns the address owned objects of this object are sent to.
func (id ObjectID) Address() Address {
	return Address(id)
}

// IsZero returns true for the zero id.
func (id ObjectID) IsZero() bool {
	return id == ZeroID
}

// Less orders ids byte wise.
func (id ObjectID) Less(other ObjectID) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *ObjectID) UnmarshalJSON(raw []byte) error {
	var enc string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return errors.Wrap(errors.ErrInput, "cannot decode json")
	}
	v, err := ParseObjectID(enc)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Address identifies an owner. Both accounts and objects own objects.
type Address [IDLength]byte

// ParseAddress decodes an address. Accepted forms are hex (with or without
// 0x prefix) and bech32 with the AddressHRP human readable part.
func ParseAddress(s string) (Address, error) {
	var a Address
	if strings.HasPrefix(s, AddressHRP+"1") {
		hrp, payload, err := bech32.Decode(s)
		if err != nil {
			return a, err
		}
		if hrp != AddressHRP || len(payload) != IDLength {
			return a, errors.ErrInput.Newf("address: %q", s)
		}
		copy(a[:], payload)
		return a, nil
	}
	id, err := ParseObjectID(s)
	if err != nil {
		return a, err
	}
	return Address(id), nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Bech32 returns the checksummed text form of the address.
func (a Address) Bech32() string {
	s, err := bech32.Encode(AddressHRP, a[:])
	if err != nil {
		// Encoding a fixed size payload cannot fail.
		panic(err)
	}
	return s
}

// Equals checks if two addresses are the same
func (a Address) Equals(b Address) bool {
	return a == b
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(raw []byte) error {
	var enc string
	if err := json.Unmarshal(raw, &enc); err != nil {
		return errors.Wrap(errors.ErrInput, "cannot decode json")
	}
	v, err := ParseAddress(enc)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Digest is a blake2b-256 checksum of an object or a transaction.
type Digest [IDLength]byte

// NewDigest hashes all given chunks into a digest.
func NewDigest(chunks ...[]byte) Digest {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(err)
	}
	for _, c := range chunks {
		_, _ = h.Write(c)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// ParseDigest decodes the base58 form of a digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	raw, err := base58.Decode(s)
	if err != nil {
		return d, errors.Wrapf(errors.ErrInput, "digest %q: %s", s, err)
	}
	if len(raw) != IDLength {
		return d, errors.ErrInput.Newf("digest %q: invalid length %d", s, len(raw))
	}
	copy(d[:], raw)
	return d, nil
}

func (d Digest) String() string {
	return base58.Encode(d[:])
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) == 0 || len(s) > 2*IDLength {
		return nil, errors.ErrInput.Newf("invalid hex length %d", len(s))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "cannot decode hex: %s", err)
	}
	return raw, nil
}
