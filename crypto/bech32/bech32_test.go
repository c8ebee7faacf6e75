package bech32

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/iov-one/idgov/errors"
)

func TestBench32EncodeDecode(t *testing.T) {
	// bech32  -e -h tiov 746573742d7061796c6f6164
	const enc = `tiov1w3jhxapdwpshjmr0v9jqymqq4y`

	want, err := hex.DecodeString("746573742d7061796c6f6164")
	if err != nil {
		t.Fatal(err)
	}

	hrp, payload, err := Decode(enc)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(want, payload) {
		t.Logf("want %d", want)
		t.Logf("got  %d", payload)
		t.Fatal("invalid decode")
	}

	raw, err := Encode(hrp, payload)
	if err != nil {
		t.Fatalf("cannot encode: %s", err)
	}

	if raw != enc {
		t.Fatalf("invalid encoding: %q", raw)
	}
}

func TestAddressSizedPayload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xab}, 32)
	raw, err := Encode("idg", payload)
	if err != nil {
		t.Fatalf("cannot encode: %s", err)
	}
	hrp, got, err := Decode(raw)
	if err != nil {
		t.Fatalf("cannot decode: %s", err)
	}
	if hrp != "idg" || !bytes.Equal(got, payload) {
		t.Fatalf("unexpected result: %s %x", hrp, got)
	}
}

func TestDecodeInvalid(t *testing.T) {
	cases := map[string]string{
		"bad checksum":   "tiov1w3jhxapdwpshjmr0v9jqymqq4z",
		"no separator":   "tiovw3jhxapdwpshjmr0v9jqymqq4y",
		"mixed case":     "tiov1W3jhxapdwpshjmr0v9jqymqq4y",
		"empty":          "",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Decode(raw); !errors.ErrInput.Is(err) {
				t.Fatalf("want invalid input error, got %v", err)
			}
		})
	}
}
