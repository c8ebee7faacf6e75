package ptb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"github.com/stretchr/testify/require"
)

func TestBuilderDeduplicatesInputs(t *testing.T) {
	b := NewBuilder()
	ref := idgov.ObjectRef{ID: idgov.MustParseObjectID("0xa"), Version: 2}

	first, err := b.Object(ImmOrOwned(ref))
	require.NoError(t, err)
	again, err := b.Object(ImmOrOwned(ref))
	require.NoError(t, err)
	require.Equal(t, first, again)

	x, err := b.Pure(idgov.MustParseObjectID("0xb"))
	require.NoError(t, err)
	y, err := b.Pure(idgov.MustParseObjectID("0xb"))
	require.NoError(t, err)
	require.Equal(t, x, y)
	require.NotEqual(t, first, x)

	newer := ref
	newer.Version = 3
	_, err = b.Object(ImmOrOwned(newer))
	require.True(t, errors.ErrTransactionBuilding.Is(err))
}

func TestBuilderResults(t *testing.T) {
	b := NewBuilder()
	require.Equal(t, Result(0), b.MoveCall(pkg, "m", "a", nil))
	require.Equal(t, Result(1), b.MoveCall(pkg, "m", "b", nil, Result(0)))
	require.NoError(t, b.TransferArg(idgov.Address{1}, NestedResult(1, 0)))
	require.Equal(t, 3, b.Len())

	f := b.Finish()
	require.NoError(t, f.Validate())

	// The fragment does not share memory with the builder.
	b.MoveCall(pkg, "m", "c", nil)
	require.Len(t, f.Commands, 3)
}

func TestFragmentValidate(t *testing.T) {
	cases := map[string]struct {
		fragment Fragment
		wantErr  bool
	}{
		"empty": {},
		"gas coin is always valid": {
			fragment: Fragment{Commands: []Command{SplitCoins{Coin: GasCoin()}}},
		},
		"result of an earlier command": {
			fragment: Fragment{Commands: []Command{call("a"), call("b", NestedResult(0, 3))}},
		},
		"self reference": {
			fragment: Fragment{Commands: []Command{call("a"), call("b", Result(1))}},
			wantErr:  true,
		},
		"input out of range": {
			fragment: Fragment{Inputs: []Input{pure(t, true)}, Commands: []Command{call("a", InputAt(1))}},
			wantErr:  true,
		},
		"nil command": {
			fragment: Fragment{Commands: []Command{nil}},
			wantErr:  true,
		},
		"unknown argument kind": {
			fragment: Fragment{Commands: []Command{call("a", Argument{Kind: 42})}},
			wantErr:  true,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			err := tc.fragment.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			require.True(t, errors.ErrTransactionBuilding.Is(err), "got %v", err)
		})
	}
}

func TestCodec(t *testing.T) {
	b := NewBuilder()
	identity, err := b.Object(Shared(idgov.MustParseObjectID("0x1"), 4, true))
	require.NoError(t, err)
	token, err := b.Object(ImmOrOwned(idgov.ObjectRef{ID: idgov.MustParseObjectID("0x2"), Version: 9, Digest: idgov.NewDigest([]byte("x"))}))
	require.NoError(t, err)
	exp, err := b.Pure(SomeU64(12))
	require.NoError(t, err)
	res := b.MoveCall(pkg, "identity", "propose", []string{"0x1::m::T"}, identity, token, exp)
	b.Command(MakeMoveVec{Type: "u64", Elements: []Argument{res}})
	b.Command(SplitCoins{Coin: GasCoin(), Amounts: []Argument{exp}})
	b.Command(MergeCoins{Destination: GasCoin(), Sources: []Argument{Result(2)}})
	require.NoError(t, b.TransferArg(idgov.Address{7}, NestedResult(2, 0)))
	f := b.Finish()

	raw, err := Marshal(f)
	require.NoError(t, err)
	got, err := Unmarshal(raw)
	require.NoError(t, err)
	if diff := cmp.Diff(f, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	var opt OptionU64
	require.NoError(t, DecodePure(got.Inputs[2].Pure, &opt))
	require.Equal(t, uint64(12), *opt.Ptr())

	_, err = Unmarshal([]byte{0x0a, 0x05, 0x01})
	require.True(t, errors.ErrInput.Is(err))

	_, err = Marshal(&Fragment{Commands: []Command{call("a", Result(0))}})
	require.True(t, errors.ErrTransactionBuilding.Is(err))
}
