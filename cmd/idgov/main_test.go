package main

import (
	"bytes"
	"context"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ledgertest/assert"
	"github.com/iov-one/idgov/ptb"
	"github.com/tendermint/tendermint/libs/log"
)

var testPkg = idgov.ObjectID{0x01}

func fragment(t testing.TB, function string, value uint64) []byte {
	t.Helper()
	b := ptb.NewBuilder()
	v, err := b.Pure(value)
	assert.Nil(t, err)
	b.MoveCall(testPkg, "asset", function, nil, v)
	raw, err := ptb.Marshal(b.Finish())
	assert.Nil(t, err)
	return raw
}

func run(t testing.TB, input []byte, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Reader = bytes.NewReader(input)
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"idgov"}, args...))
	return out.String(), err
}

func TestView(t *testing.T) {
	cases := map[string]struct {
		input   []byte
		want    []string
		wantErr *errors.Error
	}{
		"fragment": {
			input: fragment(t, "new", 7),
			want:  []string{"inputs:", "  0: ", "commands:", "  0: "},
		},
		"garbage": {
			input:   []byte("not a fragment"),
			wantErr: errors.ErrInput,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			out, err := run(t, tc.input, "view")
			assert.IsErr(t, tc.wantErr, err)
			for _, w := range tc.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q does not contain %q", out, w)
				}
			}
		})
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.ptb")
	second := filepath.Join(dir, "second.ptb")
	assert.Nil(t, ioutil.WriteFile(first, fragment(t, "new", 7), 0o600))
	assert.Nil(t, ioutil.WriteFile(second, fragment(t, "new", 7), 0o600))

	out, err := run(t, nil, "merge", first, second)
	assert.Nil(t, err)
	merged, err := ptb.Unmarshal([]byte(out))
	assert.Nil(t, err)
	// Equal pure inputs are shared.
	assert.Equal(t, 1, len(merged.Inputs))
	assert.Equal(t, 2, len(merged.Commands))

	_, err = run(t, nil, "merge")
	assert.IsErr(t, errors.ErrInput, err)
	_, err = run(t, nil, "merge", filepath.Join(dir, "missing.ptb"))
	assert.IsErr(t, errors.ErrInput, err)
}

func TestDemo(t *testing.T) {
	var out bytes.Buffer
	err := runDemo(context.Background(), &out, idgov.DefaultConfig(), log.NewNopLogger(), 9)
	assert.Nil(t, err)
	if !strings.HasSuffix(out.String(), "asset value is 9\n") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}
