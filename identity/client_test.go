package identity

import (
	"context"
	"testing"

	stderrors "errors"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ledgertest"
	"github.com/iov-one/idgov/ledgertest/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockLedger reads from an in-memory ledger and mocks submissions.
type mockLedger struct {
	*ledgertest.Ledger
	mock.Mock
}

func (m *mockLedger) Execute(ctx context.Context, sender idgov.Address, tx []byte, gasBudget uint64) (*idgov.TxResponse, error) {
	args := m.Called(sender, gasBudget)
	resp, _ := args.Get(0).(*idgov.TxResponse)
	return resp, args.Error(1)
}

func TestClientExecute(t *testing.T) {
	f := newFixture(t)
	identity := f.newIdentity(1, controller(alice, 1))
	token := f.delegate(identity, contract.PermAll, bob)
	capability := f.capability(alice, identity)

	cases := map[string]struct {
		tx      func() Transaction[struct{}]
		resp    *idgov.TxResponse
		err     error
		submits bool
		wantErr *errors.Error
	}{
		"transport failure": {
			tx: func() Transaction[struct{}] {
				return identity.RevokeDelegationToken(capability, token.ID(), idgov.StrictTokenPolicy)
			},
			err:     stderrors.New("connection refused"),
			submits: true,
			wantErr: errors.ErrRpc,
		},
		"failed execution status": {
			tx: func() Transaction[struct{}] {
				return identity.RevokeDelegationToken(capability, token.ID(), idgov.StrictTokenPolicy)
			},
			resp: &idgov.TxResponse{
				Effects: idgov.Effects{Status: idgov.ExecutionStatus{Error: "insufficient gas"}},
			},
			submits: true,
			wantErr: errors.ErrTransactionExecution,
		},
		"deletion effects without the token": {
			tx: func() Transaction[struct{}] {
				return identity.DeleteDelegationToken(token, idgov.StrictTokenPolicy)
			},
			resp: &idgov.TxResponse{
				Effects: idgov.Effects{Status: idgov.ExecutionStatus{Success: true}},
			},
			submits: true,
			wantErr: errors.ErrEffectsApplication,
		},
		"empty fragment is not submitted": {
			tx: func() Transaction[struct{}] {
				return identity.UnrevokeDelegationToken(capability, token.ID(), idgov.IdempotentTokenPolicy)
			},
			submits: false,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			ledger := &mockLedger{Ledger: f.ledger}
			ledger.On("Execute", alice, uint64(5000)).Return(tc.resp, tc.err)
			client := NewClient(ledger, alice, WithGasBudget(5000), WithRegistry(f.ledger.Registry()))

			_, err := Execute[struct{}](f.ctx, client, tc.tx())
			assert.IsErr(t, tc.wantErr, err)
			if tc.submits {
				ledger.AssertCalled(t, "Execute", alice, uint64(5000))
			} else {
				ledger.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestClientRegistry(t *testing.T) {
	f := newFixture(t)
	identity := f.newIdentity(1, controller(alice, 1))

	client := NewClient(f.ledger, alice)
	_, err := client.PackageID(f.ctx)
	assert.IsErr(t, errors.ErrNotFound, err)
	_, err = client.GetIdentity(f.ctx, identity.ID())
	assert.ObjectError(t, err, errors.ErrInput, "identity", identity.ID())

	conf := idgov.DefaultConfig()
	conf.ChainID = ledgertest.DefaultChainID
	conf.PackageID = f.pkg().String()
	client, err = NewClientFromConfig(f.ledger, alice, conf, nil)
	require.NoError(t, err)
	pkg, err := client.PackageID(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, f.pkg(), pkg)
	got, err := client.GetIdentity(f.ctx, identity.ID())
	require.NoError(t, err)
	assert.Equal(t, identity.ID(), got.ID())

	conf.PackageID = "0xzz"
	_, err = NewClientFromConfig(f.ledger, alice, conf, nil)
	assert.IsErr(t, errors.ErrInput, err)
}

func TestClientCancelledContext(t *testing.T) {
	f := newFixture(t)
	identity := f.newIdentity(1, controller(alice, 1))
	token := f.token(alice, identity)

	ctx, cancel := context.WithCancel(f.ctx)
	cancel()
	_, err := identity.Deactivate(token).Send(ctx, f.client(alice))
	assert.IsErr(t, errors.ErrRpc, err)
	assert.Equal(t, false, identity.IsDeactivated())
}

func TestClientFromConfigSettings(t *testing.T) {
	cases := map[string]struct {
		policy  idgov.TokenPolicy
		wantErr *errors.Error
	}{
		"strict": {
			policy:  idgov.StrictTokenPolicy,
			wantErr: errors.ErrState,
		},
		"idempotent": {
			policy:  idgov.IdempotentTokenPolicy,
			wantErr: nil,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			first := f.newIdentity(1, controller(alice, 1))
			second := f.newIdentity(1, controller(alice, 1))
			token := f.delegate(first, contract.PermAll, bob)

			conf := idgov.DefaultConfig()
			conf.TokenPolicy = tc.policy
			conf.CacheSize = 1
			client, err := NewClientFromConfig(f.ledger, alice, conf, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.policy, client.TokenPolicy())

			// Unrevoking an active token.
			_, err = Execute[struct{}](f.ctx, client, client.UnrevokeToken(first, f.capability(alice, first), token.ID()))
			assert.IsErr(t, tc.wantErr, err)

			identities, err := client.IdentityCache()
			require.NoError(t, err)
			for _, id := range []idgov.ObjectID{first.ID(), second.ID()} {
				_, err := identities.Get(f.ctx, id)
				require.NoError(t, err)
			}
			assert.Equal(t, 1, identities.Len())

			proposals, err := ProposalCacheOf[contract.DeactivationAction](client)
			require.NoError(t, err)
			assert.Equal(t, 0, proposals.Len())
		})
	}
}
