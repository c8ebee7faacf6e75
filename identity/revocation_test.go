package identity

import (
	"testing"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ledgertest/assert"
	"github.com/stretchr/testify/require"
)

func TestDelegate(t *testing.T) {
	f := newFixture(t)
	identity := f.newIdentity(1, controller(alice, 1), contract.ControllerSpec{Address: bob, Weight: 1})

	token := f.delegate(identity, contract.PermApproveProposal|contract.PermCreateProposal, carol)
	assert.Equal(t, identity.ID(), token.ControllerOf())
	assert.Equal(t, f.capability(alice, identity).ID(), token.Controller())
	assert.Equal(t, true, token.Permits(contract.PermApproveProposal))
	assert.Equal(t, false, token.Permits(contract.PermExecuteProposal))

	_, err := Execute[*DelegationToken](f.ctx, f.client(bob), f.capability(bob, identity).Delegate(carol, contract.PermAll))
	assert.IsErr(t, errors.ErrUnauthorized, err)
}

func TestTokenRevocation(t *testing.T) {
	cases := map[string]struct {
		policy    idgov.TokenPolicy
		wantAgain *errors.Error
	}{
		"strict": {
			policy:    idgov.StrictTokenPolicy,
			wantAgain: errors.ErrState,
		},
		"idempotent": {
			policy:    idgov.IdempotentTokenPolicy,
			wantAgain: nil,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			identity := f.newIdentity(1, controller(alice, 1))
			asset, err := f.ledger.NewAsset(identity.Address(), 1)
			require.NoError(t, err)
			capability := f.capability(alice, identity)
			token := f.delegate(identity, contract.PermAll, bob)
			client := f.client(alice)

			// Unrevoking an active token.
			_, err = Execute[struct{}](f.ctx, client, identity.UnrevokeDelegationToken(capability, token.ID(), tc.policy))
			assert.IsErr(t, tc.wantAgain, err)

			_, err = Execute[struct{}](f.ctx, client, identity.RevokeDelegationToken(capability, token.ID(), tc.policy))
			require.NoError(t, err)
			assert.Equal(t, true, identity.IsRevoked(token.ID()))

			// Revoking twice.
			version := identity.Version()
			_, err = Execute[struct{}](f.ctx, client, identity.RevokeDelegationToken(capability, token.ID(), tc.policy))
			assert.IsErr(t, tc.wantAgain, err)
			require.NoError(t, identity.Refresh(f.ctx, f.ledger))
			assert.Equal(t, version, identity.Version())

			_, err = identity.Borrow(token, []idgov.ObjectID{asset.ID}, nil).Send(f.ctx, f.client(bob))
			assert.ObjectError(t, err, errors.ErrUnauthorized, "token", token.ID())

			_, err = Execute[struct{}](f.ctx, client, identity.UnrevokeDelegationToken(capability, token.ID(), tc.policy))
			require.NoError(t, err)
			assert.Equal(t, false, identity.IsRevoked(token.ID()))

			_, err = identity.Borrow(token, []idgov.ObjectID{asset.ID}, nil).Send(f.ctx, f.client(bob))
			require.NoError(t, err)
		})
	}
}

func TestRevocationRequiresMintingCapability(t *testing.T) {
	f := newFixture(t)
	identity := f.newIdentity(1, controller(alice, 1), controller(bob, 1))
	token := f.delegate(identity, contract.PermAll, carol)

	tx := identity.RevokeDelegationToken(f.capability(bob, identity), token.ID(), idgov.StrictTokenPolicy)
	_, err := Execute[struct{}](f.ctx, f.client(bob), tx)
	assert.ObjectError(t, err, errors.ErrUnauthorized, "token", token.ID())

	tx = identity.RevokeDelegationToken(f.capability(alice, identity), token.ID(), idgov.TokenPolicy("lenient"))
	_, err = Execute[struct{}](f.ctx, f.client(alice), tx)
	assert.IsErr(t, errors.ErrInput, err)
}

func TestTokenDeletion(t *testing.T) {
	cases := map[string]struct {
		policy    idgov.TokenPolicy
		wantAgain *errors.Error
	}{
		"strict": {
			policy:    idgov.StrictTokenPolicy,
			wantAgain: errors.ErrNotFound,
		},
		"idempotent": {
			policy:    idgov.IdempotentTokenPolicy,
			wantAgain: nil,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			identity := f.newIdentity(1, controller(alice, 1))
			token := f.delegate(identity, contract.PermAll, bob)
			_, err := Execute[struct{}](f.ctx, f.client(alice), identity.RevokeDelegationToken(f.capability(alice, identity), token.ID(), tc.policy))
			require.NoError(t, err)

			_, err = Execute[struct{}](f.ctx, f.client(bob), identity.DeleteDelegationToken(token, tc.policy))
			require.NoError(t, err)
			_, err = f.ledger.GetObject(f.ctx, token.ID())
			assert.IsErr(t, errors.ErrNotFound, err)
			assert.Equal(t, false, identity.IsRevoked(token.ID()))

			_, err = Execute[struct{}](f.ctx, f.client(bob), identity.DeleteDelegationToken(token, tc.policy))
			assert.IsErr(t, tc.wantAgain, err)
		})
	}
}
