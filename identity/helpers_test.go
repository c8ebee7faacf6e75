package identity

import (
	"context"
	"testing"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/ledgertest"
	"github.com/stretchr/testify/require"
)

var (
	alice = idgov.Address{0xa1}
	bob   = idgov.Address{0xb0}
	carol = idgov.Address{0xc0}
)

// fixture is an in-memory ledger with a client per sender.
type fixture struct {
	t       testing.TB
	ctx     context.Context
	ledger  *ledgertest.Ledger
	clients map[idgov.Address]*Client
}

func newFixture(t testing.TB) *fixture {
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		ledger:  ledgertest.New(),
		clients: make(map[idgov.Address]*Client),
	}
}

func (f *fixture) client(sender idgov.Address) *Client {
	c, ok := f.clients[sender]
	if !ok {
		c = NewClient(f.ledger, sender, WithRegistry(f.ledger.Registry()))
		f.clients[sender] = c
	}
	return c
}

func (f *fixture) pkg() idgov.ObjectID {
	return f.ledger.PackageID()
}

func controller(address idgov.Address, weight uint64) contract.ControllerSpec {
	return contract.ControllerSpec{Address: address, Weight: weight, CanDelegate: true}
}

func (f *fixture) newIdentity(threshold uint64, controllers ...contract.ControllerSpec) *OnChainIdentity {
	f.t.Helper()
	b, err := f.client(alice).NewIdentity(f.ctx)
	require.NoError(f.t, err)
	for _, c := range controllers {
		b.Controller(c.Address, c.Weight, c.CanDelegate)
	}
	identity, err := Execute[*OnChainIdentity](f.ctx, f.client(alice), b.Threshold(threshold).Finish())
	require.NoError(f.t, err)
	return identity
}

func (f *fixture) token(holder idgov.Address, identity *OnChainIdentity) ControllerToken {
	f.t.Helper()
	token, err := f.client(holder).ControllerToken(f.ctx, identity)
	require.NoError(f.t, err)
	return token
}

func (f *fixture) capability(holder idgov.Address, identity *OnChainIdentity) *ControllerCap {
	f.t.Helper()
	c, ok := AsControllerCap(f.token(holder, identity))
	require.True(f.t, ok, "%s holds no capability", holder)
	return c
}

// ownedCap returns the capability identity holds over another identity.
func (f *fixture) ownedCap(identity *OnChainIdentity) *idgov.ObjectData {
	f.t.Helper()
	obj, err := f.ledger.FindOwnedObject(f.ctx, identity.Address(), []string{contract.ControllerCapType(f.pkg())}, nil)
	require.NoError(f.t, err)
	return obj
}

func (f *fixture) delegate(identity *OnChainIdentity, permissions uint32, recipient idgov.Address) *DelegationToken {
	f.t.Helper()
	tx := f.capability(alice, identity).Delegate(recipient, permissions)
	token, err := Execute[*DelegationToken](f.ctx, f.client(alice), tx)
	require.NoError(f.t, err)
	return token
}
