package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/movecall"
	"github.com/iov-one/idgov/ptb"
	"golang.org/x/sync/errgroup"
)

// txEnv is the ledger state a proposal transaction is built against.
type txEnv struct {
	identity *OnChainIdentity
	token    ControllerToken
	epoch    uint64
	reader   idgov.ReadClient

	b           *ptb.Builder
	calls       *movecall.Calls
	identityArg ptb.Argument
	tokenArg    ptb.Argument
}

// loadEnv reads the latest identity, token and epoch concurrently.
func loadEnv(ctx context.Context, reader idgov.ReadClient, identityID, tokenID idgov.ObjectID) (*txEnv, error) {
	env := &txEnv{reader: reader}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		identity, err := GetIdentity(gctx, identityID, reader)
		env.identity = identity
		return err
	})
	g.Go(func() error {
		token, err := GetControllerTokenByID(gctx, tokenID, reader)
		env.token = token
		return err
	})
	g.Go(func() error {
		epoch, err := reader.CurrentEpoch(gctx)
		if err != nil && !errors.ErrRpc.Is(err) {
			err = errors.Wrapf(errors.ErrRpc, "current epoch: %s", err)
		}
		env.epoch = epoch
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	env.b = ptb.NewBuilder()
	env.calls = movecall.New(env.b, env.identity.Package())
	return env, nil
}

// addArguments adds the identity and the token as the first transaction
// inputs.
func (env *txEnv) addArguments() error {
	var err error
	if env.identityArg, err = env.calls.Identity(env.identity.sharedRef(), true); err != nil {
		return err
	}
	env.tokenArg, err = env.calls.Owned(env.token.Ref())
	return err
}
