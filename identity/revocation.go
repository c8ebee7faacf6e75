package identity

import (
	"context"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/movecall"
	"github.com/iov-one/idgov/ptb"
	"golang.org/x/sync/errgroup"
)

// TokenRevocationTx revokes or unrevokes a delegation token. Only the
// capability that minted the token can do it.
type TokenRevocationTx struct {
	identity *OnChainIdentity
	capID    idgov.ObjectID
	tokenID  idgov.ObjectID
	revoke   bool
	policy   idgov.TokenPolicy
}

var _ Transaction[struct{}] = (*TokenRevocationTx)(nil)

// BuildFragment returns an empty fragment when the token already is in the
// requested state and the policy is idempotent.
func (tx *TokenRevocationTx) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	if err := tx.policy.Validate(); err != nil {
		return nil, err
	}
	var (
		identity   *OnChainIdentity
		capability ControllerToken
		token      ControllerToken
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		identity, err = GetIdentity(gctx, tx.identity.ID(), reader)
		return err
	})
	g.Go(func() (err error) {
		capability, err = GetControllerTokenByID(gctx, tx.capID, reader)
		return err
	})
	g.Go(func() (err error) {
		token, err = GetControllerTokenByID(gctx, tx.tokenID, reader)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c, ok := AsControllerCap(capability)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.New("not a controller capability"), "token", tx.capID)
	}
	d, ok := AsDelegationToken(token)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.New("not a delegation token"), "token", tx.tokenID)
	}
	if c.ControllerOf() != identity.ID() {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("capability controls %s", c.ControllerOf()), "token", c.ID())
	}
	if _, ok := identity.ControllerWeight(c.ID()); !ok {
		return nil, errors.WithObject(errors.ErrUnauthorized.New("not a controller"), "token", c.ID())
	}
	if d.Controller() != c.ID() {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("token was minted by %s", d.Controller()), "token", d.ID())
	}

	if identity.IsRevoked(d.ID()) == tx.revoke {
		if tx.policy == idgov.IdempotentTokenPolicy {
			return &ptb.Fragment{}, nil
		}
		state := "not revoked"
		if tx.revoke {
			state = "already revoked"
		}
		return nil, errors.WithObject(errors.ErrState.New(state), "token", d.ID())
	}

	b := ptb.NewBuilder()
	calls := movecall.New(b, identity.Package())
	identityArg, err := calls.Identity(identity.sharedRef(), true)
	if err != nil {
		return nil, err
	}
	capArg, err := calls.Owned(c.Ref())
	if err != nil {
		return nil, err
	}
	if tx.revoke {
		err = calls.RevokeToken(identityArg, capArg, d.ID())
	} else {
		err = calls.UnrevokeToken(identityArg, capArg, d.ID())
	}
	if err != nil {
		return nil, err
	}
	return b.Finish(), nil
}

// Apply refreshes the identity and checks the token state.
func (tx *TokenRevocationTx) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (struct{}, error) {
	if err := checkStatus(effects); err != nil {
		return struct{}{}, err
	}
	if err := tx.identity.Refresh(ctx, reader); err != nil {
		return struct{}{}, errors.Wrap(errors.ErrEffectsApplication, err.Error())
	}
	if tx.identity.IsRevoked(tx.tokenID) != tx.revoke {
		return struct{}{}, errors.WithObject(errors.ErrEffectsApplication.New("revocation not recorded"), "token", tx.tokenID)
	}
	return struct{}{}, nil
}

// TokenDeletionTx destroys a delegation token held by the sender.
type TokenDeletionTx struct {
	identity *OnChainIdentity
	tokenID  idgov.ObjectID
	policy   idgov.TokenPolicy
}

var _ Transaction[struct{}] = (*TokenDeletionTx)(nil)

func (tx *TokenDeletionTx) BuildFragment(ctx context.Context, reader idgov.ReadClient) (*ptb.Fragment, error) {
	if err := tx.policy.Validate(); err != nil {
		return nil, err
	}
	token, err := GetControllerTokenByID(ctx, tx.tokenID, reader)
	switch {
	case errors.ErrNotFound.Is(err) && tx.policy == idgov.IdempotentTokenPolicy:
		return &ptb.Fragment{}, nil
	case err != nil:
		return nil, err
	}
	d, ok := AsDelegationToken(token)
	if !ok {
		return nil, errors.WithObject(errors.ErrInput.New("not a delegation token"), "token", tx.tokenID)
	}
	if d.ControllerOf() != tx.identity.ID() {
		return nil, errors.WithObject(errors.ErrUnauthorized.Newf("token controls %s", d.ControllerOf()), "token", d.ID())
	}
	identity, err := GetIdentity(ctx, tx.identity.ID(), reader)
	if err != nil {
		return nil, err
	}

	b := ptb.NewBuilder()
	calls := movecall.New(b, identity.Package())
	identityArg, err := calls.Identity(identity.sharedRef(), true)
	if err != nil {
		return nil, err
	}
	tokenArg, err := calls.Owned(d.Ref())
	if err != nil {
		return nil, err
	}
	calls.DestroyDelegationToken(identityArg, tokenArg)
	return b.Finish(), nil
}

// Apply checks that the token was deleted.
func (tx *TokenDeletionTx) Apply(ctx context.Context, effects *idgov.Effects, events *idgov.Events, reader idgov.ReadClient) (struct{}, error) {
	if err := checkStatus(effects); err != nil {
		return struct{}{}, err
	}
	if !effects.IsDeleted(tx.tokenID) {
		return struct{}{}, errors.WithObject(errors.ErrEffectsApplication.New("token was not deleted"), "token", tx.tokenID)
	}
	if err := tx.identity.Refresh(ctx, reader); err != nil {
		return struct{}{}, errors.Wrap(errors.ErrEffectsApplication, err.Error())
	}
	return struct{}{}, nil
}
