package main

import (
	"context"
	"fmt"
	"io"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/identity"
	"github.com/iov-one/idgov/ledgertest"
	"github.com/iov-one/idgov/ptb"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/urfave/cli/v2"
)

var demoCommand = &cli.Command{
	Name:  "demo",
	Usage: "run a two controller borrow proposal against an in-memory ledger",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "value",
			Value: 42,
			Usage: "value written to the borrowed asset",
		},
	},
	Action: func(c *cli.Context) error {
		conf, logger, err := setup(c)
		if err != nil {
			return err
		}
		return runDemo(c.Context, c.App.Writer, conf, logger, c.Uint64("value"))
	},
}

var (
	demoAlice = idgov.Address{0xa1}
	demoBob   = idgov.Address{0xb0}
)

// runDemo creates an identity controlled by two addresses with threshold 2
// that owns an asset. The first controller proposes to borrow the asset and
// the second one approves, executing the proposal.
func runDemo(ctx context.Context, w io.Writer, conf idgov.Config, logger log.Logger, value uint64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ledger := ledgertest.New(ledgertest.WithLogger(logger.With("module", "ledger")))
	if conf.ChainID == "" {
		conf.ChainID = ledgertest.DefaultChainID
		conf.PackageID = ledger.PackageID().String()
	}
	alice, err := identity.NewClientFromConfig(ledger, demoAlice, conf, logger)
	if err != nil {
		return err
	}
	bob, err := identity.NewClientFromConfig(ledger, demoBob, conf, logger)
	if err != nil {
		return err
	}

	b, err := alice.NewIdentity(ctx)
	if err != nil {
		return err
	}
	b.Controller(demoAlice, 1, false).Controller(demoBob, 1, false).Threshold(2)
	id, err := identity.Execute[*identity.OnChainIdentity](ctx, alice, b.Finish())
	if err != nil {
		return errors.Wrap(err, "create identity")
	}
	fmt.Fprintf(w, "identity %s created with threshold %d\n", id.ID(), id.Threshold())

	asset, err := ledger.NewAsset(id.Address(), 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "asset %s owned by the identity\n", asset.ID)

	intent := func(b *ptb.Builder, borrowed map[idgov.ObjectID]identity.Borrowed) error {
		v, err := b.Pure(value)
		if err != nil {
			return err
		}
		b.MoveCall(id.Package(), ledgertest.AssetModule, "set_value", nil, borrowed[asset.ID].Arg, v)
		return nil
	}

	aliceToken, err := alice.ControllerToken(ctx, id)
	if err != nil {
		return err
	}
	res, err := id.Borrow(aliceToken, []idgov.ObjectID{asset.ID}, intent).Send(ctx, alice)
	if err != nil {
		return errors.Wrap(err, "propose")
	}
	proposal, ok := res.Pending()
	if !ok {
		return errors.ErrState.New("proposal executed below the threshold")
	}
	fmt.Fprintf(w, "proposal %s created with %d of %d votes\n", proposal.ID(), proposal.Votes(), id.Threshold())

	bobToken, err := bob.ControllerToken(ctx, id)
	if err != nil {
		return err
	}
	res, err = proposal.Approve(id, bobToken).WithIntent(intent).Send(ctx, bob)
	if err != nil {
		return errors.Wrap(err, "approve")
	}
	if !res.IsExecuted() {
		return errors.ErrState.New("proposal not executed at the threshold")
	}
	got, err := ledger.AssetValue(asset.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "proposal executed, asset value is %d\n", got)
	return nil
}
