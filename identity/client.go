package identity

import (
	"context"
	"fmt"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/cache"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/ptb"
	"github.com/tendermint/tendermint/libs/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/iov-one/idgov/identity"

// Client submits identity transactions on behalf of a sender.
type Client struct {
	ledger    idgov.Client
	sender    idgov.Address
	registry  *contract.Registry
	gasBudget uint64
	policy    idgov.TokenPolicy
	cacheSize int
	logger    log.Logger
	tracer    trace.Tracer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGasBudget sets the gas budget of every submitted transaction.
func WithGasBudget(budget uint64) ClientOption {
	return func(c *Client) { c.gasBudget = budget }
}

// WithRegistry sets the registry of known contract deployments.
func WithRegistry(r *contract.Registry) ClientOption {
	return func(c *Client) { c.registry = r }
}

// WithTokenPolicy sets the policy of the token lifecycle transactions built
// by the client.
func WithTokenPolicy(p idgov.TokenPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithCacheSize bounds the caches returned by the client.
func WithCacheSize(size int) ClientOption {
	return func(c *Client) { c.cacheSize = size }
}

func WithLogger(logger log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient returns a client signing as sender.
func NewClient(ledger idgov.Client, sender idgov.Address, opts ...ClientOption) *Client {
	c := &Client{
		ledger:    ledger,
		sender:    sender,
		registry:  contract.NewRegistry(),
		gasBudget: idgov.DefaultConfig().GasBudget,
		policy:    idgov.DefaultConfig().TokenPolicy,
		cacheSize: idgov.DefaultConfig().CacheSize,
		logger:    log.NewNopLogger(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("module", "identity", "sender", sender)
	return c
}

// NewClientFromConfig returns a client configured by conf. The package of
// conf, if any, is registered for its chain. A nil logger discards logs.
func NewClientFromConfig(ledger idgov.Client, sender idgov.Address, conf idgov.Config, logger log.Logger) (*Client, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	registry := contract.NewRegistry()
	if conf.PackageID != "" {
		pkg, err := idgov.ParseObjectID(conf.PackageID)
		if err != nil {
			return nil, errors.Field("PackageID", err, "invalid package id")
		}
		registry.Register(conf.ChainID, pkg)
	}
	return NewClient(ledger, sender,
		WithGasBudget(conf.GasBudget),
		WithRegistry(registry),
		WithTokenPolicy(conf.TokenPolicy),
		WithCacheSize(conf.CacheSize),
		WithLogger(logger),
	), nil
}

// Sender returns the address transactions are signed with.
func (c *Client) Sender() idgov.Address { return c.sender }

// Reader returns the ledger read client.
func (c *Client) Reader() idgov.ReadClient { return c.ledger }

// TokenPolicy returns the policy applied by RevokeToken, UnrevokeToken and
// DeleteToken.
func (c *Client) TokenPolicy() idgov.TokenPolicy { return c.policy }

// IdentityCache returns a new identity cache bounded by the client cache
// size.
func (c *Client) IdentityCache() (*cache.Registry[*OnChainIdentity], error) {
	return NewIdentityCache(c.ledger, c.cacheSize)
}

// ProposalCacheOf returns a new cache of proposals carrying A, bounded by the
// cache size of c.
func ProposalCacheOf[A contract.Action](c *Client) (*cache.Registry[*Proposal[A]], error) {
	return NewProposalCache[A](c.ledger, c.cacheSize)
}

// RevokeToken revokes a delegation token under the client token policy.
func (c *Client) RevokeToken(identity *OnChainIdentity, capability *ControllerCap, tokenID idgov.ObjectID) *TokenRevocationTx {
	return identity.RevokeDelegationToken(capability, tokenID, c.policy)
}

// UnrevokeToken lifts the revocation of a delegation token under the client
// token policy.
func (c *Client) UnrevokeToken(identity *OnChainIdentity, capability *ControllerCap, tokenID idgov.ObjectID) *TokenRevocationTx {
	return identity.UnrevokeDelegationToken(capability, tokenID, c.policy)
}

// DeleteToken deletes a delegation token under the client token policy.
func (c *Client) DeleteToken(identity *OnChainIdentity, token *DelegationToken) *TokenDeletionTx {
	return identity.DeleteDelegationToken(token, c.policy)
}

func (c *Client) chainID(ctx context.Context) (string, error) {
	chain, err := c.ledger.ChainIdentifier(ctx)
	if err != nil && !errors.ErrRpc.Is(err) {
		err = errors.Wrapf(errors.ErrRpc, "chain identifier: %s", err)
	}
	return chain, err
}

// PackageID returns the current identity contract package of the connected
// chain.
func (c *Client) PackageID(ctx context.Context) (idgov.ObjectID, error) {
	chain, err := c.chainID(ctx)
	if err != nil {
		return idgov.ZeroID, err
	}
	return c.registry.Latest(chain)
}

// GetIdentity fetches an identity created by one of the known contract
// deployments.
func (c *Client) GetIdentity(ctx context.Context, id idgov.ObjectID) (*OnChainIdentity, error) {
	chain, err := c.chainID(ctx)
	if err != nil {
		return nil, err
	}
	identity, err := GetIdentity(ctx, id, c.ledger)
	if err != nil {
		return nil, err
	}
	typ := identity.obj.Type
	for _, known := range c.registry.Types(chain, contract.IdentityType) {
		if typ == known {
			return identity, nil
		}
	}
	return nil, errors.WithObject(errors.ErrInput.Newf("unknown identity package %s", identity.Package()), "identity", id)
}

// NewIdentity starts composing an identity with the current package.
func (c *Client) NewIdentity(ctx context.Context) (*IdentityBuilder, error) {
	pkg, err := c.PackageID(ctx)
	if err != nil {
		return nil, err
	}
	return NewIdentity(pkg), nil
}

// Upgrade proposes to migrate identity to the latest contract version known
// for the connected chain. The version is the length of the registry package
// history.
func (c *Client) Upgrade(ctx context.Context, identity *OnChainIdentity, token ControllerToken) (*ProposalTx[contract.UpgradeAction, struct{}], error) {
	chain, err := c.chainID(ctx)
	if err != nil {
		return nil, err
	}
	history := c.registry.History(chain)
	if len(history) == 0 {
		return nil, errors.ErrNotFound.Newf("no identity package for chain %q", chain)
	}
	version := uint64(len(history))
	if identity.ContractVersion() >= version {
		return nil, errors.WithObject(errors.ErrState.Newf("identity is at version %d", identity.ContractVersion()), "identity", identity.ID())
	}
	return identity.Upgrade(token, version), nil
}

// ControllerToken returns the token the sender holds over identity.
func (c *Client) ControllerToken(ctx context.Context, identity *OnChainIdentity) (ControllerToken, error) {
	return identity.GetControllerToken(ctx, c.sender, c.ledger)
}

// Execute builds, submits and applies a transaction. A transaction building
// an empty fragment is not submitted and yields the zero value of T.
func Execute[T any](ctx context.Context, c *Client, tx Transaction[T]) (T, error) {
	var zero T
	ctx, span := c.tracer.Start(ctx, "identity.Execute")
	defer span.End()

	out, err := execute(ctx, c, tx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("transaction failed", "tx", typeName(tx), "err", err)
		return zero, err
	}
	return out, nil
}

func execute[T any](ctx context.Context, c *Client, tx Transaction[T], span trace.Span) (T, error) {
	var zero T
	fragment, err := tx.BuildFragment(ctx, c.ledger)
	if err != nil {
		return zero, err
	}
	if fragment.IsEmpty() {
		c.logger.Debug("nothing to execute", "tx", typeName(tx))
		return zero, nil
	}
	raw, err := ptb.Marshal(fragment)
	if err != nil {
		return zero, err
	}
	span.SetAttributes(attribute.Int("commands", len(fragment.Commands)))

	resp, err := c.ledger.Execute(ctx, c.sender, raw, c.gasBudget)
	if err != nil {
		if !errors.ErrRpc.Is(err) {
			err = errors.Wrapf(errors.ErrRpc, "execute: %s", err)
		}
		return zero, err
	}
	span.SetAttributes(
		attribute.String("digest", resp.Effects.TxDigest.String()),
		attribute.Int64("gas", int64(resp.Effects.GasUsed)),
	)
	if err := checkStatus(&resp.Effects); err != nil {
		return zero, err
	}
	out, err := tx.Apply(ctx, &resp.Effects, idgov.NewEvents(resp.Events), c.ledger)
	if err != nil {
		return zero, err
	}
	c.logger.Info("transaction executed", "tx", typeName(tx), "digest", resp.Effects.TxDigest, "gas", resp.Effects.GasUsed)
	return out, nil
}

func typeName(v interface{}) string {
	return fmt.Sprintf("%T", v)
}
