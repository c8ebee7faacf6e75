// Package ledgertest provides an in-memory ledger running the identity
// contract. It implements the read and execute client interfaces and is meant
// for tests and local demos.
package ledgertest

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/contract"
	"github.com/iov-one/idgov/errors"
	"github.com/iov-one/idgov/store"
	"github.com/tendermint/tendermint/libs/log"
)

// GasPerCommand is the gas charged for every executed command.
const GasPerCommand = 1000

// DefaultChainID is the chain identifier reported by a ledger created
// without the WithChainID option.
const DefaultChainID = "idgov-local"

// DefaultPackage is the identity contract package id used when no
// WithPackage option is given.
var DefaultPackage = idgov.MustParseObjectID("0x1d")

// Ledger is an in-memory ledger. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	db      store.CacheableKVStore
	chainID string
	pkg     idgov.ObjectID
	epoch   uint64
	// version is the lamport version assigned to objects written by the
	// last transaction.
	version uint64
	router  *Router
	logger  log.Logger

	// upgrades holds the packages published by PublishUpgrade.
	upgrades []idgov.ObjectID
}

var _ idgov.Client = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithChainID sets the chain identifier.
func WithChainID(id string) Option {
	return func(l *Ledger) { l.chainID = id }
}

// WithPackage sets the identity contract package id.
func WithPackage(pkg idgov.ObjectID) Option {
	return func(l *Ledger) { l.pkg = pkg }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// New returns an empty ledger in epoch zero.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		db:      store.MemStore(),
		chainID: DefaultChainID,
		pkg:     DefaultPackage,
		version: 1,
		logger:  log.NewNopLogger(),
	}
	for _, o := range opts {
		o(l)
	}
	l.router = NewRouter()
	registerIdentityRoutes(l.router)
	registerAssetRoutes(l.router)
	return l
}

// PackageID returns the identity contract package id.
func (l *Ledger) PackageID() idgov.ObjectID {
	return l.pkg
}

// Registry returns a registry knowing every published version of the ledger
// contract deployment.
func (l *Ledger) Registry() *contract.Registry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r := contract.NewRegistry()
	for _, pkg := range l.packages() {
		r.Register(l.chainID, pkg)
	}
	return r
}

// PublishUpgrade publishes a new version of the identity contract and returns
// its package id. Calls to any published version run the same functions and
// objects keep the types of the first deployment.
func (l *Ledger) PublishUpgrade() idgov.ObjectID {
	l.mu.Lock()
	defer l.mu.Unlock()
	seq := make([]byte, 8)
	binary.BigEndian.PutUint64(seq, uint64(len(l.upgrades)+1))
	pkg := idgov.ObjectID(idgov.NewDigest(l.pkg[:], seq))
	l.upgrades = append(l.upgrades, pkg)
	return pkg
}

// ContractVersion returns the number of published contract versions.
func (l *Ledger) ContractVersion() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.packages()))
}

func (l *Ledger) packages() []idgov.ObjectID {
	return append([]idgov.ObjectID{l.pkg}, l.upgrades...)
}

// AdvanceEpoch moves the ledger n epochs forward.
func (l *Ledger) AdvanceEpoch(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch += n
}

func (l *Ledger) ChainIdentifier(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(errors.ErrRpc, err.Error())
	}
	return l.chainID, nil
}

func (l *Ledger) CurrentEpoch(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, errors.Wrap(errors.ErrRpc, err.Error())
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.epoch, nil
}

func (l *Ledger) GetObject(ctx context.Context, id idgov.ObjectID) (*idgov.ObjectData, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrRpc, err.Error())
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return loadObject(l.db, id)
}

func (l *Ledger) GetObjectRef(ctx context.Context, id idgov.ObjectID) (idgov.ObjectRef, error) {
	obj, err := l.GetObject(ctx, id)
	if err != nil {
		return idgov.ObjectRef{}, err
	}
	return obj.Ref, nil
}

func (l *Ledger) FindOwnedObject(ctx context.Context, owner idgov.Address, types []string, match func(*idgov.ObjectData) bool) (*idgov.ObjectData, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrRpc, err.Error())
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	objects, err := ownedObjects(l.db, owner)
	if err != nil {
		return nil, err
	}
	for _, obj := range objects {
		if !hasType(obj, types) {
			continue
		}
		if match == nil || match(obj) {
			return obj, nil
		}
	}
	return nil, errors.ErrNotFound.Newf("no matching object owned by %s", owner)
}

func hasType(obj *idgov.ObjectData, types []string) bool {
	for _, t := range types {
		if obj.Type == t {
			return true
		}
	}
	return false
}
