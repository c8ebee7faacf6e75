package idgov

import (
	"context"
)

// ReadClient gives read access to the ledger state. Implementations must be
// safe for concurrent use.
type ReadClient interface {
	// ChainIdentifier returns the identifier of the connected chain.
	ChainIdentifier(ctx context.Context) (string, error)

	// CurrentEpoch returns the epoch the ledger is currently in.
	CurrentEpoch(ctx context.Context) (uint64, error)

	// GetObject returns the latest version of an object. ErrNotFound is
	// returned if the object does not exist or was deleted.
	GetObject(ctx context.Context, id ObjectID) (*ObjectData, error)

	// GetObjectRef returns a reference to the latest version of an object.
	GetObjectRef(ctx context.Context, id ObjectID) (ObjectRef, error)

	// FindOwnedObject returns the first object owned by given address,
	// having one of given types and accepted by match. A nil match accepts
	// all objects. ErrNotFound is returned if no object qualifies.
	FindOwnedObject(ctx context.Context, owner Address, types []string, match func(*ObjectData) bool) (*ObjectData, error)
}

// ExecuteClient submits transactions to the ledger.
type ExecuteClient interface {
	// Execute signs as sender and executes serialized transaction
	// commands. Execution failures are reported by the effects status.
	// An error is returned only when the submission itself failed.
	Execute(ctx context.Context, sender Address, tx []byte, gasBudget uint64) (*TxResponse, error)
}

// Client is a full ledger client.
type Client interface {
	ReadClient
	ExecuteClient
}
