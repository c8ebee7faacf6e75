package contract

import (
	"fmt"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/ptb"
)

// Controller is an entry of the identity controller set.
type Controller struct {
	// CapID is the id of the capability held by the controller.
	CapID       idgov.ObjectID
	Weight      uint64
	CanDelegate bool
}

// Identity is the ledger layout of a shared identity object.
type Identity struct {
	ID          idgov.ObjectID
	Controllers []Controller
	Threshold   uint64
	Deactivated bool
	// Version is the contract version the identity was migrated to.
	Version uint64
	// Revoked holds ids of revoked delegation tokens.
	Revoked []idgov.ObjectID
}

// Controller returns the controller entry of given capability.
func (i *Identity) Controller(capID idgov.ObjectID) (Controller, bool) {
	for _, c := range i.Controllers {
		if c.CapID == capID {
			return c, true
		}
	}
	return Controller{}, false
}

// TotalWeight returns the sum of all controller weights.
func (i *Identity) TotalWeight() uint64 {
	var total uint64
	for _, c := range i.Controllers {
		total += c.Weight
	}
	return total
}

// IsRevoked returns true if given delegation token was revoked.
func (i *Identity) IsRevoked(tokenID idgov.ObjectID) bool {
	for _, id := range i.Revoked {
		if id == tokenID {
			return true
		}
	}
	return false
}

// ControllerCap is the ledger layout of a controller capability.
type ControllerCap struct {
	ID           idgov.ObjectID
	ControllerOf idgov.ObjectID
	CanDelegate  bool
}

// DelegationToken is the ledger layout of a delegation token.
type DelegationToken struct {
	ID idgov.ObjectID
	// Controller is the id of the capability that minted this token.
	Controller   idgov.ObjectID
	ControllerOf idgov.ObjectID
	Permissions  uint32
}

// Proposal is the ledger layout of a proposal object.
type Proposal struct {
	ID         idgov.ObjectID
	Identity   idgov.ObjectID
	Action     Action
	Votes      uint64
	Voters     []idgov.ObjectID
	Expiration ptb.OptionU64
}

// HasVoted returns true if the controller capability approved the proposal.
func (p *Proposal) HasVoted(capID idgov.ObjectID) bool {
	for _, v := range p.Voters {
		if v == capID {
			return true
		}
	}
	return false
}

// IsExpired returns true if the proposal can no longer be approved or
// executed in given epoch.
func (p *Proposal) IsExpired(epoch uint64) bool {
	return p.Expiration.Set && epoch > p.Expiration.Value
}

// ActionKind identifies an action variant.
type ActionKind uint8

const (
	BorrowKind ActionKind = iota + 1
	ControllerExecutionKind
	AccessSubIdentityKind
	ConfigChangeKind
	DeactivationKind
	TokenRevocationKind
	TokenDeletionKind
	SendKind
	UpgradeKind
)

var actionKindNames = map[ActionKind]string{
	BorrowKind:              "borrow",
	ControllerExecutionKind: "controller_execution",
	AccessSubIdentityKind:   "access_sub_identity",
	ConfigChangeKind:        "config_change",
	DeactivationKind:        "deactivation",
	TokenRevocationKind:     "token_revocation",
	TokenDeletionKind:       "token_deletion",
	SendKind:                "send",
	UpgradeKind:             "upgrade",
}

func (k ActionKind) String() string {
	if n, ok := actionKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ActionKind(%d)", uint8(k))
}

// Action is the payload of a proposal.
type Action interface {
	// ActionType returns the contract type of the action.
	ActionType(pkg idgov.ObjectID) string
	Kind() ActionKind
	// Touches returns ids of objects the action operates on besides the
	// identity itself.
	Touches() []idgov.ObjectID
}

// BorrowAction lends objects owned by the identity.
type BorrowAction struct {
	Objects []idgov.ObjectID
}

func (BorrowAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, BorrowModule, "Borrow")
}

func (BorrowAction) Kind() ActionKind { return BorrowKind }

func (a BorrowAction) Touches() []idgov.ObjectID {
	return append([]idgov.ObjectID(nil), a.Objects...)
}

// ControllerExecutionAction lends a capability owned by the identity.
type ControllerExecutionAction struct {
	ControllerCap idgov.ObjectID
}

func (ControllerExecutionAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, ControllerProposalModule, "ControllerExecution")
}

func (ControllerExecutionAction) Kind() ActionKind { return ControllerExecutionKind }

func (a ControllerExecutionAction) Touches() []idgov.ObjectID {
	return []idgov.ObjectID{a.ControllerCap}
}

// AccessSubIdentityAction lends the token the identity holds over a sub
// identity.
type AccessSubIdentityAction struct {
	Identity    idgov.ObjectID
	SubIdentity idgov.ObjectID
}

func (AccessSubIdentityAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, AccessSubIdentityModule, "AccessSubIdentity")
}

func (AccessSubIdentityAction) Kind() ActionKind { return AccessSubIdentityKind }

func (a AccessSubIdentityAction) Touches() []idgov.ObjectID {
	return []idgov.ObjectID{a.SubIdentity}
}

// ControllerSpec describes a controller added by a configuration change.
type ControllerSpec struct {
	Address     idgov.Address
	Weight      uint64
	CanDelegate bool
}

// WeightUpdate changes the weight of an existing controller.
type WeightUpdate struct {
	CapID  idgov.ObjectID
	Weight uint64
}

// ConfigChangeAction modifies the controller set and the threshold.
type ConfigChangeAction struct {
	Threshold ptb.OptionU64
	Add       []ControllerSpec
	Remove    []idgov.ObjectID
	Update    []WeightUpdate
}

func (ConfigChangeAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, ConfigProposalModule, "Modify")
}

func (ConfigChangeAction) Kind() ActionKind { return ConfigChangeKind }

func (a ConfigChangeAction) Touches() []idgov.ObjectID {
	ids := append([]idgov.ObjectID(nil), a.Remove...)
	for _, u := range a.Update {
		ids = append(ids, u.CapID)
	}
	return ids
}

// DeactivationAction deactivates the identity.
type DeactivationAction struct{}

func (DeactivationAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, DeactivationModule, "Deactivate")
}

func (DeactivationAction) Kind() ActionKind { return DeactivationKind }

func (DeactivationAction) Touches() []idgov.ObjectID { return nil }

// Transfer sends an object owned by the identity to a recipient.
type Transfer struct {
	Object    idgov.ObjectID
	Recipient idgov.Address
}

// SendAction transfers objects owned by the identity.
type SendAction struct {
	Transfers []Transfer
}

func (SendAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, TransferModule, "Send")
}

func (SendAction) Kind() ActionKind { return SendKind }

func (a SendAction) Touches() []idgov.ObjectID {
	ids := make([]idgov.ObjectID, len(a.Transfers))
	for i, t := range a.Transfers {
		ids[i] = t.Object
	}
	return ids
}

// UpgradeAction migrates the identity to the current contract version.
type UpgradeAction struct{}

func (UpgradeAction) ActionType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, UpgradeModule, "Upgrade")
}

func (UpgradeAction) Kind() ActionKind { return UpgradeKind }

func (UpgradeAction) Touches() []idgov.ObjectID { return nil }

// ProposalEvent is emitted whenever a controller creates, approves,
// executes or deletes a proposal.
type ProposalEvent struct {
	Identity idgov.ObjectID
	// Controller is the id of the token used by the controller.
	Controller idgov.ObjectID
	Proposal   idgov.ObjectID
	Executed   bool
	Deleted    bool
}
