package contract

import (
	"strings"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
)

// Modules of the identity contract.
const (
	IdentityModule           = "identity"
	ControllerModule         = "controller"
	MultiControllerModule    = "multicontroller"
	BorrowModule             = "borrow_proposal"
	ControllerProposalModule = "controller_proposal"
	AccessSubIdentityModule  = "access_sub_entity_proposal"
	ConfigProposalModule     = "config_proposal"
	DeactivationModule       = "deactivation_proposal"
	TransferModule           = "transfer_proposal"
	UpgradeModule            = "upgrade_proposal"
)

// TypeTag returns the fully qualified name of a contract type.
func TypeTag(pkg idgov.ObjectID, module, name string) string {
	return pkg.String() + "::" + module + "::" + name
}

// IdentityType returns the type of identity objects.
func IdentityType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, IdentityModule, "Identity")
}

// ControllerCapType returns the type of controller capabilities.
func ControllerCapType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, ControllerModule, "ControllerCap")
}

// DelegationTokenType returns the type of delegation tokens.
func DelegationTokenType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, ControllerModule, "DelegationToken")
}

// ProposalEventType returns the type of events emitted when proposals are
// created, approved or executed.
func ProposalEventType(pkg idgov.ObjectID) string {
	return TypeTag(pkg, IdentityModule, "ProposalEvent")
}

// ProposalType returns the type of proposals carrying given action type.
func ProposalType(pkg idgov.ObjectID, actionType string) string {
	return TypeTag(pkg, MultiControllerModule, "Proposal") + "<" + actionType + ">"
}

// ProposalActionType extracts the action type of a proposal type. It returns
// false if typ is not a proposal type of pkg.
func ProposalActionType(pkg idgov.ObjectID, typ string) (string, bool) {
	prefix := TypeTag(pkg, MultiControllerModule, "Proposal") + "<"
	if !strings.HasPrefix(typ, prefix) || !strings.HasSuffix(typ, ">") {
		return "", false
	}
	return typ[len(prefix) : len(typ)-1], true
}

// Delegation token permissions.
const (
	PermCreateProposal  uint32 = 1 << iota
	PermApproveProposal
	PermExecuteProposal
	PermDeleteProposal
)

// Permission sets.
const (
	PermNone uint32 = 0
	PermAll  uint32 = PermCreateProposal | PermApproveProposal | PermExecuteProposal | PermDeleteProposal
)

// PackageOf returns the package id of a fully qualified type.
func PackageOf(typ string) (idgov.ObjectID, error) {
	i := strings.Index(typ, "::")
	if i < 0 {
		return idgov.ObjectID{}, errors.ErrInput.Newf("%q is not a qualified type", typ)
	}
	return idgov.ParseObjectID(typ[:i])
}
