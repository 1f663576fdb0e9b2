package piggy

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"piggyvault/core/types"
)

const (
	EventTypeDeposit            = "piggy.deposit"
	EventTypeWithdraw           = "piggy.withdraw"
	EventTypeEmergencyWithdraw  = "piggy.emergency_withdraw"
	EventTypeGroupDeposit       = "piggy.group.deposit"
	EventTypeProposalCreated    = "piggy.group.proposal_created"
	EventTypeProposalApproved   = "piggy.group.proposal_approved"
	EventTypeProposalExecuted   = "piggy.group.proposal_executed"
	EventTypeParticipantAdded   = "piggy.group.participant_added"
	EventTypeParticipantRemoved = "piggy.group.participant_removed"
	EventTypeQuorumUpdated      = "piggy.group.quorum_updated"
)

// NewDepositEvent returns the canonical payload for an individual deposit.
func NewDepositEvent(acct *Account, caller [20]byte, amount *big.Int) *types.Event {
	attrs := accountAttrs(acct)
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["amount"] = amountString(amount)
	return &types.Event{Type: EventTypeDeposit, Attributes: attrs}
}

// NewWithdrawEvent returns the canonical payload for an individual withdrawal.
func NewWithdrawEvent(acct *Account, caller [20]byte, amount *big.Int) *types.Event {
	attrs := accountAttrs(acct)
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["amount"] = amountString(amount)
	return &types.Event{Type: EventTypeWithdraw, Attributes: attrs}
}

// NewEmergencyWithdrawEvent returns the payload for a penalised drain of an
// individual account.
func NewEmergencyWithdrawEvent(acct *Account, caller [20]byte, payout, penalty *big.Int) *types.Event {
	attrs := accountAttrs(acct)
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["payout"] = amountString(payout)
	attrs["penalty"] = amountString(penalty)
	return &types.Event{Type: EventTypeEmergencyWithdraw, Attributes: attrs}
}

// NewGroupDepositEvent returns the payload for a participant deposit.
func NewGroupDepositEvent(group *GroupAccount, caller [20]byte, amount *big.Int) *types.Event {
	attrs := groupAttrs(group)
	attrs["caller"] = hex.EncodeToString(caller[:])
	attrs["amount"] = amountString(amount)
	return &types.Event{Type: EventTypeGroupDeposit, Attributes: attrs}
}

// NewProposalCreatedEvent returns the payload for a freshly raised proposal.
func NewProposalCreatedEvent(group *GroupAccount, proposal *Proposal) *types.Event {
	attrs := groupAttrs(group)
	addProposalAttrs(attrs, proposal)
	return &types.Event{Type: EventTypeProposalCreated, Attributes: attrs}
}

// NewProposalApprovedEvent returns the payload recorded for each new vote.
func NewProposalApprovedEvent(group *GroupAccount, proposal *Proposal, approver [20]byte) *types.Event {
	attrs := groupAttrs(group)
	addProposalAttrs(attrs, proposal)
	attrs["approver"] = hex.EncodeToString(approver[:])
	return &types.Event{Type: EventTypeProposalApproved, Attributes: attrs}
}

// NewProposalExecutedEvent returns the payload emitted when a proposal is
// distributed.
func NewProposalExecutedEvent(group *GroupAccount, proposal *Proposal, distributed, residue *big.Int) *types.Event {
	attrs := groupAttrs(group)
	addProposalAttrs(attrs, proposal)
	attrs["distributed"] = amountString(distributed)
	attrs["residue"] = amountString(residue)
	return &types.Event{Type: EventTypeProposalExecuted, Attributes: attrs}
}

// NewParticipantAddedEvent returns the payload for a participant addition.
func NewParticipantAddedEvent(group *GroupAccount, participant [20]byte) *types.Event {
	attrs := groupAttrs(group)
	attrs["participant"] = hex.EncodeToString(participant[:])
	return &types.Event{Type: EventTypeParticipantAdded, Attributes: attrs}
}

// NewParticipantRemovedEvent returns the payload for a participant removal,
// including any contribution refunded on the way out.
func NewParticipantRemovedEvent(group *GroupAccount, participant [20]byte, refund *big.Int) *types.Event {
	attrs := groupAttrs(group)
	attrs["participant"] = hex.EncodeToString(participant[:])
	attrs["refund"] = amountString(refund)
	return &types.Event{Type: EventTypeParticipantRemoved, Attributes: attrs}
}

// NewQuorumUpdatedEvent returns the payload for a quorum requirement change.
func NewQuorumUpdatedEvent(group *GroupAccount) *types.Event {
	return &types.Event{Type: EventTypeQuorumUpdated, Attributes: groupAttrs(group)}
}

func accountAttrs(acct *Account) map[string]string {
	attrs := make(map[string]string)
	if acct == nil {
		return attrs
	}
	attrs["account"] = hex.EncodeToString(acct.Address[:])
	attrs["owner"] = hex.EncodeToString(acct.Owner[:])
	attrs["asset"] = acct.Asset.String()
	attrs["balance"] = amountString(acct.Balance)
	return attrs
}

func groupAttrs(group *GroupAccount) map[string]string {
	attrs := make(map[string]string)
	if group == nil {
		return attrs
	}
	attrs["account"] = hex.EncodeToString(group.Address[:])
	attrs["name"] = group.Name
	attrs["asset"] = group.Asset.String()
	attrs["balance"] = amountString(group.Balance)
	attrs["requiredApprovals"] = strconv.FormatUint(uint64(group.RequiredApprovals), 10)
	attrs["participants"] = strconv.Itoa(len(group.Participants))
	return attrs
}

func addProposalAttrs(attrs map[string]string, proposal *Proposal) {
	if proposal == nil {
		return
	}
	attrs["proposalId"] = strconv.FormatUint(proposal.ID, 10)
	attrs["requester"] = hex.EncodeToString(proposal.Requester[:])
	attrs["emergency"] = strconv.FormatBool(proposal.Emergency)
	attrs["approvals"] = strconv.Itoa(len(proposal.Approvals))
	attrs["executed"] = strconv.FormatBool(proposal.Executed)
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
