package piggy

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"piggyvault/core/types"
)

var (
	// ErrInvalidQuorum is returned when a participant or quorum mutation
	// would break 1 <= requiredApprovals <= len(participants).
	ErrInvalidQuorum = errors.New("piggy: invalid quorum")
	// ErrInsufficientApprovals is returned when execution is attempted
	// before the pending proposal reaches quorum.
	ErrInsufficientApprovals = errors.New("piggy: insufficient approvals")
	// ErrNoProposal is returned when execution or approval is attempted
	// with no pending proposal.
	ErrNoProposal = errors.New("piggy: no withdrawal proposed")
	// ErrProposalPending is returned when a new proposal is raised while an
	// unexecuted one exists.
	ErrProposalPending = errors.New("piggy: withdrawal proposal already pending")
)

// CreateGroup instantiates a multi-party account record on behalf of the
// registry. Participants start with zero contributions.
func (e *Engine) CreateGroup(addr, creator [20]byte, name string, participants [][20]byte, required uint32, asset types.Asset, target *big.Int, lockEnd int64, cap *big.Int, now int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.GroupGet(addr); err != nil {
		return err
	} else if ok {
		return errAccountExists
	}
	if len(participants) == 0 || required < 1 || int(required) > len(participants) {
		return ErrInvalidQuorum
	}
	group := &GroupAccount{
		Address:           addr,
		Creator:           creator,
		Name:              strings.TrimSpace(name),
		Asset:             asset,
		Target:            cloneBigInt(target),
		LockEnd:           lockEnd,
		RequiredApprovals: required,
		Balance:           big.NewInt(0),
		NextProposalID:    1,
		CreatedAt:         now,
	}
	if cap != nil && cap.Sign() > 0 {
		group.Cap = new(big.Int).Set(cap)
	}
	group.Participants = make([]Participant, 0, len(participants))
	for _, p := range participants {
		group.Participants = append(group.Participants, Participant{Address: p, Contribution: big.NewInt(0)})
	}
	return e.state.GroupPut(group)
}

func (e *Engine) loadGroup(addr [20]byte) (*GroupAccount, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	group, ok, err := e.state.GroupGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return group, nil
}

// AddParticipant appends a new member with a zero contribution. Only the
// group creator may mutate the participant set.
func (e *Engine) AddParticipant(addr, caller, participant [20]byte) error {
	group, err := e.loadGroup(addr)
	if err != nil {
		return err
	}
	if caller != group.Creator {
		return ErrUnauthorized
	}
	if group.participant(participant) != nil {
		return fmt.Errorf("piggy: address already a participant")
	}
	group.Participants = append(group.Participants, Participant{Address: participant, Contribution: big.NewInt(0)})
	if err := e.state.GroupPut(group); err != nil {
		return err
	}
	e.emit(NewParticipantAddedEvent(group, participant))
	return nil
}

// RemoveParticipant drops a member. A removal that would push the quorum
// requirement above the remaining participant count is rejected. A non-zero
// contribution is refunded first so the balance keeps matching the
// contribution sum.
func (e *Engine) RemoveParticipant(addr, caller, participant [20]byte) error {
	group, err := e.loadGroup(addr)
	if err != nil {
		return err
	}
	if caller != group.Creator {
		return ErrUnauthorized
	}
	member := group.participant(participant)
	if member == nil {
		return fmt.Errorf("piggy: address is not a participant")
	}
	if int(group.RequiredApprovals) > len(group.Participants)-1 {
		return ErrInvalidQuorum
	}
	refund := cloneBigInt(member.Contribution)
	idx := -1
	for i := range group.Participants {
		if group.Participants[i].Address == participant {
			idx = i
			break
		}
	}
	group.Participants = append(group.Participants[:idx], group.Participants[idx+1:]...)
	if refund.Sign() > 0 {
		group.Balance = new(big.Int).Sub(group.Balance, refund)
	}
	if err := e.state.GroupPut(group); err != nil {
		return err
	}
	if refund.Sign() > 0 {
		if err := e.state.Transfer(group.Address, participant, group.Asset, refund); err != nil {
			return err
		}
	}
	e.emit(NewParticipantRemovedEvent(group, participant, refund))
	return nil
}

// UpdateRequiredApprovals replaces the quorum requirement, keeping it within
// [1, len(participants)].
func (e *Engine) UpdateRequiredApprovals(addr, caller [20]byte, required uint32) error {
	group, err := e.loadGroup(addr)
	if err != nil {
		return err
	}
	if caller != group.Creator {
		return ErrUnauthorized
	}
	if required < 1 || int(required) > len(group.Participants) {
		return ErrInvalidQuorum
	}
	group.RequiredApprovals = required
	if err := e.state.GroupPut(group); err != nil {
		return err
	}
	e.emit(NewQuorumUpdatedEvent(group))
	return nil
}

// GroupDeposit moves amount of the group's asset from a participant into the
// account and records it against their contribution.
func (e *Engine) GroupDeposit(addr, caller [20]byte, amount *big.Int) error {
	group, err := e.loadGroup(addr)
	if err != nil {
		return err
	}
	member := group.participant(caller)
	if member == nil {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("piggy: deposit amount must be positive")
	}
	next := new(big.Int).Add(group.Balance, amount)
	if group.Cap != nil && next.Cmp(group.Cap) > 0 {
		return ErrCapExceeded
	}
	if err := e.state.Transfer(caller, group.Address, group.Asset, amount); err != nil {
		return err
	}
	member.Contribution = new(big.Int).Add(member.Contribution, amount)
	group.Balance = next
	if err := e.state.GroupPut(group); err != nil {
		return err
	}
	e.emit(NewGroupDepositEvent(group, caller, amount))
	return nil
}

// ProposeWithdrawal raises a new withdrawal proposal. The proposer's approval
// is recorded automatically and counts toward quorum. Raising a proposal
// while another is pending is rejected.
func (e *Engine) ProposeWithdrawal(addr, caller [20]byte, emergency bool) (uint64, error) {
	group, err := e.loadGroup(addr)
	if err != nil {
		return 0, err
	}
	if group.participant(caller) == nil {
		return 0, ErrUnauthorized
	}
	if group.pending() != nil {
		return 0, ErrProposalPending
	}
	proposal := Proposal{
		ID:        group.NextProposalID,
		Requester: caller,
		Emergency: emergency,
		Approvals: [][20]byte{caller},
		CreatedAt: e.now(),
	}
	group.NextProposalID++
	group.Proposals = append(group.Proposals, proposal)
	if err := e.state.GroupPut(group); err != nil {
		return 0, err
	}
	e.emit(NewProposalCreatedEvent(group, &proposal))
	return proposal.ID, nil
}

// ApproveWithdrawal records the caller's vote on the identified proposal.
// Approvals are a set: a repeat vote from the same participant is a no-op and
// the current count is returned either way.
func (e *Engine) ApproveWithdrawal(addr, caller [20]byte, proposalID uint64) (int, error) {
	group, err := e.loadGroup(addr)
	if err != nil {
		return 0, err
	}
	if group.participant(caller) == nil {
		return 0, ErrUnauthorized
	}
	var proposal *Proposal
	for i := range group.Proposals {
		if group.Proposals[i].ID == proposalID {
			proposal = &group.Proposals[i]
			break
		}
	}
	if proposal == nil || proposal.Executed {
		return 0, ErrNoProposal
	}
	if proposal.Approved(caller) {
		return len(proposal.Approvals), nil
	}
	proposal.Approvals = append(proposal.Approvals, caller)
	if err := e.state.GroupPut(group); err != nil {
		return 0, err
	}
	e.emit(NewProposalApprovedEvent(group, proposal, caller))
	return len(proposal.Approvals), nil
}

// ExecuteWithdrawal distributes the pooled balance pro rata by contribution
// once the pending proposal has reached quorum. Normal withdrawals require
// the lock window to have elapsed; emergency withdrawals bypass the lock at
// the cost of a 10% penalty swept to the treasury. Integer division
// truncates per participant; the residual dust joins the treasury sweep so
// the account always drains to zero.
func (e *Engine) ExecuteWithdrawal(addr, caller [20]byte) error {
	group, err := e.loadGroup(addr)
	if err != nil {
		return err
	}
	if group.participant(caller) == nil {
		return ErrUnauthorized
	}
	proposal := group.pending()
	if proposal == nil {
		return ErrNoProposal
	}
	if len(proposal.Approvals) < int(group.RequiredApprovals) {
		return ErrInsufficientApprovals
	}
	if !proposal.Emergency && !group.Unlocked(e.now()) {
		return ErrStillLocked
	}
	if err := e.ensureTreasuryConfigured(); err != nil {
		return err
	}
	total := cloneBigInt(group.Balance)
	if total.Sign() <= 0 {
		return ErrInsufficientBalance
	}
	distributable := new(big.Int).Set(total)
	if proposal.Emergency {
		distributable.Mul(distributable, big.NewInt(10_000-penaltyBps))
		distributable.Div(distributable, big.NewInt(10_000))
	}
	type payout struct {
		to     [20]byte
		amount *big.Int
	}
	payouts := make([]payout, 0, len(group.Participants))
	distributed := big.NewInt(0)
	for i := range group.Participants {
		member := &group.Participants[i]
		if member.Contribution == nil || member.Contribution.Sign() == 0 {
			continue
		}
		share := new(big.Int).Mul(distributable, member.Contribution)
		share.Div(share, total)
		if share.Sign() > 0 {
			payouts = append(payouts, payout{to: member.Address, amount: share})
			distributed.Add(distributed, share)
		}
	}
	residue := new(big.Int).Sub(total, distributed)

	// Effects before interactions: contributions and the balance are
	// zeroed and persisted before any value leaves the account.
	for i := range group.Participants {
		group.Participants[i].Contribution = big.NewInt(0)
	}
	group.Balance = big.NewInt(0)
	proposal.Executed = true
	if err := e.state.GroupPut(group); err != nil {
		return err
	}
	for _, p := range payouts {
		if err := e.state.Transfer(group.Address, p.to, group.Asset, p.amount); err != nil {
			return err
		}
	}
	if residue.Sign() > 0 {
		if err := e.state.Transfer(group.Address, e.treasury, group.Asset, residue); err != nil {
			return err
		}
	}
	e.emit(NewProposalExecutedEvent(group, proposal, distributed, residue))
	return nil
}

// Participants returns a copy of the participant set.
func (e *Engine) Participants(addr [20]byte) ([]Participant, error) {
	group, err := e.loadGroup(addr)
	if err != nil {
		return nil, err
	}
	out := make([]Participant, len(group.Participants))
	for i, p := range group.Participants {
		out[i] = Participant{Address: p.Address, Contribution: cloneBigInt(p.Contribution)}
	}
	return out, nil
}

// GroupProgress returns the pooled balance and the informational target.
func (e *Engine) GroupProgress(addr [20]byte) (*big.Int, *big.Int, error) {
	group, err := e.loadGroup(addr)
	if err != nil {
		return nil, nil, err
	}
	return cloneBigInt(group.Balance), cloneBigInt(group.Target), nil
}

// Proposal returns a copy of the identified proposal.
func (e *Engine) Proposal(addr [20]byte, proposalID uint64) (*Proposal, error) {
	group, err := e.loadGroup(addr)
	if err != nil {
		return nil, err
	}
	for i := range group.Proposals {
		if group.Proposals[i].ID == proposalID {
			return group.Proposals[i].Clone(), nil
		}
	}
	return nil, ErrNoProposal
}

// GetGroup returns a copy of the group account record.
func (e *Engine) GetGroup(addr [20]byte) (*GroupAccount, error) {
	group, err := e.loadGroup(addr)
	if err != nil {
		return nil, err
	}
	return group.Clone(), nil
}
