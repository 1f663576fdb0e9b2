package state

import (
	"fmt"

	"piggyvault/core/types"
	"piggyvault/native/piggy"
)

type storedPiggyAccount struct {
	Address   [20]byte
	Owner     [20]byte
	Asset     [20]byte
	Target    string
	LockEnd   uint64
	Cap       string
	Balance   string
	CreatedAt uint64
}

type storedParticipant struct {
	Address      [20]byte
	Contribution string
}

type storedProposal struct {
	ID        uint64
	Requester [20]byte
	Emergency bool
	Approvals [][20]byte
	Executed  bool
	CreatedAt uint64
}

type storedGroupAccount struct {
	Address           [20]byte
	Creator           [20]byte
	Name              string
	Asset             [20]byte
	Target            string
	LockEnd           uint64
	Cap               string
	RequiredApprovals uint32
	Participants      []storedParticipant
	Balance           string
	NextProposalID    uint64
	Proposals         []storedProposal
	CreatedAt         uint64
}

// PiggyPut persists an individual escrow account.
func (m *Manager) PiggyPut(acct *piggy.Account) error {
	if acct == nil {
		return fmt.Errorf("state: nil piggy account")
	}
	stored := storedPiggyAccount{
		Address:   acct.Address,
		Owner:     acct.Owner,
		Asset:     acct.Asset,
		Target:    amountString(acct.Target),
		LockEnd:   toUint64(acct.LockEnd),
		Balance:   amountString(acct.Balance),
		CreatedAt: toUint64(acct.CreatedAt),
	}
	if acct.Cap != nil {
		stored.Cap = acct.Cap.String()
	}
	return m.kvPut(key(piggyPrefix, acct.Address[:]), stored)
}

// PiggyGet loads an individual escrow account.
func (m *Manager) PiggyGet(addr [20]byte) (*piggy.Account, bool, error) {
	var stored storedPiggyAccount
	ok, err := m.kvGet(key(piggyPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	target, err := parseAmount(stored.Target)
	if err != nil {
		return nil, false, err
	}
	balance, err := parseAmount(stored.Balance)
	if err != nil {
		return nil, false, err
	}
	acct := &piggy.Account{
		Address:   stored.Address,
		Owner:     stored.Owner,
		Asset:     types.Asset(stored.Asset),
		Target:    target,
		LockEnd:   int64(stored.LockEnd),
		Balance:   balance,
		CreatedAt: int64(stored.CreatedAt),
	}
	if stored.Cap != "" {
		cap, err := parseAmount(stored.Cap)
		if err != nil {
			return nil, false, err
		}
		acct.Cap = cap
	}
	return acct, true, nil
}

// GroupPut persists a group escrow account including its proposal sequence.
func (m *Manager) GroupPut(group *piggy.GroupAccount) error {
	if group == nil {
		return fmt.Errorf("state: nil group account")
	}
	stored := storedGroupAccount{
		Address:           group.Address,
		Creator:           group.Creator,
		Name:              group.Name,
		Asset:             group.Asset,
		Target:            amountString(group.Target),
		LockEnd:           toUint64(group.LockEnd),
		RequiredApprovals: group.RequiredApprovals,
		Balance:           amountString(group.Balance),
		NextProposalID:    group.NextProposalID,
		CreatedAt:         toUint64(group.CreatedAt),
	}
	if group.Cap != nil {
		stored.Cap = group.Cap.String()
	}
	stored.Participants = make([]storedParticipant, len(group.Participants))
	for i, p := range group.Participants {
		stored.Participants[i] = storedParticipant{
			Address:      p.Address,
			Contribution: amountString(p.Contribution),
		}
	}
	stored.Proposals = make([]storedProposal, len(group.Proposals))
	for i, p := range group.Proposals {
		stored.Proposals[i] = storedProposal{
			ID:        p.ID,
			Requester: p.Requester,
			Emergency: p.Emergency,
			Approvals: p.Approvals,
			Executed:  p.Executed,
			CreatedAt: toUint64(p.CreatedAt),
		}
	}
	return m.kvPut(key(groupPrefix, group.Address[:]), stored)
}

// GroupGet loads a group escrow account.
func (m *Manager) GroupGet(addr [20]byte) (*piggy.GroupAccount, bool, error) {
	var stored storedGroupAccount
	ok, err := m.kvGet(key(groupPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	target, err := parseAmount(stored.Target)
	if err != nil {
		return nil, false, err
	}
	balance, err := parseAmount(stored.Balance)
	if err != nil {
		return nil, false, err
	}
	group := &piggy.GroupAccount{
		Address:           stored.Address,
		Creator:           stored.Creator,
		Name:              stored.Name,
		Asset:             types.Asset(stored.Asset),
		Target:            target,
		LockEnd:           int64(stored.LockEnd),
		RequiredApprovals: stored.RequiredApprovals,
		Balance:           balance,
		NextProposalID:    stored.NextProposalID,
		CreatedAt:         int64(stored.CreatedAt),
	}
	if stored.Cap != "" {
		cap, err := parseAmount(stored.Cap)
		if err != nil {
			return nil, false, err
		}
		group.Cap = cap
	}
	group.Participants = make([]piggy.Participant, len(stored.Participants))
	for i, p := range stored.Participants {
		contribution, err := parseAmount(p.Contribution)
		if err != nil {
			return nil, false, err
		}
		group.Participants[i] = piggy.Participant{Address: p.Address, Contribution: contribution}
	}
	group.Proposals = make([]piggy.Proposal, len(stored.Proposals))
	for i, p := range stored.Proposals {
		group.Proposals[i] = piggy.Proposal{
			ID:        p.ID,
			Requester: p.Requester,
			Emergency: p.Emergency,
			Approvals: p.Approvals,
			Executed:  p.Executed,
			CreatedAt: int64(p.CreatedAt),
		}
	}
	return group, true, nil
}
