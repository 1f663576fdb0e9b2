package piggy

import (
	"math/big"

	"piggyvault/core/types"
)

// Account is a single-owner escrow account. Funds deposited before LockEnd
// can only leave through the penalised emergency path; the target amount is
// informational and never enforced.
type Account struct {
	Address   [20]byte
	Owner     [20]byte
	Asset     types.Asset
	Target    *big.Int
	LockEnd   int64
	Cap       *big.Int
	Balance   *big.Int
	CreatedAt int64
}

// Clone returns a deep copy of the account so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Target = cloneBigInt(a.Target)
	clone.Balance = cloneBigInt(a.Balance)
	if a.Cap != nil {
		clone.Cap = new(big.Int).Set(a.Cap)
	}
	return &clone
}

// Unlocked reports whether the lock window has elapsed at the supplied time.
func (a *Account) Unlocked(now int64) bool {
	if a == nil {
		return false
	}
	return now >= a.LockEnd
}

// Participant tracks one member of a group account together with the amount
// they have deposited since the last distribution.
type Participant struct {
	Address      [20]byte
	Contribution *big.Int
}

// Proposal is a single withdrawal proposal raised on a group account.
// Approvals are a set keyed by participant address; the executed flag is
// terminal.
type Proposal struct {
	ID        uint64
	Requester [20]byte
	Emergency bool
	Approvals [][20]byte
	Executed  bool
	CreatedAt int64
}

// Approved reports whether the address already voted on the proposal.
func (p *Proposal) Approved(addr [20]byte) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Approvals {
		if a == addr {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Approvals = make([][20]byte, len(p.Approvals))
	copy(clone.Approvals, p.Approvals)
	return &clone
}

// GroupAccount is a multi-party escrow account. The balance always equals the
// sum of participant contributions outside of an in-flight distribution.
type GroupAccount struct {
	Address           [20]byte
	Creator           [20]byte
	Name              string
	Asset             types.Asset
	Target            *big.Int
	LockEnd           int64
	Cap               *big.Int
	RequiredApprovals uint32
	Participants      []Participant
	Balance           *big.Int
	NextProposalID    uint64
	Proposals         []Proposal
	CreatedAt         int64
}

// Clone returns a deep copy of the group account.
func (g *GroupAccount) Clone() *GroupAccount {
	if g == nil {
		return nil
	}
	clone := *g
	clone.Target = cloneBigInt(g.Target)
	clone.Balance = cloneBigInt(g.Balance)
	if g.Cap != nil {
		clone.Cap = new(big.Int).Set(g.Cap)
	}
	clone.Participants = make([]Participant, len(g.Participants))
	for i, p := range g.Participants {
		clone.Participants[i] = Participant{Address: p.Address, Contribution: cloneBigInt(p.Contribution)}
	}
	clone.Proposals = make([]Proposal, len(g.Proposals))
	for i := range g.Proposals {
		clone.Proposals[i] = *g.Proposals[i].Clone()
	}
	return &clone
}

func (g *GroupAccount) participant(addr [20]byte) *Participant {
	if g == nil {
		return nil
	}
	for i := range g.Participants {
		if g.Participants[i].Address == addr {
			return &g.Participants[i]
		}
	}
	return nil
}

// Unlocked reports whether the lock window has elapsed at the supplied time.
func (g *GroupAccount) Unlocked(now int64) bool {
	if g == nil {
		return false
	}
	return now >= g.LockEnd
}

// pending returns the newest unexecuted proposal, if any.
func (g *GroupAccount) pending() *Proposal {
	if g == nil {
		return nil
	}
	for i := len(g.Proposals) - 1; i >= 0; i-- {
		if !g.Proposals[i].Executed {
			return &g.Proposals[i]
		}
	}
	return nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
