package rpc

import (
	"net/http"
)

type groupParticipantParams struct {
	Account     string `json:"account"`
	Caller      string `json:"caller"`
	Participant string `json:"participant"`
}

type groupQuorumParams struct {
	Account           string `json:"account"`
	Caller            string `json:"caller"`
	RequiredApprovals uint32 `json:"requiredApprovals"`
}

type groupProposeParams struct {
	Account   string `json:"account"`
	Caller    string `json:"caller"`
	Emergency bool   `json:"emergency"`
}

type groupApproveParams struct {
	Account    string `json:"account"`
	Caller     string `json:"caller"`
	ProposalID uint64 `json:"proposalId"`
}

type proposalCreatedResult struct {
	ProposalID uint64 `json:"proposalId"`
}

type approvalResult struct {
	Approvals int `json:"approvals"`
}

type participantView struct {
	Address      string `json:"address"`
	Contribution string `json:"contribution"`
}

func (s *Server) handleGroupAddParticipant(w http.ResponseWriter, req *RPCRequest) {
	var params groupParticipantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	participant, err := parseAddress(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.piggy.AddParticipant(account, caller, participant); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGroupRemoveParticipant(w http.ResponseWriter, req *RPCRequest) {
	var params groupParticipantParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	participant, err := parseAddress(params.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.piggy.RemoveParticipant(account, caller, participant); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGroupUpdateQuorum(w http.ResponseWriter, req *RPCRequest) {
	var params groupQuorumParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.piggy.UpdateRequiredApprovals(account, caller, params.RequiredApprovals); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGroupDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params piggyAmountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amount, err := parseAmountParam(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.piggy.GroupDeposit(account, caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGroupPropose(w http.ResponseWriter, req *RPCRequest) {
	var params groupProposeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	id, err := s.piggy.ProposeWithdrawal(account, caller, params.Emergency)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, proposalCreatedResult{ProposalID: id})
}

func (s *Server) handleGroupApprove(w http.ResponseWriter, req *RPCRequest) {
	var params groupApproveParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	approvals, err := s.piggy.ApproveWithdrawal(account, caller, params.ProposalID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, approvalResult{Approvals: approvals})
}

func (s *Server) handleGroupExecute(w http.ResponseWriter, req *RPCRequest) {
	var params piggyCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.piggy.ExecuteWithdrawal(account, caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGroupParticipants(w http.ResponseWriter, req *RPCRequest) {
	var params piggyAccountParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	participants, err := s.piggy.Participants(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]participantView, len(participants))
	for i, p := range participants {
		out[i] = participantView{Address: addressHex(p.Address), Contribution: p.Contribution.String()}
	}
	writeResult(w, req.ID, out)
}
