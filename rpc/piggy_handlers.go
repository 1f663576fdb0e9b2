package rpc

import (
	"net/http"
)

type piggyAmountParams struct {
	Account string `json:"account"`
	Caller  string `json:"caller"`
	Amount  string `json:"amount"`
}

type piggyCallerParams struct {
	Account string `json:"account"`
	Caller  string `json:"caller"`
}

type piggyAccountParams struct {
	Account string `json:"account"`
}

type progressResult struct {
	Balance string `json:"balance"`
	Target  string `json:"target"`
}

type emergencyWithdrawResult struct {
	Payout string `json:"payout"`
}

func (s *Server) handlePiggyDeposit(w http.ResponseWriter, req *RPCRequest) {
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
	if err := s.piggy.Deposit(account, caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePiggyWithdraw(w http.ResponseWriter, req *RPCRequest) {
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
	if err := s.piggy.Withdraw(account, caller, amount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handlePiggyEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
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
	payout, err := s.piggy.EmergencyWithdraw(account, caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, emergencyWithdrawResult{Payout: payout.String()})
}

func (s *Server) handlePiggyGetProgress(w http.ResponseWriter, req *RPCRequest) {
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
	balance, target, err := s.piggy.Progress(account)
	if err == nil {
		writeResult(w, req.ID, progressResult{Balance: balance.String(), Target: target.String()})
		return
	}
	// Fall back to the group ledger so one method serves both kinds.
	balance, target, gerr := s.piggy.GroupProgress(account)
	if gerr != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, progressResult{Balance: balance.String(), Target: target.String()})
}
