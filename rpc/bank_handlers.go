package rpc

import (
	"net/http"

	"piggyvault/core/types"
)

type bankBalanceParams struct {
	Address string `json:"address"`
	Asset   string `json:"asset"`
}

type bankBalanceResult struct {
	Balance string `json:"balance"`
}

func (s *Server) handleBankGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params bankBalanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	balance, err := s.manager.Balance(addr, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, bankBalanceResult{Balance: balance.String()})
}
