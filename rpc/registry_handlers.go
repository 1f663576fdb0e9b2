package rpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"piggyvault/core/types"
)

func parseAddress(raw string) ([20]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", raw)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

func parseAmountParam(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func addressHex(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

type whitelistAssetParams struct {
	Caller    string `json:"caller"`
	Asset     string `json:"asset"`
	MaxAmount string `json:"maxAmount,omitempty"`
}

type blacklistAssetParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
}

type createIndividualParams struct {
	Caller       string `json:"caller"`
	Asset        string `json:"asset"`
	Target       string `json:"target"`
	LockDuration int64  `json:"lockDuration"`
}

type createGroupParams struct {
	Caller            string   `json:"caller"`
	Name              string   `json:"name"`
	Participants      []string `json:"participants"`
	RequiredApprovals uint32   `json:"requiredApprovals"`
	Asset             string   `json:"asset"`
	Target            string   `json:"target"`
	LockDuration      int64    `json:"lockDuration"`
}

type accountAddressParams struct {
	Address string `json:"address"`
}

type createAccountResult struct {
	Account string `json:"account"`
}

func (s *Server) handleRegistryWhitelistAsset(w http.ResponseWriter, req *RPCRequest) {
	var params whitelistAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var maxAmount *big.Int
	if strings.TrimSpace(params.MaxAmount) != "" {
		maxAmount, err = parseAmountParam(params.MaxAmount)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
	}
	if err := s.registry.WhitelistAsset(caller, asset, maxAmount); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistryBlacklistAsset(w http.ResponseWriter, req *RPCRequest) {
	var params blacklistAssetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.registry.BlacklistAsset(caller, asset); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistryCreateIndividual(w http.ResponseWriter, req *RPCRequest) {
	var params createIndividualParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	target, err := parseAmountParam(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := s.registry.CreateIndividual(caller, asset, target, params.LockDuration)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, createAccountResult{Account: addressHex(addr)})
}

func (s *Server) handleRegistryCreateGroup(w http.ResponseWriter, req *RPCRequest) {
	var params createGroupParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	participants := make([][20]byte, 0, len(params.Participants))
	for _, raw := range params.Participants {
		p, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
		participants = append(participants, p)
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	target, err := parseAmountParam(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := s.registry.CreateGroup(caller, params.Name, participants, params.RequiredApprovals, asset, target, params.LockDuration)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, createAccountResult{Account: addressHex(addr)})
}

func (s *Server) handleRegistryIsAccount(w http.ResponseWriter, req *RPCRequest) {
	var params accountAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	ok, err := s.registry.IsAccount(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ok)
}

func (s *Server) handleRegistryAccountsOf(w http.ResponseWriter, req *RPCRequest) {
	var params accountAddressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	accounts, err := s.registry.AccountsOf(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]string, len(accounts))
	for i, a := range accounts {
		out[i] = addressHex(a)
	}
	writeResult(w, req.ID, out)
}

type lastCreatedResult struct {
	Account string `json:"account,omitempty"`
	Exists  bool   `json:"exists"`
}

func (s *Server) handleRegistryLastCreated(w http.ResponseWriter, req *RPCRequest) {
	// Takes no arguments; an optional empty params object is tolerated.
	if len(req.Params) > 0 {
		var params struct{}
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
	}
	addr, ok, err := s.registry.LastCreated()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		writeResult(w, req.ID, lastCreatedResult{})
		return
	}
	writeResult(w, req.ID, lastCreatedResult{Account: addressHex(addr), Exists: true})
}
