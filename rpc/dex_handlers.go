package rpc

import (
	"net/http"

	"piggyvault/core/types"
	"piggyvault/native/dex"
)

type dexAssetParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
}

type dexLiquidityParams struct {
	Caller      string `json:"caller"`
	Asset       string `json:"asset"`
	BaseAmount  string `json:"baseAmount"`
	TokenAmount string `json:"tokenAmount"`
}

type dexRemoveLiquidityParams struct {
	Caller string `json:"caller"`
	Asset  string `json:"asset"`
	Shares string `json:"shares"`
}

type dexSwapParams struct {
	Caller   string `json:"caller"`
	Asset    string `json:"asset"`
	AmountIn string `json:"amountIn"`
	MinOut   string `json:"minOut,omitempty"`
}

type dexCrossSwapParams struct {
	Caller   string `json:"caller"`
	AssetIn  string `json:"assetIn"`
	AssetOut string `json:"assetOut"`
	AmountIn string `json:"amountIn"`
	MinOut   string `json:"minOut,omitempty"`
}

type dexQuoteParams struct {
	AmountIn   string  `json:"amountIn"`
	ReserveIn  string  `json:"reserveIn"`
	ReserveOut string  `json:"reserveOut"`
	FeeBps     *uint64 `json:"feeBps,omitempty"`
}

type dexFeeParams struct {
	Caller  string `json:"caller"`
	RateBps uint64 `json:"rateBps"`
}

type dexPoolParams struct {
	Asset string `json:"asset"`
}

type dexCallerParams struct {
	Caller string `json:"caller"`
}

type liquidityResult struct {
	Shares string `json:"shares"`
}

type removeLiquidityResult struct {
	BaseAmount  string `json:"baseAmount"`
	TokenAmount string `json:"tokenAmount"`
}

type swapResult struct {
	AmountOut string `json:"amountOut"`
}

type poolView struct {
	Asset        string              `json:"asset"`
	ReserveBase  string              `json:"reserveBase"`
	ReserveToken string              `json:"reserveToken"`
	TotalShares  string              `json:"totalShares"`
	Providers    []providerShareView `json:"providers"`
	FeeBps       uint64              `json:"feeBps"`
	Paused       bool                `json:"paused"`
}

type providerShareView struct {
	Provider string `json:"provider"`
	Shares   string `json:"shares"`
}

type sweepResult struct {
	BaseAmount  string `json:"baseAmount"`
	TokenAmount string `json:"tokenAmount"`
}

func (s *Server) handleDexAddSupportedAsset(w http.ResponseWriter, req *RPCRequest) {
	var params dexAssetParams
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
	if err := s.dex.AddSupportedAsset(caller, asset); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDexAddLiquidity(w http.ResponseWriter, req *RPCRequest) {
	var params dexLiquidityParams
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
	baseAmount, err := parseAmountParam(params.BaseAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	tokenAmount, err := parseAmountParam(params.TokenAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	shares, err := s.dex.AddLiquidity(caller, asset, baseAmount, tokenAmount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, liquidityResult{Shares: shares.String()})
}

func (s *Server) handleDexRemoveLiquidity(w http.ResponseWriter, req *RPCRequest) {
	var params dexRemoveLiquidityParams
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
	shares, err := parseAmountParam(params.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	baseOut, tokenOut, err := s.dex.RemoveLiquidity(caller, asset, shares)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, removeLiquidityResult{BaseAmount: baseOut.String(), TokenAmount: tokenOut.String()})
}

func (s *Server) decodeSwapParams(w http.ResponseWriter, req *RPCRequest) ([20]byte, types.Asset, *bigIntPair, bool) {
	var params dexSwapParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return [20]byte{}, types.Asset{}, nil, false
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return [20]byte{}, types.Asset{}, nil, false
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return [20]byte{}, types.Asset{}, nil, false
	}
	amounts, err := parseSwapAmounts(params.AmountIn, params.MinOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return [20]byte{}, types.Asset{}, nil, false
	}
	return caller, asset, amounts, true
}

func (s *Server) handleDexSwapBaseForToken(w http.ResponseWriter, req *RPCRequest) {
	caller, asset, amounts, ok := s.decodeSwapParams(w, req)
	if !ok {
		return
	}
	out, err := s.dex.SwapBaseForToken(caller, asset, amounts.in, amounts.minOut)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, swapResult{AmountOut: out.String()})
}

func (s *Server) handleDexSwapTokenForBase(w http.ResponseWriter, req *RPCRequest) {
	caller, asset, amounts, ok := s.decodeSwapParams(w, req)
	if !ok {
		return
	}
	out, err := s.dex.SwapTokenForBase(caller, asset, amounts.in, amounts.minOut)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, swapResult{AmountOut: out.String()})
}

func (s *Server) handleDexSwapTokenForToken(w http.ResponseWriter, req *RPCRequest) {
	var params dexCrossSwapParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	assetIn, err := types.ParseAsset(params.AssetIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	assetOut, err := types.ParseAsset(params.AssetOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amounts, err := parseSwapAmounts(params.AmountIn, params.MinOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	out, err := s.dex.SwapTokenForToken(caller, assetIn, assetOut, amounts.in, amounts.minOut)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, swapResult{AmountOut: out.String()})
}

func (s *Server) handleDexCalculateSwapOutput(w http.ResponseWriter, req *RPCRequest) {
	var params dexQuoteParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	amountIn, err := parseAmountParam(params.AmountIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	reserveIn, err := parseAmountParam(params.ReserveIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	reserveOut, err := parseAmountParam(params.ReserveOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	// An omitted fee quotes at the configured swap fee, so the quote matches
	// what the engine will realize.
	feeBps := uint64(0)
	if params.FeeBps != nil {
		feeBps = *params.FeeBps
	} else {
		fee, err := s.dex.SwapFee()
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		feeBps = fee
	}
	out, err := dex.CalculateSwapOutput(amountIn, reserveIn, reserveOut, feeBps)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, swapResult{AmountOut: out.String()})
}

func (s *Server) handleDexSetSwapFee(w http.ResponseWriter, req *RPCRequest) {
	var params dexFeeParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.dex.SetSwapFee(caller, params.RateBps); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDexGetPool(w http.ResponseWriter, req *RPCRequest) {
	var params dexPoolParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	asset, err := types.ParseAsset(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	pool, err := s.dex.Pool(asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	feeBps, err := s.dex.SwapFee()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	providers := make([]providerShareView, len(pool.Providers))
	for i, p := range pool.Providers {
		providers[i] = providerShareView{Provider: addressHex(p.Provider), Shares: p.Shares.String()}
	}
	writeResult(w, req.ID, poolView{
		Asset:        pool.Asset.String(),
		ReserveBase:  pool.ReserveBase.String(),
		ReserveToken: pool.ReserveToken.String(),
		TotalShares:  pool.TotalShares.String(),
		Providers:    providers,
		FeeBps:       feeBps,
		Paused:       s.dex.Paused(),
	})
}

func (s *Server) handleDexPause(w http.ResponseWriter, req *RPCRequest) {
	var params dexCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.dex.Pause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDexUnpause(w http.ResponseWriter, req *RPCRequest) {
	var params dexCallerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	if err := s.dex.Unpause(caller); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDexEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params dexAssetParams
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
	baseOut, tokenOut, err := s.dex.EmergencyWithdraw(caller, asset)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, sweepResult{BaseAmount: baseOut.String(), TokenAmount: tokenOut.String()})
}
