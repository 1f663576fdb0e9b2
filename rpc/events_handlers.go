package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"piggyvault/core/events"
)

type bigIntPair struct {
	in     *big.Int
	minOut *big.Int
}

func parseSwapAmounts(amountIn, minOut string) (*bigIntPair, error) {
	in, err := parseAmountParam(amountIn)
	if err != nil {
		return nil, err
	}
	out := big.NewInt(0)
	if strings.TrimSpace(minOut) != "" {
		out, err = parseAmountParam(minOut)
		if err != nil {
			return nil, err
		}
	}
	return &bigIntPair{in: in, minOut: out}, nil
}

type eventsPollParams struct {
	Cursor uint64 `json:"cursor"`
	Limit  int    `json:"limit,omitempty"`
}

type eventsPollResult struct {
	Entries []events.BusEntry `json:"entries"`
	Latest  uint64            `json:"latest"`
}

const maxEventPollLimit = 256

func (s *Server) handleEventsPoll(w http.ResponseWriter, req *RPCRequest) {
	var params eventsPollParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	limit := params.Limit
	if limit <= 0 || limit > maxEventPollLimit {
		limit = maxEventPollLimit
	}
	if s.bus == nil {
		writeError(w, http.StatusOK, req.ID, codeServerError, "event bus unavailable")
		return
	}
	entries := s.bus.After(params.Cursor, limit)
	if entries == nil {
		entries = []events.BusEntry{}
	}
	writeResult(w, req.ID, eventsPollResult{Entries: entries, Latest: s.bus.Latest()})
}
