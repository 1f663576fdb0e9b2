package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"piggyvault/core/events"
	"piggyvault/native/common"
	"piggyvault/native/dex"
	"piggyvault/native/piggy"
	"piggyvault/native/registry"
	"piggyvault/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeNotFound       = -32010
	codeForbidden      = -32011
	codeConflict       = -32012
	codeLocked         = -32013
	codePaused         = -32014
)

// Server exposes the native engines over JSON-RPC 2.0. Admin-gated methods
// additionally require the bearer token from PIGGY_RPC_TOKEN when one is
// configured.
type Server struct {
	registry  *registry.Engine
	piggy     *piggy.Engine
	dex       *dex.Engine
	manager   *state.Manager
	bus       *events.Bus
	authToken string
}

// NewServer wires the engines and event bus into an RPC server.
func NewServer(reg *registry.Engine, pg *piggy.Engine, dx *dex.Engine, manager *state.Manager, bus *events.Bus) *Server {
	return &Server{
		registry:  reg,
		piggy:     pg,
		dex:       dx,
		manager:   manager,
		bus:       bus,
		authToken: strings.TrimSpace(os.Getenv("PIGGY_RPC_TOKEN")),
	}
}

// Start serves the RPC endpoint on addr, blocking until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return mux
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.authToken)) == 1
}

// adminMethods require the bearer token on top of the admin caller check the
// engines perform themselves.
var adminMethods = map[string]bool{
	"registry_whitelistAsset": true,
	"registry_blacklistAsset": true,
	"dex_addSupportedAsset":   true,
	"dex_setSwapFee":          true,
	"dex_pause":               true,
	"dex_unpause":             true,
	"dex_emergencyWithdraw":   true,
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "failed to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version")
		return
	}
	if adminMethods[req.Method] && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "unauthorized")
		return
	}
	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
		return
	}
	// net/http serves requests concurrently, but engine calls are multi-step
	// read-modify-write sequences. The server is the sequencer: it holds the
	// state call lock so one call fully completes before the next begins.
	if s.manager != nil {
		s.manager.Begin()
		defer s.manager.End()
	}
	handler(w, &req)
}

type methodHandler func(http.ResponseWriter, *RPCRequest)

func (s *Server) methods() map[string]methodHandler {
	return map[string]methodHandler{
		"registry_whitelistAsset":   s.handleRegistryWhitelistAsset,
		"registry_blacklistAsset":   s.handleRegistryBlacklistAsset,
		"registry_createIndividual": s.handleRegistryCreateIndividual,
		"registry_createGroup":      s.handleRegistryCreateGroup,
		"registry_isAccount":        s.handleRegistryIsAccount,
		"registry_accountsOf":       s.handleRegistryAccountsOf,
		"registry_lastCreated":      s.handleRegistryLastCreated,
		"piggy_deposit":             s.handlePiggyDeposit,
		"piggy_withdraw":            s.handlePiggyWithdraw,
		"piggy_emergencyWithdraw":   s.handlePiggyEmergencyWithdraw,
		"piggy_getProgress":         s.handlePiggyGetProgress,
		"piggy_addParticipant":      s.handleGroupAddParticipant,
		"piggy_removeParticipant":   s.handleGroupRemoveParticipant,
		"piggy_updateQuorum":        s.handleGroupUpdateQuorum,
		"piggy_groupDeposit":        s.handleGroupDeposit,
		"piggy_proposeWithdrawal":   s.handleGroupPropose,
		"piggy_approveWithdrawal":   s.handleGroupApprove,
		"piggy_executeWithdrawal":   s.handleGroupExecute,
		"piggy_getParticipants":     s.handleGroupParticipants,
		"dex_addSupportedAsset":     s.handleDexAddSupportedAsset,
		"dex_addLiquidity":          s.handleDexAddLiquidity,
		"dex_removeLiquidity":       s.handleDexRemoveLiquidity,
		"dex_swapBaseForToken":      s.handleDexSwapBaseForToken,
		"dex_swapTokenForBase":      s.handleDexSwapTokenForBase,
		"dex_swapTokenForToken":     s.handleDexSwapTokenForToken,
		"dex_calculateSwapOutput":   s.handleDexCalculateSwapOutput,
		"dex_setSwapFee":            s.handleDexSetSwapFee,
		"dex_getPool":               s.handleDexGetPool,
		"dex_pause":                 s.handleDexPause,
		"dex_unpause":               s.handleDexUnpause,
		"dex_emergencyWithdraw":     s.handleDexEmergencyWithdraw,
		"bank_getBalance":           s.handleBankGetBalance,
		"events_poll":               s.handleEventsPoll,
	}
}

// errorCode maps engine sentinel errors to JSON-RPC error codes so callers
// can branch without parsing messages.
func errorCode(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnauthorized),
		errors.Is(err, piggy.ErrUnauthorized),
		errors.Is(err, dex.ErrUnauthorized):
		return codeForbidden
	case errors.Is(err, piggy.ErrStillLocked):
		return codeLocked
	case errors.Is(err, dex.ErrPaused), errors.Is(err, common.ErrModulePaused):
		return codePaused
	case errors.Is(err, piggy.ErrAccountNotFound),
		errors.Is(err, registry.ErrUnknownAsset),
		errors.Is(err, dex.ErrUnsupportedAsset),
		errors.Is(err, dex.ErrUnknownAsset),
		errors.Is(err, piggy.ErrNoProposal):
		return codeNotFound
	case errors.Is(err, piggy.ErrInsufficientBalance),
		errors.Is(err, piggy.ErrInsufficientApprovals),
		errors.Is(err, piggy.ErrCapExceeded),
		errors.Is(err, piggy.ErrProposalPending),
		errors.Is(err, dex.ErrInsufficientShares),
		errors.Is(err, dex.ErrInsufficientFunds),
		errors.Is(err, dex.ErrSlippage),
		errors.Is(err, state.ErrInsufficientFunds):
		return codeConflict
	case errors.Is(err, registry.ErrInvalidQuorum),
		errors.Is(err, piggy.ErrInvalidQuorum),
		errors.Is(err, dex.ErrFeeTooHigh),
		errors.Is(err, dex.ErrInvalidInput),
		errors.Is(err, dex.ErrInvalidReserves):
		return codeInvalidParams
	default:
		return codeServerError
	}
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	writeError(w, http.StatusOK, id, errorCode(err), err.Error())
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}
