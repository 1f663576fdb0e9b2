package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"piggyvault/core/events"
	"piggyvault/core/types"
	"piggyvault/native/dex"
	"piggyvault/native/piggy"
	"piggyvault/native/registry"
	"piggyvault/state"
	"piggyvault/storage"
)

type testServer struct {
	server  *Server
	handler http.Handler
	manager *state.Manager
	admin   [20]byte
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func addrParam(addr [20]byte) string {
	return fmt.Sprintf("0x%x", addr[:])
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	bus := events.NewBus(0)
	admin := newTestAddress(0xAD)

	piggyEngine := piggy.NewEngine()
	piggyEngine.SetState(manager)
	piggyEngine.SetTreasury(admin)
	piggyEngine.SetEmitter(bus)

	registryEngine := registry.NewEngine()
	registryEngine.SetState(manager)
	registryEngine.SetFactory(piggyEngine)
	registryEngine.SetAdmin(admin)
	registryEngine.SetEmitter(bus)

	dexEngine := dex.NewEngine()
	dexEngine.SetState(manager)
	dexEngine.SetAdmin(admin)
	dexEngine.SetEmitter(bus)

	require.NoError(t, registryEngine.Bootstrap())

	server := NewServer(registryEngine, piggyEngine, dexEngine, manager, bus)
	return &testServer{
		server:  server,
		handler: server.Handler(),
		manager: manager,
		admin:   admin,
	}
}

func (ts *testServer) call(t *testing.T, method string, params interface{}, token string) *RPCResponse {
	t.Helper()
	rawParams, err := json.Marshal(params)
	require.NoError(t, err)
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  []json.RawMessage{rawParams},
		ID:      1,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func (ts *testServer) mustResult(t *testing.T, method string, params interface{}, out interface{}) {
	t.Helper()
	resp := ts.call(t, method, params, "")
	require.Nil(t, resp.Error, "method %s: %+v", method, resp.Error)
	if out != nil {
		raw, err := json.Marshal(resp.Result)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, out))
	}
}

func TestIndividualAccountFlow(t *testing.T) {
	ts := newTestServer(t)
	owner := newTestAddress(0x11)
	require.NoError(t, ts.manager.Mint(owner, types.NativeAsset, big.NewInt(1_000)))

	var created createAccountResult
	ts.mustResult(t, "registry_createIndividual", createIndividualParams{
		Caller:       addrParam(owner),
		Asset:        "native",
		Target:       "500",
		LockDuration: 0,
	}, &created)
	require.NotEmpty(t, created.Account)

	ts.mustResult(t, "piggy_deposit", piggyAmountParams{
		Account: created.Account,
		Caller:  addrParam(owner),
		Amount:  "300",
	}, nil)

	var progress progressResult
	ts.mustResult(t, "piggy_getProgress", piggyAccountParams{Account: created.Account}, &progress)
	require.Equal(t, "300", progress.Balance)
	require.Equal(t, "500", progress.Target)

	var balance bankBalanceResult
	ts.mustResult(t, "bank_getBalance", bankBalanceParams{Address: addrParam(owner), Asset: "native"}, &balance)
	require.Equal(t, "700", balance.Balance)

	var isAccount bool
	ts.mustResult(t, "registry_isAccount", accountAddressParams{Address: created.Account}, &isAccount)
	require.True(t, isAccount)

	var accounts []string
	ts.mustResult(t, "registry_accountsOf", accountAddressParams{Address: addrParam(owner)}, &accounts)
	require.Equal(t, []string{created.Account}, accounts)

	ts.mustResult(t, "piggy_withdraw", piggyAmountParams{
		Account: created.Account,
		Caller:  addrParam(owner),
		Amount:  "300",
	}, nil)
	ts.mustResult(t, "bank_getBalance", bankBalanceParams{Address: addrParam(owner), Asset: "native"}, &balance)
	require.Equal(t, "1000", balance.Balance)
}

func TestGroupAccountFlow(t *testing.T) {
	ts := newTestServer(t)
	members := [][20]byte{newTestAddress(0x11), newTestAddress(0x22)}
	for _, m := range members {
		require.NoError(t, ts.manager.Mint(m, types.NativeAsset, big.NewInt(100)))
	}

	var created createAccountResult
	ts.mustResult(t, "registry_createGroup", createGroupParams{
		Caller:            addrParam(members[0]),
		Name:              "trip",
		Participants:      []string{addrParam(members[0]), addrParam(members[1])},
		RequiredApprovals: 2,
		Asset:             "native",
		Target:            "200",
		LockDuration:      0,
	}, &created)

	ts.mustResult(t, "piggy_groupDeposit", piggyAmountParams{
		Account: created.Account, Caller: addrParam(members[0]), Amount: "60",
	}, nil)
	ts.mustResult(t, "piggy_groupDeposit", piggyAmountParams{
		Account: created.Account, Caller: addrParam(members[1]), Amount: "40",
	}, nil)

	var proposed proposalCreatedResult
	ts.mustResult(t, "piggy_proposeWithdrawal", groupProposeParams{
		Account: created.Account, Caller: addrParam(members[0]), Emergency: false,
	}, &proposed)
	require.Equal(t, uint64(1), proposed.ProposalID)

	// Below quorum: execution reports a conflict code.
	resp := ts.call(t, "piggy_executeWithdrawal", piggyCallerParams{
		Account: created.Account, Caller: addrParam(members[0]),
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeConflict, resp.Error.Code)

	var approved approvalResult
	ts.mustResult(t, "piggy_approveWithdrawal", groupApproveParams{
		Account: created.Account, Caller: addrParam(members[1]), ProposalID: proposed.ProposalID,
	}, &approved)
	require.Equal(t, 2, approved.Approvals)

	ts.mustResult(t, "piggy_executeWithdrawal", piggyCallerParams{
		Account: created.Account, Caller: addrParam(members[0]),
	}, nil)

	for _, m := range members {
		var balance bankBalanceResult
		ts.mustResult(t, "bank_getBalance", bankBalanceParams{Address: addrParam(m), Asset: "native"}, &balance)
		require.Equal(t, "100", balance.Balance)
	}
}

func TestDexFlow(t *testing.T) {
	ts := newTestServer(t)
	asset := "0x5151515151515151515151515151515151515151"
	provider := newTestAddress(0x0A)
	trader := newTestAddress(0x0C)

	ts.mustResult(t, "registry_whitelistAsset", whitelistAssetParams{
		Caller: addrParam(ts.admin), Asset: asset,
	}, nil)
	ts.mustResult(t, "dex_addSupportedAsset", dexAssetParams{
		Caller: addrParam(ts.admin), Asset: asset,
	}, nil)

	parsedAsset, err := types.ParseAsset(asset)
	require.NoError(t, err)
	require.NoError(t, ts.manager.Mint(provider, types.NativeAsset, big.NewInt(1_000)))
	require.NoError(t, ts.manager.Mint(provider, parsedAsset, big.NewInt(1_000)))
	require.NoError(t, ts.manager.Mint(trader, types.NativeAsset, big.NewInt(100)))

	ts.mustResult(t, "dex_setSwapFee", dexFeeParams{Caller: addrParam(ts.admin), RateBps: 0}, nil)

	var liquidity liquidityResult
	ts.mustResult(t, "dex_addLiquidity", dexLiquidityParams{
		Caller: addrParam(provider), Asset: asset, BaseAmount: "1000", TokenAmount: "1000",
	}, &liquidity)
	require.Equal(t, "1000", liquidity.Shares)

	// No feeBps in the request: the quote uses the configured fee, zero here.
	var quote swapResult
	ts.mustResult(t, "dex_calculateSwapOutput", dexQuoteParams{
		AmountIn: "100", ReserveIn: "1000", ReserveOut: "1000",
	}, &quote)
	require.Equal(t, "90", quote.AmountOut)

	var swapped swapResult
	ts.mustResult(t, "dex_swapBaseForToken", dexSwapParams{
		Caller: addrParam(trader), Asset: asset, AmountIn: "100", MinOut: "90",
	}, &swapped)
	require.Equal(t, "90", swapped.AmountOut)

	// Slippage guard surfaces as a conflict.
	resp := ts.call(t, "dex_swapTokenForBase", dexSwapParams{
		Caller: addrParam(trader), Asset: asset, AmountIn: "10", MinOut: "1000000",
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeConflict, resp.Error.Code)

	var pool poolView
	ts.mustResult(t, "dex_getPool", dexPoolParams{Asset: asset}, &pool)
	require.Equal(t, "1100", pool.ReserveBase)
	require.Equal(t, "910", pool.ReserveToken)
	require.False(t, pool.Paused)

	ts.mustResult(t, "dex_pause", dexCallerParams{Caller: addrParam(ts.admin)}, nil)
	resp = ts.call(t, "dex_swapBaseForToken", dexSwapParams{
		Caller: addrParam(trader), Asset: asset, AmountIn: "1",
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codePaused, resp.Error.Code)
	ts.mustResult(t, "dex_unpause", dexCallerParams{Caller: addrParam(ts.admin)}, nil)

	// The fee ceiling maps to an invalid-params code.
	resp = ts.call(t, "dex_setSwapFee", dexFeeParams{Caller: addrParam(ts.admin), RateBps: 51}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestQuoteDefaultsToConfiguredFee(t *testing.T) {
	ts := newTestServer(t)

	// The genesis fee is 30 bps; a quote without feeBps must apply it.
	var quote swapResult
	ts.mustResult(t, "dex_calculateSwapOutput", dexQuoteParams{
		AmountIn: "10000", ReserveIn: "1000000", ReserveOut: "1000000",
	}, &quote)
	require.Equal(t, "9871", quote.AmountOut)

	// An explicit feeBps still overrides, including zero.
	zero := uint64(0)
	ts.mustResult(t, "dex_calculateSwapOutput", dexQuoteParams{
		AmountIn: "10000", ReserveIn: "1000000", ReserveOut: "1000000", FeeBps: &zero,
	}, &quote)
	require.Equal(t, "9900", quote.AmountOut)
}

func TestLastCreatedAccount(t *testing.T) {
	ts := newTestServer(t)

	var last lastCreatedResult
	ts.mustResult(t, "registry_lastCreated", struct{}{}, &last)
	require.False(t, last.Exists)

	owner := newTestAddress(0x11)
	var created createAccountResult
	ts.mustResult(t, "registry_createIndividual", createIndividualParams{
		Caller: addrParam(owner), Asset: "native", Target: "50",
	}, &created)

	ts.mustResult(t, "registry_lastCreated", struct{}{}, &last)
	require.True(t, last.Exists)
	require.Equal(t, created.Account, last.Account)
}

func TestConcurrentDepositsConserveValue(t *testing.T) {
	ts := newTestServer(t)
	owner := newTestAddress(0x11)
	const depositors = 200
	require.NoError(t, ts.manager.Mint(owner, types.NativeAsset, big.NewInt(depositors)))

	var created createAccountResult
	ts.mustResult(t, "registry_createIndividual", createIndividualParams{
		Caller: addrParam(owner), Asset: "native", Target: strconv.Itoa(depositors),
	}, &created)

	rawParams, err := json.Marshal(piggyAmountParams{
		Account: created.Account, Caller: addrParam(owner), Amount: "1",
	})
	require.NoError(t, err)
	body, err := json.Marshal(RPCRequest{
		JSONRPC: jsonRPCVersion,
		Method:  "piggy_deposit",
		Params:  []json.RawMessage{rawParams},
		ID:      1,
	})
	require.NoError(t, err)

	// Each deposit is a read-modify-write over the same record; concurrent
	// calls must still land every unit exactly once.
	var wg sync.WaitGroup
	failures := make(chan string, depositors)
	for i := 0; i < depositors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)
			var resp RPCResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				failures <- err.Error()
				return
			}
			if resp.Error != nil {
				failures <- resp.Error.Message
			}
		}()
	}
	wg.Wait()
	close(failures)
	for msg := range failures {
		t.Fatalf("deposit failed: %s", msg)
	}

	var progress progressResult
	ts.mustResult(t, "piggy_getProgress", piggyAccountParams{Account: created.Account}, &progress)
	require.Equal(t, strconv.Itoa(depositors), progress.Balance)

	var balance bankBalanceResult
	ts.mustResult(t, "bank_getBalance", bankBalanceParams{Address: created.Account, Asset: "native"}, &balance)
	require.Equal(t, strconv.Itoa(depositors), balance.Balance)
	ts.mustResult(t, "bank_getBalance", bankBalanceParams{Address: addrParam(owner), Asset: "native"}, &balance)
	require.Equal(t, "0", balance.Balance)
}

func TestEventsPoll(t *testing.T) {
	ts := newTestServer(t)
	owner := newTestAddress(0x11)
	require.NoError(t, ts.manager.Mint(owner, types.NativeAsset, big.NewInt(100)))

	var created createAccountResult
	ts.mustResult(t, "registry_createIndividual", createIndividualParams{
		Caller: addrParam(owner), Asset: "native", Target: "50",
	}, &created)
	ts.mustResult(t, "piggy_deposit", piggyAmountParams{
		Account: created.Account, Caller: addrParam(owner), Amount: "10",
	}, nil)

	var polled eventsPollResult
	ts.mustResult(t, "events_poll", eventsPollParams{Cursor: 0}, &polled)
	require.Len(t, polled.Entries, 2)
	require.Equal(t, "registry.account_created", polled.Entries[0].Event.Type)
	require.Equal(t, "piggy.deposit", polled.Entries[1].Event.Type)
	require.Equal(t, uint64(2), polled.Latest)

	// Resuming from the reported cursor returns nothing new.
	ts.mustResult(t, "events_poll", eventsPollParams{Cursor: polled.Latest}, &polled)
	require.Empty(t, polled.Entries)
}

func TestMethodNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.call(t, "no_such_method", struct{}{}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestAdminMethodsRequireToken(t *testing.T) {
	t.Setenv("PIGGY_RPC_TOKEN", "secret")
	ts := newTestServer(t)

	resp := ts.call(t, "registry_whitelistAsset", whitelistAssetParams{
		Caller: addrParam(ts.admin),
		Asset:  "0x5151515151515151515151515151515151515151",
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = ts.call(t, "registry_whitelistAsset", whitelistAssetParams{
		Caller: addrParam(ts.admin),
		Asset:  "0x5151515151515151515151515151515151515151",
	}, "wrong")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	resp = ts.call(t, "registry_whitelistAsset", whitelistAssetParams{
		Caller: addrParam(ts.admin),
		Asset:  "0x5151515151515151515151515151515151515151",
	}, "secret")
	require.Nil(t, resp.Error)
}

func TestUnauthorizedCallerIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.call(t, "registry_whitelistAsset", whitelistAssetParams{
		Caller: addrParam(newTestAddress(0x01)),
		Asset:  "0x5151515151515151515151515151515151515151",
	}, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeForbidden, resp.Error.Code)
}
