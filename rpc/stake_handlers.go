package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"kumachain/native/stake"
	"kumachain/native/token"
)

type stakeCallParams struct {
	Caller string `json:"caller"`
	Amount string `json:"amount,omitempty"`
}

type rateParams struct {
	Caller string `json:"caller"`
	Rate   uint64 `json:"rate"`
}

type mintParams struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type workflowResult struct {
	WorkflowID string `json:"workflowId"`
}

type positionResult struct {
	Account        string `json:"account"`
	TotalStake     string `json:"totalStake"`
	AccReward      string `json:"accReward"`
	LastUpdateTime uint64 `json:"lastUpdateTime"`
}

type ratesResult struct {
	FeePercent uint64 `json:"feePercent"`
	RewardRate uint64 `json:"rewardRate"`
}

type settleResult struct {
	Reward string `json:"reward"`
}

type balanceResult struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func decodeParams(req *RPCRequest, out any) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(amount string) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}

// writeEngineError maps engine failures onto JSON-RPC error codes: validation
// and missing-record failures are the caller's fault, the rest is server side.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, stake.ErrBelowMinimum),
		errors.Is(err, stake.ErrInsufficientBalance),
		errors.Is(err, stake.ErrNoStake),
		errors.Is(err, stake.ErrRateOutOfRange),
		errors.Is(err, token.ErrNotRegistered),
		errors.Is(err, token.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	case errors.Is(err, stake.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeUnauthorized, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, err.Error(), nil)
	}
}

func (s *Server) handleStake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.Stake(caller, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, workflowResult{WorkflowID: id.String()})
}

func (s *Server) handleUnstake(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.Unstake(caller, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, workflowResult{WorkflowID: id.String()})
}

func (s *Server) handleClaimReward(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.ClaimReward(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, workflowResult{WorkflowID: id.String()})
}

func (s *Server) handleSettle(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	reward, err := s.engine.Settle(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, settleResult{Reward: reward.String()})
}

func (s *Server) handleSetupAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.SetupAccount(caller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, workflowResult{WorkflowID: id.String()})
}

func (s *Server) handleGetPosition(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	account, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.engine.GetStake(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, positionResult{
		Account:        common.Address(account).Hex(),
		TotalStake:     record.TotalStake.String(),
		AccReward:      record.AccReward.String(),
		LastUpdateTime: record.LastUpdateTime,
	})
}

func (s *Server) handleRates(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	params := s.engine.Params()
	writeResult(w, req.ID, ratesResult{FeePercent: params.FeePercent, RewardRate: params.RewardRate})
}

func (s *Server) handleSetRewardRate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params rateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetRewardRate(caller, params.Rate); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleSetFeePercent(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params rateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetFeePercent(caller, params.Rate); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params stakeCallParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	account, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	balance, err := s.tokens.BalanceOf(account)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Account: common.Address(account).Hex(), Balance: balance.String()})
}

func (s *Server) handleTokenMint(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params mintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	to, err := parseAddress(params.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.tokens.Mint(to, amount); err != nil {
		if errors.Is(err, token.ErrMaxSupplyExceeded) {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}
