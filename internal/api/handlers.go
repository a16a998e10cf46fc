package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/socchain/faucet/pkg/bridge"
	"github.com/socchain/faucet/pkg/faucet"
	"github.com/socchain/faucet/pkg/ledger"
	"github.com/socchain/faucet/pkg/utils"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type cooldownBody struct {
	Error       string `json:"error"`
	RemainingMs int64  `json:"remainingMs"`
}

type claimRequest struct {
	Address string `json:"address"`
}

type claimResponse struct {
	Address      string `json:"address"`
	Amount       string `json:"amount"`
	AmountTokens string `json:"amountTokens"`
	Decimals     int32  `json:"decimals"`
	TxHash       string `json:"txHash"`
}

type bridgeBody struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type balancesRequest struct {
	PrivateKey string `json:"privateKey"`
}

type healthBody struct {
	Status string            `json:"status"`
	Chains map[string]uint64 `json:"chains,omitempty"`
	Error  string            `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decode reads a size-capped JSON body. It writes the error response itself
// and reports whether decoding succeeded.
func decode(w http.ResponseWriter, r *http.Request, dst any, onErr func(int, string)) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		onErr(http.StatusRequestEntityTooLarge, "body_too_large")
		return false
	}
	onErr(http.StatusBadRequest, "invalid_json")
	return false
}

func (s *Server) handleClaim(c Claimer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req claimRequest
		ok := decode(w, r, &req, func(status int, code string) {
			writeJSON(w, status, errorBody{Error: code})
		})
		if !ok {
			return
		}

		// A client disconnect must not abandon a broadcast transaction
		// before its ledger row is written.
		ctx := context.WithoutCancel(r.Context())
		res, err := c.Claim(ctx, req.Address, s.clientIP(r))
		switch {
		case errors.Is(err, utils.ErrInvalidAddress):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid_address"})
		case err != nil:
			s.log.Errorw("claim failed", "chain", c.Chain(), "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{
				Error:   "internal",
				Message: utils.Truncate(err.Error(), ledger.MaxFailureReasonLen),
			})
		case res.Status == faucet.ClaimCooldown:
			writeJSON(w, http.StatusTooManyRequests, cooldownBody{Error: "cooldown", RemainingMs: res.RemainingMs})
		default:
			writeJSON(w, http.StatusCreated, claimResponse{
				Address:      res.Record.Address,
				Amount:       res.Record.Amount,
				AmountTokens: res.AmountTokens,
				Decimals:     res.Decimals,
				TxHash:       res.Record.TxHash,
			})
		}
	}
}

func bridgeStatus(err error) int {
	var verr *bridge.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeBridgeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, bridgeBody{Error: msg})
}

func (s *Server) handleBridgeBalances(w http.ResponseWriter, r *http.Request) {
	var req balancesRequest
	if !decode(w, r, &req, func(status int, code string) { writeBridgeError(w, status, code) }) {
		return
	}
	res, err := s.deps.Balances.Balances(r.Context(), req.PrivateKey)
	if err != nil {
		writeBridgeError(w, bridgeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bridgeBody{Success: true, Data: res})
}

func (s *Server) handleBridgeExecute(w http.ResponseWriter, r *http.Request) {
	var req bridge.Request
	if !decode(w, r, &req, func(status int, code string) { writeBridgeError(w, status, code) }) {
		return
	}
	res, err := s.deps.Bridge.Execute(context.WithoutCancel(r.Context()), req)
	if err != nil {
		writeBridgeError(w, bridgeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, bridgeBody{Success: true, Data: res})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	ids := make([]uint64, len(s.deps.Statuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.deps.Statuses {
		g.Go(func() (err error) {
			ids[i], err = src.Health(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeJSON(w, http.StatusInternalServerError, healthBody{Status: "error", Error: err.Error()})
		return
	}

	chains := make(map[string]uint64, len(ids))
	for i, src := range s.deps.Statuses {
		chains[src.Chain()] = ids[i]
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", Chains: chains})
}

func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
	defer cancel()

	out := make([]*faucet.Status, len(s.deps.Statuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.deps.Statuses {
		g.Go(func() (err error) {
			out[i], err = src.Status(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("chain")
	for _, src := range s.deps.Statuses {
		if src.Chain() != name {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), statusTimeout)
		defer cancel()
		st, err := src.Status(ctx)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, st)
		return
	}
	writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown_chain"})
}
