package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"MintVault/internal/asset"
	"MintVault/internal/engine"
	"MintVault/internal/state"
)

func (s *Server) handleOpenPosition(w http.ResponseWriter, r *http.Request) {
	sender, ok := s.sender(w, r)
	if !ok {
		return
	}
	var req openPositionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	collateral := req.Collateral.toAsset()
	if err := verifyNativeFunds(collateral, req.Funds); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	res, err := s.engine.OpenPosition(r.Context(), sender, collateral, req.AssetToken, req.CollateralRatio)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sender(w, r); !ok {
		return
	}
	idx, err := pathIdx(r)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad position idx", state.ErrNotFound))
		return
	}
	var req depositRequest
	if !decodeBody(w, r, &req) {
		return
	}

	collateral := req.Collateral.toAsset()
	if err := verifyNativeFunds(collateral, req.Funds); err != nil {
		s.writeError(w, err)
		return
	}

	s.mu.Lock()
	res, err := s.engine.Deposit(r.Context(), idx, collateral)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	sender, ok := s.sender(w, r)
	if !ok {
		return
	}
	idx, err := pathIdx(r)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad position idx", state.ErrNotFound))
		return
	}
	var req withdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var collateral *asset.Asset
	if req.Collateral != nil {
		a := req.Collateral.toAsset()
		collateral = &a
	}

	s.mu.Lock()
	res, err := s.engine.Withdraw(r.Context(), sender, idx, collateral)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	sender, ok := s.sender(w, r)
	if !ok {
		return
	}
	idx, err := pathIdx(r)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad position idx", state.ErrNotFound))
		return
	}
	var req mintRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	res, err := s.engine.Mint(r.Context(), sender, idx, req.Asset.toAsset())
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

// handleTokenReceive is the token-transfer callback: the token contract
// reports an amount already moved to this service together with a hook
// saying what it is for. Because the tokens really moved before the call,
// the received amount is authoritative and front-running the hook is
// pointless.
func (s *Server) handleTokenReceive(w http.ResponseWriter, r *http.Request) {
	tokenContract, ok := s.sender(w, r)
	if !ok {
		return
	}
	var req tokenReceiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Sender == "" || !req.Amount.IsPositive() {
		s.writeError(w, fmt.Errorf("%w: callback needs a sender and a positive amount", engine.ErrWrongAsset))
		return
	}

	received := asset.Asset{Info: asset.Token(tokenContract), Amount: req.Amount}

	s.mu.Lock()
	res, err := s.dispatchHook(r, req, received)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) dispatchHook(r *http.Request, req tokenReceiveRequest, received asset.Asset) (*engine.Result, error) {
	switch {
	case req.Msg.OpenPosition != nil:
		hook := req.Msg.OpenPosition
		return s.engine.OpenPosition(r.Context(), req.Sender, received, hook.AssetToken, hook.CollateralRatio)
	case req.Msg.Deposit != nil:
		return s.engine.Deposit(r.Context(), req.Msg.Deposit.PositionIdx, received)
	case req.Msg.Burn != nil:
		return s.engine.Burn(r.Context(), req.Sender, req.Msg.Burn.PositionIdx, received)
	default:
		return nil, fmt.Errorf("%w: callback carries no hook", engine.ErrWrongAsset)
	}
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	idx, err := pathIdx(r)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: bad position idx", state.ErrNotFound))
		return
	}
	pos, err := s.engine.Position(r.Context(), idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := state.PositionFilter{
		Owner:      q.Get("owner"),
		AssetToken: q.Get("asset"),
		Descending: q.Get("order") == "desc",
	}
	if v := q.Get("start_after"); v != "" {
		idx, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad start_after"})
			return
		}
		filter.StartAfter = &idx
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad limit"})
			return
		}
		filter.Limit = limit
	}

	positions, err := s.engine.Positions(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"positions": positions})
}

func (s *Server) handleNextPositionIdx(w http.ResponseWriter, r *http.Request) {
	next, err := s.engine.NextPositionIdx(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"next_position_idx": next})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Config(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.engine.Asset(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
