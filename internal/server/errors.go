package server

import (
	"errors"
	"net/http"

	"MintVault/internal/engine"
	fpmath "MintVault/internal/math"
	"MintVault/internal/oracle"
	"MintVault/internal/state"
)

// statusFor maps the engine's rejection taxonomy onto HTTP status codes.
// Anything unrecognized is an internal failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrAlreadyRegistered):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrUnavailable), errors.Is(err, oracle.ErrUnknownAsset):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrWrongCollateral),
		errors.Is(err, engine.ErrWrongAsset),
		errors.Is(err, engine.ErrAssetMigrated),
		errors.Is(err, engine.ErrCollateralRevoked),
		errors.Is(err, engine.ErrOpenBelowFloor),
		errors.Is(err, engine.ErrMintOverLimit),
		errors.Is(err, engine.ErrWithdrawOverLimit),
		errors.Is(err, engine.ErrWithdrawTooMuch),
		errors.Is(err, engine.ErrBurnOverMinted),
		errors.Is(err, engine.ErrZeroMint),
		errors.Is(err, engine.ErrAssetNotRegistered),
		errors.Is(err, state.ErrRatioBelowFloor),
		errors.Is(err, state.ErrFeeRateTooHigh),
		errors.Is(err, fpmath.ErrDivideByZero):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("internal failure")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
