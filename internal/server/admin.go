package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	res, err := s.engine.UpdateConfig(r.Context(), req.toUpdate())
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req registerAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	res, err := s.engine.RegisterAsset(r.Context(), req.Token, req.MinCollateralRatio)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) handleUpdateAsset(w http.ResponseWriter, r *http.Request) {
	var req updateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	res, err := s.engine.UpdateAsset(r.Context(), chi.URLParam(r, "token"), req.MinCollateralRatio)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}

func (s *Server) handleRegisterMigration(w http.ResponseWriter, r *http.Request) {
	var req migrateAssetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	res, err := s.engine.RegisterMigration(r.Context(), chi.URLParam(r, "token"), req.EndPrice)
	s.mu.Unlock()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.respond(w, res)
}
