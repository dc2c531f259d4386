package server

import (
	"encoding/json"
	"log"
	"net/http"

	"idlegate/internal/constants"
	"idlegate/internal/security"
	"idlegate/internal/session"
	"idlegate/internal/types"
)

// decodeCreate reads a small JSON body for one of the hierarchy POSTs.
func decodeCreate(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxItemBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, constants.MsgInvalidJSON)
		return false
	}
	return true
}

// HandleYears serves GET and POST /api/years.
func (s *Server) HandleYears(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		years, err := s.Inventory.Years(r.Context())
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, years)
	case http.MethodPost:
		var req types.YearRequest
		if !decodeCreate(w, r, &req) {
			return
		}
		y, err := s.Inventory.CreateYear(r.Context(), security.SanitizeInput(req.Label))
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		log.Printf("📦 %s created year %s", sess.UserID, y.ID)
		writeJSON(w, http.StatusCreated, y)
	default:
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
	}
}

// HandleZones serves GET /api/zones?year_id= and POST /api/zones.
func (s *Server) HandleZones(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		zones, err := s.Inventory.Zones(r.Context(), r.URL.Query().Get("year_id"))
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, zones)
	case http.MethodPost:
		var req types.ZoneRequest
		if !decodeCreate(w, r, &req) {
			return
		}
		z, err := s.Inventory.CreateZone(r.Context(), req.YearID, security.SanitizeInput(req.Name))
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		log.Printf("📦 %s created zone %s in %s", sess.UserID, z.ID, z.YearID)
		writeJSON(w, http.StatusCreated, z)
	default:
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
	}
}

// HandleSubzones serves GET /api/subzones?zone_id= and POST /api/subzones.
func (s *Server) HandleSubzones(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	switch r.Method {
	case http.MethodGet:
		subs, err := s.Inventory.Subzones(r.Context(), r.URL.Query().Get("zone_id"))
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	case http.MethodPost:
		var req types.SubzoneRequest
		if !decodeCreate(w, r, &req) {
			return
		}
		sz, err := s.Inventory.CreateSubzone(r.Context(), req.ZoneID, security.SanitizeInput(req.Name))
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		log.Printf("📦 %s created subzone %s in %s", sess.UserID, sz.ID, sz.ZoneID)
		writeJSON(w, http.StatusCreated, sz)
	default:
		writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
	}
}
