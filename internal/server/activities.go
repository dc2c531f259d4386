package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"idlegate/internal/constants"
	"idlegate/internal/inventory"
	"idlegate/internal/security"
	"idlegate/internal/session"
	"idlegate/internal/types"
)

type itemResponse struct {
	Item   *inventory.Item  `json:"item,omitempty"`
	Counts inventory.Counts `json:"counts"`
}

// HandleActivities serves
//
//	GET    /api/activities/?limit=N
//	POST   /api/activities/
//	GET    /api/activities/{id}
//	PUT    /api/activities/{id}/services/{service}/items/{item}
//	DELETE /api/activities/{id}/services/{service}/items/{item}
func (s *Server) HandleActivities(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, constants.EndpointActivities), "/")
	var parts []string
	if rest != "" {
		parts = strings.Split(rest, "/")
	}
	for _, p := range parts {
		if !security.ValidateSegment(p) {
			writeError(w, http.StatusBadRequest, "Invalid path")
			return
		}
	}

	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			list, err := s.Inventory.Activities(r.Context(), limit)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			s.createActivity(w, r, sess)
		default:
			writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		}

	case len(parts) == 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
			return
		}
		view, err := s.Inventory.Activity(r.Context(), parts[0])
		if err != nil {
			writeInventoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case len(parts) == 5 && parts[1] == "services" && parts[3] == "items":
		activityID, serviceID, itemID := parts[0], parts[2], parts[4]
		switch r.Method {
		case http.MethodPut:
			s.putItem(w, r, sess, activityID, serviceID, itemID)
		case http.MethodDelete:
			counts, err := s.Inventory.DeleteItem(r.Context(), activityID, serviceID, itemID)
			if err != nil {
				writeInventoryError(w, err)
				return
			}
			log.Printf("📦 %s removed %s/%s from %s", sess.UserID, serviceID, itemID, activityID)
			writeJSON(w, http.StatusOK, itemResponse{Counts: counts})
		default:
			writeError(w, http.StatusMethodNotAllowed, constants.MsgMethodNotAllowed)
		}

	default:
		writeError(w, http.StatusNotFound, constants.MsgNotFound)
	}
}

func (s *Server) createActivity(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxItemBodySize)

	var req types.ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, constants.MsgInvalidJSON)
		return
	}

	a, err := s.Inventory.CreateActivity(r.Context(), inventory.Activity{
		Label:        security.SanitizeInput(req.Label),
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		YearID:       req.YearID,
		ZoneID:       req.ZoneID,
		SubzoneID:    req.SubzoneID,
		Observations: security.SanitizeInput(req.Observations),
	})
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	log.Printf("📦 %s created activity %s", sess.UserID, a.ID)
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) putItem(w http.ResponseWriter, r *http.Request, sess *session.Session, activityID, serviceID, itemID string) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxItemBodySize)

	var in inventory.ItemInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, constants.MsgInvalidJSON)
		return
	}
	in.Name = security.SanitizeInput(in.Name)

	item, counts, err := s.Inventory.WriteItem(r.Context(), activityID, serviceID, itemID, in)
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	log.Printf("📦 %s wrote %s/%s in %s (%d/%d returned)", sess.UserID, serviceID, itemID, activityID, counts.Returned, counts.Total)
	writeJSON(w, http.StatusOK, itemResponse{Item: item, Counts: counts})
}

func writeInventoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, constants.MsgNotFound)
	case errors.Is(err, inventory.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("Inventory error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
