package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pilot-bridge/pilotingitf"
)

// writeJSON отправляет ответ в формате JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode читает тело запроса; при ошибке ответ уже отправлен
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// accepted сообщает результат команды: 202 если принята, 409 если отклонена
func accepted(w http.ResponseWriter, ok bool) {
	status := http.StatusAccepted
	if !ok {
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]bool{"accepted": ok})
}

func notConnected(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "drone not connected")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connected":   s.session.Connected(),
		"flyingState": s.session.FlyingState(),
	})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshots())
}

func (s *Server) kind(w http.ResponseWriter, r *http.Request) (pilotingitf.Kind, bool) {
	kind, err := pilotingitf.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return 0, false
	}
	return kind, true
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}
	snap, ok := s.session.Snapshot(kind)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s interface not published", kind))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type deactivatable interface {
	Deactivate() bool
}

type activatable interface {
	deactivatable
	Activate() bool
}

// itf возвращает опубликованный интерфейс или nil
func (s *Server) itf(kind pilotingitf.Kind) deactivatable {
	switch kind {
	case pilotingitf.KindManual:
		if m := s.session.Manual(); m != nil {
			return m
		}
	case pilotingitf.KindFollowMe:
		if f := s.session.FollowMe(); f != nil {
			return f
		}
	case pilotingitf.KindLookAt:
		if l := s.session.LookAt(); l != nil {
			return l
		}
	case pilotingitf.KindGuided:
		if g := s.session.Guided(); g != nil {
			return g
		}
	}
	return nil
}

func (s *Server) activate(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}
	itf := s.itf(kind)
	if itf == nil {
		notConnected(w)
		return
	}
	a, ok := itf.(activatable)
	if !ok {
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("%s interface is activated by its moves", kind))
		return
	}
	accepted(w, a.Activate())
}

func (s *Server) deactivate(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kind(w, r)
	if !ok {
		return
	}
	itf := s.itf(kind)
	if itf == nil {
		notConnected(w)
		return
	}
	accepted(w, itf.Deactivate())
}

func (s *Server) manualCommand(w http.ResponseWriter, cmd func(*pilotingitf.Manual) bool) {
	m := s.session.Manual()
	if m == nil {
		notConnected(w)
		return
	}
	accepted(w, cmd(m))
}

func (s *Server) takeOff(w http.ResponseWriter, r *http.Request) {
	s.manualCommand(w, (*pilotingitf.Manual).TakeOff)
}

func (s *Server) land(w http.ResponseWriter, r *http.Request) {
	s.manualCommand(w, (*pilotingitf.Manual).Land)
}

func (s *Server) emergency(w http.ResponseWriter, r *http.Request) {
	s.manualCommand(w, (*pilotingitf.Manual).EmergencyCutOut)
}

type valueRequest struct {
	Value float64 `json:"value"`
}

func (s *Server) setMaxPitchRoll(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	s.manualCommand(w, func(m *pilotingitf.Manual) bool { return m.SetMaxPitchRoll(req.Value) })
}

type followModeRequest struct {
	Mode pilotingitf.FollowMode `json:"mode"`
}

func (s *Server) setFollowMode(w http.ResponseWriter, r *http.Request) {
	var req followModeRequest
	if !decode(w, r, &req) {
		return
	}
	f := s.session.FollowMe()
	if f == nil {
		notConnected(w)
		return
	}
	accepted(w, f.SetMode(req.Mode))
}

type locationRequest struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Altitude    float64 `json:"altitude"`
	Orientation string  `json:"orientation"` // none, to_target, heading_start, heading_during
	Heading     float64 `json:"heading"`
}

func (req locationRequest) orientation() (pilotingitf.Orientation, error) {
	switch req.Orientation {
	case "", "none":
		return pilotingitf.OrientationNone, nil
	case "to_target":
		return pilotingitf.OrientationToTarget, nil
	case "heading_start":
		return pilotingitf.HeadingStart(req.Heading), nil
	case "heading_during":
		return pilotingitf.HeadingDuring(req.Heading), nil
	}
	return pilotingitf.Orientation{}, fmt.Errorf("unknown orientation %q", req.Orientation)
}

func (s *Server) moveToLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decode(w, r, &req) {
		return
	}
	orientation, err := req.orientation()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g := s.session.Guided()
	if g == nil {
		notConnected(w)
		return
	}
	accepted(w, g.MoveToLocation(req.Latitude, req.Longitude, req.Altitude, orientation))
}

type relativeRequest struct {
	DX   float64 `json:"dx"`
	DY   float64 `json:"dy"`
	DZ   float64 `json:"dz"`
	DYaw float64 `json:"dyaw"`
}

func (s *Server) moveToRelative(w http.ResponseWriter, r *http.Request) {
	var req relativeRequest
	if !decode(w, r, &req) {
		return
	}
	g := s.session.Guided()
	if g == nil {
		notConnected(w)
		return
	}
	accepted(w, g.MoveToRelativePosition(req.DX, req.DY, req.DZ, req.DYaw))
}

func (s *Server) listFlights(w http.ResponseWriter, r *http.Request) {
	if s.flights == nil {
		writeError(w, http.StatusNotFound, "flight log disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	records, err := s.flights.List(r.Context(), limit)
	if err != nil {
		logger.Printf("Failed to list flights: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list flights")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
