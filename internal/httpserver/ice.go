package httpserver

import (
	"net/http"

	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/session"
	"github.com/wilsonzlin/aero/proxy/webrtc-pairing-relay/internal/turnrest"
)

// handleICE returns the ICE servers parties should use. With TURN REST
// enabled every TURN entry gets fresh credentials; ?session=<id> binds them
// to a pairing session.
func (s *Server) handleICE(w http.ResponseWriter, r *http.Request) {
	if err := s.iceError(); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}

	servers := s.cfg.ICEServers
	if servers == nil {
		servers = []webrtc.ICEServer{}
	}
	if s.turn != nil {
		var (
			creds turnrest.Credentials
			err   error
		)
		if label := r.URL.Query().Get("session"); session.ValidID(label) {
			creds, err = s.turn.Generate(label)
		} else {
			creds, err = s.turn.GenerateRandom()
		}
		if err != nil {
			s.log.Error("turn rest credential generation failed", "err", err)
			WriteJSON(w, http.StatusInternalServerError, map[string]any{"error": "credential generation failed"})
			return
		}
		servers = withTURNRESTCredentials(servers, creds.Username, creds.Credential)
	}

	w.Header().Set("Cache-Control", "no-store")
	WriteJSON(w, http.StatusOK, map[string]any{"iceServers": servers})
}

func withTURNRESTCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if iceServerHasTURNURL(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func iceServerHasTURNURL(server webrtc.ICEServer) bool {
	for _, u := range server.URLs {
		if config.IsTURNURL(u) {
			return true
		}
	}
	return false
}
