package server

import (
	"context"
	"net/http"

	"tailscale.com/client/tailscale/apitype"
)

// UserInfo identifies the caller.
type UserInfo struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// WhoIser resolves a tailnet peer address to its owner. The tsnet local
// client satisfies it.
type WhoIser interface {
	WhoIs(ctx context.Context, remoteAddr string) (*apitype.WhoIsResponse, error)
}

type contextKey int

const (
	userInfoKey contextKey = iota
	requestIDKey
)

var localUser = UserInfo{Login: "local", DisplayName: "Local User"}

// SetTailscale makes requests carry the tailnet identity of their sender.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

func (s *Server) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := localUser
		if s.whois != nil {
			who, err := s.whois.WhoIs(r.Context(), r.RemoteAddr)
			if err != nil {
				s.log.Warn("tailscale whois failed", "request", requestID(r), "remote", r.RemoteAddr, "error", err)
				writeError(w, http.StatusUnauthorized, "unknown tailnet peer")
				return
			}
			if who.UserProfile != nil {
				info = UserInfo{Login: who.UserProfile.LoginName, DisplayName: who.UserProfile.DisplayName}
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userInfoKey, info)))
	})
}

func userInfoFromContext(r *http.Request) UserInfo {
	if info, ok := r.Context().Value(userInfoKey).(UserInfo); ok {
		return info
	}
	return localUser
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}
