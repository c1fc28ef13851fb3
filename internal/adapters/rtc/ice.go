package rtc

import (
	"fmt"
	"strings"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultICEServers is used when the config lists none.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

// ParseICEServers turns config entries into ICE servers for clients.
// An entry is "url" or "url|username|credential" (TURN).
func ParseICEServers(entries []string) ([]webrtc.ICEServer, error) {
	if len(entries) == 0 {
		entries = DefaultICEServers
	}
	out := make([]webrtc.ICEServer, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		parts := strings.Split(e, "|")
		uri, err := stun.ParseURI(parts[0])
		if err != nil {
			return nil, fmt.Errorf("ice server %q: %w", parts[0], err)
		}
		srv := webrtc.ICEServer{URLs: []string{parts[0]}}
		switch len(parts) {
		case 1:
			if uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS {
				return nil, fmt.Errorf("ice server %q: turn needs username and credential", parts[0])
			}
		case 3:
			srv.Username = parts[1]
			srv.Credential = parts[2]
		default:
			return nil, fmt.Errorf("ice server %q: expected url or url|username|credential", e)
		}
		out = append(out, srv)
	}
	log.Info().Str("module", "rtc").Int("ice_servers", len(out)).Msg("ice config")
	return out, nil
}

// Configuration is the peer connection config clients should build from.
func Configuration(servers []webrtc.ICEServer) webrtc.Configuration {
	return webrtc.Configuration{ICEServers: servers}
}
