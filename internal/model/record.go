package model

import "time"

// StatusRecord is one Minecraft server that answered a status query.
// Records are keyed by Address; the persisted collection never holds two
// records with the same Address.
type StatusRecord struct {
	Address       string    `json:"address"`
	Port          uint16    `json:"port"`
	Version       string    `json:"version"`
	PlatformTag   string    `json:"platformTag"`
	OnlinePlayers int       `json:"onlinePlayers"`
	MOTD          string    `json:"motd"`
	MaxPlayers    int       `json:"maxPlayers,omitempty"`
	Protocol      int       `json:"protocol,omitempty"`
	FoundAt       time.Time `json:"foundAt,omitempty"`
}

// HostPort returns "address:port".
func (r StatusRecord) HostPort() string {
	return JoinHostPort(r.Address, r.Port)
}
