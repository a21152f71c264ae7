package main

import "time"

type Config struct {
	RoomID        string        `env:"ROOM_ID,default=general"`
	ClientID      string        `env:"CLIENT_ID,default=alice"`
	PeerID        string        `env:"PEER_ID,default=bob"`
	HistoryLimit  int           `env:"HISTORY_LIMIT,default=20"`
	TypingTimeout time.Duration `env:"TYPING_TIMEOUT,default=2s"`
	LogLevel      string        `env:"LOG_LEVEL,default=info"`
	Colours       bool          `env:"COLOURS,default=true"`
}
