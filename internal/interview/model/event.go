package model

import "time"

// StatusEvent describes one persisted lifecycle transition.
type StatusEvent struct {
	Token string        `json:"token"`
	From  SessionStatus `json:"from"`
	To    SessionStatus `json:"to"`
	At    time.Time     `json:"at"`
}
