package network

import (
	"context"

	"arena-duel/server/logging"
)

const (
	EventJoined           logging.EventType = "network.joined"
	EventJoinRejected     logging.EventType = "network.join_rejected"
	EventLeft             logging.EventType = "network.left"
	EventHeartbeatTimeout logging.EventType = "network.heartbeat_timeout"
	EventMalformed        logging.EventType = "network.malformed_message"
	EventInputIgnored     logging.EventType = "network.input_ignored"
)

// SessionPayload describes a slot binding change.
type SessionPayload struct {
	ProfileID    string `json:"profileId,omitempty"`
	Slot         string `json:"slot,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Reconnect    bool   `json:"reconnect,omitempty"`
	MissedPings  int    `json:"missedPings,omitempty"`
	SilentMillis int64  `json:"silentMillis,omitempty"`
}

// MessagePayload describes a dropped inbound message.
type MessagePayload struct {
	MessageType string `json:"messageType,omitempty"`
	Frame       uint64 `json:"frame,omitempty"`
	Error       string `json:"error,omitempty"`
}

func Joined(ctx context.Context, pub logging.Publisher, matchID string, conn logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventJoined, logging.SeverityInfo, matchID, conn, payload)
}

func JoinRejected(ctx context.Context, pub logging.Publisher, matchID string, conn logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventJoinRejected, logging.SeverityWarn, matchID, conn, payload)
}

func Left(ctx context.Context, pub logging.Publisher, matchID string, conn logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventLeft, logging.SeverityInfo, matchID, conn, payload)
}

func HeartbeatTimeout(ctx context.Context, pub logging.Publisher, matchID string, conn logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventHeartbeatTimeout, logging.SeverityWarn, matchID, conn, payload)
}

func Malformed(ctx context.Context, pub logging.Publisher, matchID string, conn logging.EntityRef, payload MessagePayload) {
	publish(ctx, pub, EventMalformed, logging.SeverityWarn, matchID, conn, payload)
}

func InputIgnored(ctx context.Context, pub logging.Publisher, matchID string, conn logging.EntityRef, payload MessagePayload) {
	publish(ctx, pub, EventInputIgnored, logging.SeverityWarn, matchID, conn, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, sev logging.Severity, matchID string, actor logging.EntityRef, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		MatchID:  matchID,
		Actor:    actor,
		Severity: sev,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
