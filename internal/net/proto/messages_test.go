package proto

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeJoin(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"join","matchId":"m1","profileId":"p1","slot":"guest"}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	join, ok := msg.(*Join)
	if !ok {
		t.Fatalf("expected *Join, got %T", msg)
	}
	if join.MatchID != "m1" || join.ProfileID != "p1" || join.Slot != SlotGuest {
		t.Fatalf("unexpected join %+v", join)
	}
}

func TestDecodeRejectsMalformedMessages(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"type":`,
		"unknown type":    `{"type":"teleport"}`,
		"join no profile": `{"type":"join","matchId":"m1"}`,
		"join bad slot":   `{"type":"join","matchId":"m1","profileId":"p","slot":"spectator"}`,
		"inputs frame 0":  `{"type":"inputs","frame":0,"connectionId":"c"}`,
		"inputs no conn":  `{"type":"inputs","frame":3}`,
		"wrong field":     `{"type":"inputs","frame":"soon","connectionId":"c"}`,
		"empty":           ``,
	}
	for name, raw := range cases {
		if _, err := Decode([]byte(raw)); !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("%s: expected ErrInvalidMessage, got %v", name, err)
		}
	}
}

func TestEncodeStampsType(t *testing.T) {
	data, err := Encode(&Leave{Reason: ReasonMatchFull})
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(data), `"type":"leave"`) || !strings.Contains(string(data), `"reason":"match_full"`) {
		t.Fatalf("unexpected encoding %s", data)
	}
	back, err := Decode(data)
	if err != nil {
		t.Fatalf("decode own encoding: %v", err)
	}
	if back.(*Leave).Reason != ReasonMatchFull {
		t.Fatalf("reason lost: %+v", back)
	}
	if _, err := Encode(struct{}{}); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected unknown message error, got %v", err)
	}
}

func TestInputsCarryButtons(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"inputs","frame":12,"connectionId":"c1","inputs":{"frame":12,"left":true,"heavy":true}}`))
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	in := msg.(*Inputs)
	if !in.Inputs.Left || !in.Inputs.Heavy || in.Inputs.Right {
		t.Fatalf("unexpected buttons %+v", in.Inputs)
	}
}

func TestSchemaCoversClientMessages(t *testing.T) {
	schemas := Schema()
	for _, typ := range []Type{TypeJoin, TypeInputs, TypePong} {
		if schemas[typ] == nil || schemas[typ].Title == "" {
			t.Fatalf("expected schema for %s", typ)
		}
	}
}
