// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package nostr

import (
	"strings"
	"testing"
)

func TestEncodeReq(t *testing.T) {
	data, err := EncodeReq("funnel-video-sub", Filter{
		Kinds: VideoKinds,
		Since: 1700000000,
		Limit: 5000,
	})
	if err != nil {
		t.Fatalf("EncodeReq error: %v", err)
	}

	msg := string(data)
	if !strings.HasPrefix(msg, `["REQ","funnel-video-sub",`) {
		t.Errorf("unexpected prefix: %s", msg)
	}
	for _, want := range []string{`"kinds":[34235,34236]`, `"since":1700000000`, `"limit":5000`} {
		if !strings.Contains(msg, want) {
			t.Errorf("REQ missing %s: %s", want, msg)
		}
	}
	if strings.Contains(msg, "until") {
		t.Errorf("zero until should be omitted: %s", msg)
	}
}

func TestEncodeClose(t *testing.T) {
	data, err := EncodeClose("sub1")
	if err != nil {
		t.Fatalf("EncodeClose error: %v", err)
	}
	if got := string(data); got != `["CLOSE","sub1"]` {
		t.Errorf("CLOSE = %s", got)
	}
}

func TestDecodeFrameEvent(t *testing.T) {
	raw := `["EVENT","sub1",` + videoEventJSON + `]`

	frame, err := DecodeFrame([]byte(raw))
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	if frame.Type != "EVENT" {
		t.Errorf("type = %q", frame.Type)
	}
	if frame.SubID != "sub1" {
		t.Errorf("sub id = %q", frame.SubID)
	}
	if frame.Event == nil || frame.Event.Kind != KindVideoHorizontal {
		t.Errorf("event = %+v", frame.Event)
	}
}

func TestDecodeFrameEOSE(t *testing.T) {
	frame, err := DecodeFrame([]byte(`["EOSE","sub1"]`))
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	if frame.Type != "EOSE" || frame.SubID != "sub1" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestDecodeFrameNotice(t *testing.T) {
	frame, err := DecodeFrame([]byte(`["NOTICE","rate limited"]`))
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	if frame.Type != "NOTICE" || frame.Notice != "rate limited" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestDecodeFrameUnknownType(t *testing.T) {
	frame, err := DecodeFrame([]byte(`["OK","abc",true,""]`))
	if err != nil {
		t.Fatalf("DecodeFrame error: %v", err)
	}
	if frame.Type != "OK" {
		t.Errorf("type = %q, want OK", frame.Type)
	}
}

func TestDecodeFrameInvalid(t *testing.T) {
	cases := []string{
		`{"not": "an array"}`,
		`[]`,
		`[42]`,
		`["EVENT","sub-only"]`,
	}
	for _, raw := range cases {
		if _, err := DecodeFrame([]byte(raw)); err == nil {
			t.Errorf("DecodeFrame(%s) expected error", raw)
		}
	}
}
