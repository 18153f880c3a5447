// Funnel - Nostr Video Analytics Pipeline
// Copyright 2026 Funnel Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/funnel-video/funnel

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEventReceived(t *testing.T) {
	before := testutil.ToFloat64(EventsReceived.WithLabelValues("34235"))
	RecordEventReceived("34235")
	after := testutil.ToFloat64(EventsReceived.WithLabelValues("34235"))

	if after-before != 1 {
		t.Errorf("events received delta = %v, want 1", after-before)
	}
}

func TestRecordBatchWritten(t *testing.T) {
	before := testutil.ToFloat64(EventsWritten)
	RecordBatchWritten(250, 50*time.Millisecond)
	after := testutil.ToFloat64(EventsWritten)

	if after-before != 250 {
		t.Errorf("events written delta = %v, want 250", after-before)
	}
}

func TestRecordLag(t *testing.T) {
	RecordLag(90 * time.Second)
	if got := testutil.ToFloat64(Lag); got != 90 {
		t.Errorf("lag gauge = %v, want 90", got)
	}

	ResetLag()
	if got := testutil.ToFloat64(Lag); got != 0 {
		t.Errorf("lag gauge after reset = %v, want 0", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequests.WithLabelValues("GET", "/api/videos", "200"))
	RecordAPIRequest("GET", "/api/videos", "200", 10*time.Millisecond)
	after := testutil.ToFloat64(APIRequests.WithLabelValues("GET", "/api/videos", "200"))

	if after-before != 1 {
		t.Errorf("api requests delta = %v, want 1", after-before)
	}
}
