// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/cafes/{id}", "200"))
	RecordAPIRequest("GET", "/api/cafes/{id}", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/cafes/{id}", "200"))

	if after-before != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", after-before)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestRecordMemberStoreOp(t *testing.T) {
	tests := []struct {
		op     string
		result string
	}{
		{"find_by_id", "ok"},
		{"find_by_id", "not_found"},
		{"find_or_create_by_provider", "conflict"},
	}
	for _, tt := range tests {
		t.Run(tt.op+"/"+tt.result, func(t *testing.T) {
			c := MemberStoreResults.WithLabelValues(tt.op, tt.result)
			before := testutil.ToFloat64(c)
			RecordMemberStoreOp(tt.op, tt.result, time.Millisecond)
			if got := testutil.ToFloat64(c); got != before+1 {
				t.Errorf("member_store_operations_total = %v, want %v", got, before+1)
			}
		})
	}
}
