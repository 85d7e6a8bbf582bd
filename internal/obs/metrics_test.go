package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":          "/",
		"/metrics":  "/metrics",
		"/v1/groups": "/v1/groups",
		"/v1/groups/01HZX3Q8M5T7W2K9B4C6D8E0FG":                     "/v1/groups/{id}",
		"/v1/groups/01HZX3Q8M5T7W2K9B4C6D8E0FG/members/alice":       "/v1/groups/{id}/members/{id}",
		"/v1/groups/01HZX3Q8M5T7W2K9B4C6D8E0FG/members/alice/role":  "/v1/groups/{id}/members/{id}/role",
		"/v1/groups/01HZX3Q8M5T7W2K9B4C6D8E0FG/join-requests?x=1":   "/v1/groups/{id}/join-requests",
		"/v1/groups/g/roles/01HZX3Q8M5T7W2K9B4C6D8E0FH/permissions": "/v1/groups/{id}/roles/{id}/permissions",
		"/v1/info": "/v1/info",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentRecordsCanonicalPath(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/groups/{id}", "418"))

	req := httptest.NewRequest(http.MethodGet, "/v1/groups/01HZX3Q8M5T7W2K9B4C6D8E0FG", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/groups/{id}", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request counted, got %v", after-before)
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Fatalf("in-flight gauge not released: %v", got)
	}
}

func TestDecisionAndReadiness(t *testing.T) {
	Init()
	before := testutil.ToFloat64(authzDecisions.WithLabelValues("manage-roles", "denied"))
	RecordDecision("manage-roles", "denied")
	if got := testutil.ToFloat64(authzDecisions.WithLabelValues("manage-roles", "denied")); got-before != 1 {
		t.Fatalf("decision not counted: %v", got-before)
	}

	RecordJoinRequest("PENDING")
	if got := testutil.ToFloat64(joinRequests.WithLabelValues("PENDING")); got < 1 {
		t.Fatalf("join request not counted: %v", got)
	}

	SetReady(true)
	if got := testutil.ToFloat64(ready); got != 1 {
		t.Fatalf("ready=%v", got)
	}
	SetReady(false)
	if got := testutil.ToFloat64(ready); got != 0 {
		t.Fatalf("ready=%v", got)
	}
}
