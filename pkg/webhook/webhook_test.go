package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ccollicutt/waitlens/pkg/analyzer"
	"github.com/ccollicutt/waitlens/pkg/config"
	"github.com/ccollicutt/waitlens/pkg/output"
	"github.com/ccollicutt/waitlens/pkg/stats"
	"github.com/ccollicutt/waitlens/pkg/transition"
)

func newTestReport(issues int) *output.Report {
	key := transition.Key{Source: "Register", Destination: "Approve"}
	report := &output.Report{
		RunID: "run-42",
		Summary: output.Summary{
			Metric:      stats.MetricMean,
			Transitions: 1,
			Occurrences: 10,
			Traces:      5,
			TotalIssues: issues,
		},
		Transitions: []output.TransitionReport{{Key: key, Frequency: 5, Value: 120, Samples: 5}},
		Issues:      []analyzer.Issue{},
		Metadata: output.Metadata{
			ConfigFile: "waitlens.yaml",
			Sources:    []string{"log.csv"},
			AnalyzedAt: time.Now(),
			Duration:   time.Second,
		},
	}
	for i := 0; i < issues; i++ {
		report.Issues = append(report.Issues, analyzer.Issue{
			Type:        analyzer.IssueTypeWaitExceeded,
			Check:       "max_wait",
			Transition:  key,
			Description: "mean of naive wait is 2m0s, above 1m0s",
			Value:       120,
			Limit:       60,
		})
	}
	return report
}

func TestClient_Send_Success(t *testing.T) {
	var receivedBody []byte
	var receivedContentType, receivedAuth, receivedAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedAuth = r.Header.Get("Authorization")
		receivedAgent = r.Header.Get("User-Agent")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(1), SendOptions{URL: server.URL})

	if !resp.Success() {
		t.Fatalf("expected success, got error: %v", resp.Error)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != `{"status":"ok"}` || resp.Attempts != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if receivedContentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", receivedContentType)
	}
	if receivedAuth != "" {
		t.Errorf("expected no auth header, got %s", receivedAuth)
	}
	if receivedAgent != "waitlens-webhook" {
		t.Errorf("unexpected User-Agent %q", receivedAgent)
	}

	var payload Payload
	if err := json.Unmarshal(receivedBody, &payload); err != nil {
		t.Fatalf("failed to parse received payload: %v", err)
	}
	if payload.Event != EventAnalysisCompleted || payload.RunID != "run-42" {
		t.Errorf("unexpected payload header: %+v", payload)
	}
	if payload.Summary.TotalIssues != 1 || len(payload.Issues) != 1 || len(payload.Transitions) != 1 {
		t.Errorf("unexpected payload body: %+v", payload)
	}
}

func TestClient_Send_WithBearerToken(t *testing.T) {
	var receivedAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(0), SendOptions{
		URL:   server.URL,
		Token: "secret-token-123",
	})

	if !resp.Success() {
		t.Errorf("expected success, got error: %v", resp.Error)
	}
	if receivedAuth != "Bearer secret-token-123" {
		t.Errorf("expected Bearer token, got %s", receivedAuth)
	}
}

func TestClient_Send_ServerErrorRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithRetries(2, time.Millisecond))
	resp := client.Send(context.Background(), newTestReport(0), SendOptions{URL: server.URL})

	if !resp.Success() {
		t.Fatalf("expected success after retries, got %v", resp.Error)
	}
	if resp.Attempts != 3 || calls.Load() != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3", resp.Attempts, calls.Load())
	}
}

func TestClient_Send_ServerErrorExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
	}))
	defer server.Close()

	resp := NewClient(WithRetries(1, time.Millisecond)).Send(context.Background(), newTestReport(0), SendOptions{URL: server.URL})

	if resp.Success() {
		t.Error("expected failure, got success")
	}
	if resp.StatusCode != http.StatusInternalServerError || resp.Error == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", resp.Attempts)
	}
}

func TestClient_Send_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	resp := NewClient(WithRetries(3, time.Millisecond)).Send(context.Background(), newTestReport(0), SendOptions{URL: server.URL})

	if resp.Success() || calls.Load() != 1 {
		t.Errorf("success = %v, calls = %d, want failure after 1 call", resp.Success(), calls.Load())
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp := NewClient().Send(context.Background(), newTestReport(0), SendOptions{
		URL:     server.URL,
		Timeout: 50 * time.Millisecond,
	})

	if resp.Success() || resp.Error == nil {
		t.Error("expected failure due to timeout")
	}
}

func TestClient_Send_InvalidURL(t *testing.T) {
	resp := NewClient(WithRetries(3, time.Hour)).Send(context.Background(), newTestReport(0), SendOptions{
		URL: "://invalid-url",
	})

	if resp.Success() || resp.Error == nil {
		t.Error("expected failure for invalid URL")
	}
	if resp.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", resp.Attempts)
	}
}

func TestResponse_Success(t *testing.T) {
	tests := []struct {
		name        string
		resp        Response
		wantSuccess bool
	}{
		{"200 OK", Response{StatusCode: 200}, true},
		{"204 No Content", Response{StatusCode: 204}, true},
		{"400 Bad Request", Response{StatusCode: 400}, false},
		{"500 Server Error", Response{StatusCode: 500}, false},
		{"With Error", Response{StatusCode: 200, Error: io.EOF}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Success(); got != tt.wantSuccess {
				t.Errorf("Success() = %v, want %v", got, tt.wantSuccess)
			}
		})
	}
}

func TestShouldFire(t *testing.T) {
	tests := []struct {
		trigger   config.WebhookTrigger
		hasIssues bool
		want      bool
	}{
		{config.WebhookTriggerAlways, false, true},
		{config.WebhookTriggerNever, true, false},
		{config.WebhookTriggerOnIssues, true, true},
		{config.WebhookTriggerOnIssues, false, false},
		{"", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		if got := ShouldFire(tt.trigger, tt.hasIssues); got != tt.want {
			t.Errorf("ShouldFire(%q, %v) = %v, want %v", tt.trigger, tt.hasIssues, got, tt.want)
		}
	}
}

func TestClient_Notify(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	core, logs := observer.New(zap.InfoLevel)
	client := NewClient(WithLogger(zap.New(core)))

	hooks := []config.WebhookConfig{
		{Name: "always", URL: server.URL, Trigger: config.WebhookTriggerAlways},
		{Name: "issues", URL: server.URL, Trigger: config.WebhookTriggerOnIssues},
		{Name: "never", URL: server.URL, Trigger: config.WebhookTriggerNever},
	}

	results := client.Notify(context.Background(), hooks, newTestReport(0))
	if len(results) != 1 || results[0].Name != "always" {
		t.Fatalf("results = %+v, want only the always hook", results)
	}

	results = client.Notify(context.Background(), hooks, newTestReport(2))
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if n := logs.FilterMessage("webhook sent").Len(); n != 3 {
		t.Errorf("logged %d deliveries, want 3", n)
	}
}

func TestClient_NotifyFailureIsLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	core, logs := observer.New(zap.WarnLevel)
	client := NewClient(WithLogger(zap.New(core)))

	results := client.Notify(context.Background(), []config.WebhookConfig{{URL: server.URL, Trigger: config.WebhookTriggerAlways}}, newTestReport(0))
	if len(results) != 1 || results[0].Response.Success() {
		t.Fatalf("results = %+v, want one failure", results)
	}
	if results[0].Name != server.URL {
		t.Errorf("Name = %q, want URL fallback", results[0].Name)
	}

	entries := logs.FilterMessage("webhook failed").All()
	if len(entries) != 1 || entries[0].ContextMap()["webhook"] != server.URL {
		t.Errorf("unexpected log entries: %+v", entries)
	}
}
