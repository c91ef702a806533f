package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/abdhe/bedrock-inference-function/pkg/provider"
	"github.com/abdhe/bedrock-inference-function/pkg/proxy"
)

type stubInvoker struct {
	reply string
	err   error
}

func (s stubInvoker) ModelID() string { return provider.DefaultModelID }

func (s stubInvoker) Invoke(context.Context, provider.Payload) (provider.Result, error) {
	if s.err != nil {
		return provider.Result{}, s.err
	}
	return provider.DecodeResult([]byte(s.reply))
}

func newTestServer(inv provider.Invoker) http.Handler {
	h := proxy.NewHandler(proxy.Config{Invoker: inv, Logger: zerolog.Nop()})
	return newServer(h, zerolog.Nop())
}

func postInvoke(t *testing.T, srv http.Handler, body string) (*httptest.ResponseRecorder, proxy.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp proxy.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, rec.Body.String())
	}
	return rec, resp
}

func TestInvoke_Success(t *testing.T) {
	srv := newTestServer(stubInvoker{reply: `{"content":[{"type":"text","text":"hello"}],"usage":{"input_tokens":3,"output_tokens":1}}`})

	rec, resp := postInvoke(t, srv, `{"prompt":"hi"}`)

	if rec.Code != http.StatusOK || resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d / %d, want 200", rec.Code, resp.StatusCode)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(resp.Body), &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body["response"] != "hello" || body["model"] != provider.DefaultModelID {
		t.Errorf("body = %v", body)
	}
}

func TestInvoke_StatusMirrorsEnvelope(t *testing.T) {
	tests := []struct {
		name string
		inv  provider.Invoker
		body string
		want int
	}{
		{name: "missing prompt", inv: stubInvoker{}, body: `{}`, want: http.StatusBadRequest},
		{name: "empty body", inv: stubInvoker{}, body: ``, want: http.StatusBadRequest},
		{name: "malformed", inv: stubInvoker{}, body: `{"prompt":`, want: http.StatusInternalServerError},
		{
			name: "service error",
			inv:  stubInvoker{err: &provider.ServiceError{Code: "ThrottlingException", Message: "Rate exceeded"}},
			body: `{"prompt":"hi"}`,
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := postInvoke(t, newTestServer(tt.inv), tt.body)
			if rec.Code != tt.want || resp.StatusCode != tt.want {
				t.Errorf("status = %d / %d, want %d", rec.Code, resp.StatusCode, tt.want)
			}
		})
	}
}

func TestPingAndMetrics(t *testing.T) {
	srv := newTestServer(stubInvoker{})

	for _, path := range []string{"/ping", "/metrics"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetrics_ExposesHandlerSeries(t *testing.T) {
	srv := newTestServer(stubInvoker{})
	postInvoke(t, srv, `{}`)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bedrock_requests_total") {
		t.Error("metrics output should include bedrock_requests_total")
	}
}
