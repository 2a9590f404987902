package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iwanfadzly/call/platform/apperr"
)

func retellSign(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRetellInitiateCall(t *testing.T) {
	var gotAuth string
	var gotBody retellCreateCallRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"call_id": "call_abc123"})
	}))
	defer srv.Close()

	r := NewRetell(RetellConfig{
		APIKey:  "key_secret",
		AgentID: "agent_1",
		BaseURL: srv.URL,
	})

	handle, err := r.InitiateCall(context.Background(), InitiateRequest{
		LeadID:   "lead-1",
		ToNumber: "+60123456789",
		LeadName: "Aisyah",
		CallType: "SALES",
	})
	if err != nil {
		t.Fatalf("InitiateCall: %v", err)
	}

	if handle.ProviderCallID != "call_abc123" {
		t.Errorf("call id = %q, want call_abc123", handle.ProviderCallID)
	}
	if handle.Provider != "retell" {
		t.Errorf("provider = %q, want retell", handle.Provider)
	}
	if gotAuth != "Bearer key_secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.ToNumber != "+60123456789" || gotBody.AgentID != "agent_1" {
		t.Errorf("request body = %+v", gotBody)
	}
	if gotBody.Metadata["leadId"] != "lead-1" {
		t.Errorf("metadata leadId = %q", gotBody.Metadata["leadId"])
	}
}

func TestRetellInitiateCallRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid agent"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	r := NewRetell(RetellConfig{APIKey: "k", AgentID: "a", BaseURL: srv.URL})

	_, err := r.InitiateCall(context.Background(), InitiateRequest{ToNumber: "+60123456789"})
	if apperr.GetKind(err) != apperr.KindProvider {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestRetellHandleCallback(t *testing.T) {
	r := NewRetell(RetellConfig{WebhookKey: "whsec"})

	body := []byte(`{
		"callId": "call_abc123",
		"event": "call.ended",
		"data": {"duration": 125, "transcript": "hello", "recordingUrl": "https://rec/1.mp3"}
	}`)

	header := http.Header{}
	header.Set("X-Retell-Signature", retellSign("whsec", body))

	ev, err := r.HandleCallback(Callback{Header: header, Body: body})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	if ev.Kind != EventEnded {
		t.Errorf("kind = %q, want ended", ev.Kind)
	}
	if ev.ProviderCallID != "call_abc123" {
		t.Errorf("call id = %q", ev.ProviderCallID)
	}
	if ev.Duration != 125 || ev.Transcript != "hello" || ev.RecordingURL != "https://rec/1.mp3" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRetellHandleCallbackFailedEvent(t *testing.T) {
	r := NewRetell(RetellConfig{WebhookKey: "whsec"})

	body := []byte(`{"callId": "call_x", "event": "call.failed", "data": {"error": "no answer"}}`)
	header := http.Header{}
	header.Set("X-Retell-Signature", retellSign("whsec", body))

	ev, err := r.HandleCallback(Callback{Header: header, Body: body})
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if ev.Kind != EventFailed || ev.Error != "no answer" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRetellHandleCallbackBadSignature(t *testing.T) {
	r := NewRetell(RetellConfig{WebhookKey: "whsec"})

	body := []byte(`{"callId": "call_x", "event": "call.started"}`)
	header := http.Header{}
	header.Set("X-Retell-Signature", retellSign("wrong-key", body))

	_, err := r.HandleCallback(Callback{Header: header, Body: body})
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	header.Del("X-Retell-Signature")
	_, err = r.HandleCallback(Callback{Header: header, Body: body})
	if apperr.GetKind(err) != apperr.KindUnauthorized {
		t.Fatalf("expected unauthorized for missing signature, got %v", err)
	}
}

func TestRetellHandleCallbackUnknownEvent(t *testing.T) {
	r := NewRetell(RetellConfig{WebhookKey: "whsec"})

	body := []byte(`{"callId": "call_x", "event": "call.analyzed"}`)
	header := http.Header{}
	header.Set("X-Retell-Signature", retellSign("whsec", body))

	_, err := r.HandleCallback(Callback{Header: header, Body: body})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
