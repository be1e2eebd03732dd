package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muaviaUsmani/courier/internal/message"
)

func TestHTTPHandler_Success(t *testing.T) {
	var gotContentType, gotMessageID string
	var gotBody webhookBody

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotMessageID = r.Header.Get("X-Message-Id")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	handler := NewHTTPHandler()
	msg := &message.Message{
		ID:          "msg-1",
		Channel:     message.ChannelHTTP,
		Destination: server.URL,
		Data:        map[string]interface{}{"event": "created"},
		Metadata:    map[string]interface{}{"tenant": "acme"},
	}

	if err := handler.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	if gotMessageID != "msg-1" {
		t.Errorf("expected X-Message-Id header, got %q", gotMessageID)
	}
	if gotBody.ID != "msg-1" {
		t.Errorf("expected body id 'msg-1', got %q", gotBody.ID)
	}
	if gotBody.Data["event"] != "created" {
		t.Errorf("expected data to be forwarded, got %v", gotBody.Data)
	}
	if gotBody.Metadata["tenant"] != "acme" {
		t.Errorf("expected metadata to be forwarded, got %v", gotBody.Metadata)
	}
}

func TestHTTPHandler_AcceptsAny2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	handler := NewHTTPHandler()
	msg := &message.Message{ID: "msg-1", Channel: message.ChannelHTTP, Destination: server.URL}

	if err := handler.Deliver(context.Background(), msg); err != nil {
		t.Fatalf("expected 204 to succeed, got %v", err)
	}
}

func TestHTTPHandler_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	handler := NewHTTPHandler()
	msg := &message.Message{ID: "msg-1", Channel: message.ChannelHTTP, Destination: server.URL}

	if err := handler.Deliver(context.Background(), msg); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestHTTPHandler_Redirect3xxFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	handler := NewHTTPHandler()
	msg := &message.Message{ID: "msg-1", Channel: message.ChannelHTTP, Destination: server.URL}

	if err := handler.Deliver(context.Background(), msg); err == nil {
		t.Fatal("expected error for 304 response")
	}
}

func TestHTTPHandler_UnreachableDestination(t *testing.T) {
	handler := NewHTTPHandler()
	msg := &message.Message{ID: "msg-1", Channel: message.ChannelHTTP, Destination: "http://127.0.0.1:1"}

	if err := handler.Deliver(context.Background(), msg); err == nil {
		t.Fatal("expected transport error")
	}
}
