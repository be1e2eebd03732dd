package message

import (
	"errors"
	"testing"
)

func TestChannelValid(t *testing.T) {
	for _, ch := range KnownChannels {
		if !ch.Valid() {
			t.Errorf("expected channel %q to be valid", ch)
		}
	}
	if Channel("sms").Valid() {
		t.Error("expected 'sms' to be invalid")
	}
	if Channel("").Valid() {
		t.Error("expected empty channel to be invalid")
	}
}

func TestValidate_Success(t *testing.T) {
	msg := Message{
		ID:          "msg-1",
		Channel:     ChannelHTTP,
		Destination: "https://example.com/hook",
		Data:        map[string]interface{}{"key": "value"},
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		msg       Message
		wantField string
	}{
		{
			name:      "missing id",
			msg:       Message{Channel: ChannelEmail, Destination: "a@b.com"},
			wantField: "id",
		},
		{
			name:      "missing channel",
			msg:       Message{ID: "msg-1", Destination: "a@b.com"},
			wantField: "channel",
		},
		{
			name:      "unknown channel",
			msg:       Message{ID: "msg-1", Channel: "carrier-pigeon", Destination: "a@b.com"},
			wantField: "channel",
		},
		{
			name:      "missing destination",
			msg:       Message{ID: "msg-1", Channel: ChannelInternal},
			wantField: "destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, verr.Field)
			}
		})
	}
}

func TestValidate_DataIsOptional(t *testing.T) {
	msg := Message{ID: "msg-1", Channel: ChannelInternal, Destination: "billing"}
	if err := msg.Validate(); err != nil {
		t.Fatalf("expected no error for nil data, got %v", err)
	}
}
