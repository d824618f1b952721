package http

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/proto"
	"github.com/vovakirdan/anonchat-server/internal/store"
)

func TestInboundToCommand(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    core.Command
		wantErr bool
	}{
		{
			name:  "register",
			frame: `{"event":"registerUser","data":{"deviceId":"dev1"}}`,
			want:  core.Command{Kind: core.CommandRegister, DeviceID: "dev1"},
		},
		{
			name:  "join",
			frame: `{"event":"joinRoom","data":{"senderId":"user_a","receiverId":"global_chat_room"}}`,
			want:  core.Command{Kind: core.CommandJoinRoom, SenderID: "user_a", ReceiverID: core.GlobalRoom},
		},
		{
			name:  "message with image",
			frame: `{"event":"sendMessage","data":{"senderId":"user_a","receiverId":"user_b","message":"hey","image":"http://x/y.png"}}`,
			want:  core.Command{Kind: core.CommandSendMessage, SenderID: "user_a", ReceiverID: "user_b", Text: "hey", Image: "http://x/y.png"},
		},
		{name: "unknown event", frame: `{"event":"shout","data":{}}`, wantErr: true},
		{name: "missing data", frame: `{"event":"registerUser"}`, wantErr: true},
		{name: "wrong type", frame: `{"event":"registerUser","data":{"deviceId":42}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inbound proto.Inbound
			if err := json.Unmarshal([]byte(tt.frame), &inbound); err != nil {
				t.Fatalf("unmarshal frame: %v", err)
			}
			cmd, err := inboundToCommand(inbound)
			if tt.wantErr {
				if !errors.Is(err, core.ErrMalformedPayload) {
					t.Fatalf("expected ErrMalformedPayload, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *cmd != tt.want {
				t.Fatalf("unexpected command: %+v", cmd)
			}
		})
	}
}

func TestInboundAudioDuration(t *testing.T) {
	inbound := proto.Inbound{
		Event: proto.EventSendAudioMessage,
		Data:  json.RawMessage(`{"senderId":"user_a","receiverId":"global_chat_room","audioData":"AAAA","audioDuration":1234.6,"fileName":"a.ogg"}`),
	}
	cmd, err := inboundToCommand(inbound)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cmd.Audio == nil || cmd.Audio.DurationMs != 1235 || cmd.Audio.FileName != "a.ogg" || cmd.Audio.Data != "AAAA" {
		t.Fatalf("unexpected audio payload: %+v", cmd.Audio)
	}
}

func TestOutboundHistoryShape(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 5e8, time.UTC)
	out := outboundFromEvent(&core.Event{
		Kind: core.EventHistory,
		Room: core.GlobalRoom,
		Messages: []core.Message{
			{ID: 1, Room: core.GlobalRoom, SenderID: "user_a", Kind: store.EventKindText, Text: "hi", CreatedAt: ts},
		},
	})

	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"chatHistory","data":{"room":"global_chat_room","messages":[{"id":1,"room":"global_chat_room","senderId":"user_a","kind":"text","text":"hi","timestamp":"2024-05-01T10:00:00.500Z"}]}}`
	if string(raw) != want {
		t.Fatalf("unexpected frame:\n got %s\nwant %s", raw, want)
	}
}

func TestOutboundErrorNotice(t *testing.T) {
	out := outboundFromEvent(&core.Event{
		Kind:  core.EventError,
		Error: &core.CoreError{Code: core.ErrCodeRegisterFailed, Message: "Failed to register user"},
	})
	raw, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"error","data":{"message":"Failed to register user","code":"register_failed"}}`
	if string(raw) != want {
		t.Fatalf("unexpected frame: %s", raw)
	}
}
