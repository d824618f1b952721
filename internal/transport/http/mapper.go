package http

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/proto"
)

// timestampLayout matches what browsers produce for Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func inboundToCommand(inbound proto.Inbound) (*core.Command, error) {
	switch inbound.Event {
	case proto.EventRegisterUser:
		var data proto.RegisterUserData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandRegister, DeviceID: data.DeviceID}, nil
	case proto.EventJoinRoom:
		var data proto.JoinRoomData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:       core.CommandJoinRoom,
			SenderID:   data.SenderID,
			ReceiverID: data.ReceiverID,
		}, nil
	case proto.EventSendMessage:
		var data proto.SendMessageData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:       core.CommandSendMessage,
			SenderID:   data.SenderID,
			ReceiverID: data.ReceiverID,
			Text:       data.Message,
			Image:      data.Image,
		}, nil
	case proto.EventSendAudioMessage:
		var data proto.SendAudioData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		if math.IsNaN(data.AudioDuration) || math.IsInf(data.AudioDuration, 0) {
			return nil, fmt.Errorf("%w: invalid audio duration", core.ErrMalformedPayload)
		}
		return &core.Command{
			Kind:       core.CommandSendAudio,
			SenderID:   data.SenderID,
			ReceiverID: data.ReceiverID,
			Audio: &core.AudioPayload{
				Data:       data.AudioData,
				DurationMs: int64(math.Round(data.AudioDuration)),
				FileName:   data.FileName,
			},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown event %q", core.ErrMalformedPayload, inbound.Event)
	}
}

func decodeData(inbound proto.Inbound, v any) error {
	if len(inbound.Data) == 0 {
		return fmt.Errorf("%w: %s without data", core.ErrMalformedPayload, inbound.Event)
	}
	if err := json.Unmarshal(inbound.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrMalformedPayload, inbound.Event, err)
	}
	return nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserRegistered:
		return proto.Outbound{
			Event: proto.EventUserRegistered,
			Data:  proto.UserRegisteredData{UserID: event.User},
		}
	case core.EventHistory:
		messages := make([]proto.ChatEvent, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, chatEventFromMessage(msg))
		}
		return proto.Outbound{
			Event: proto.EventChatHistory,
			Data:  proto.ChatHistoryData{Room: event.Room, Messages: messages},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Event: proto.EventUserJoined,
			Data:  proto.UserPresenceData{UserID: event.User},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Event: proto.EventUserLeft,
			Data:  proto.UserPresenceData{UserID: event.User},
		}
	case core.EventReceiveMessage:
		return proto.Outbound{
			Event: proto.EventReceiveMessage,
			Data: proto.ReceiveMessageData{
				SenderID:  event.Message.SenderID,
				Timestamp: formatTimestamp(event.Message.CreatedAt),
				Message:   event.Message.Text,
				Image:     event.Message.Image,
			},
		}
	case core.EventReceiveAudio:
		return proto.Outbound{
			Event: proto.EventReceiveAudioMessage,
			Data: proto.ReceiveAudioData{
				SenderID:      event.Message.SenderID,
				Timestamp:     formatTimestamp(event.Message.CreatedAt),
				AudioURL:      event.Message.AudioURL,
				AudioDuration: event.Message.AudioDurationMs,
				FileName:      event.Message.FileName,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Event: proto.EventError, Data: proto.ErrorData{Message: "unknown error"}}
		}
		return proto.Outbound{
			Event: proto.EventError,
			Data:  proto.ErrorData{Message: event.Error.Message, Code: event.Error.Code},
		}
	default:
		return proto.Outbound{Event: proto.EventError, Data: proto.ErrorData{Message: "unknown event"}}
	}
}

func chatEventFromMessage(msg core.Message) proto.ChatEvent {
	return proto.ChatEvent{
		ID:            msg.ID,
		Room:          msg.Room,
		SenderID:      msg.SenderID,
		Kind:          string(msg.Kind),
		Text:          msg.Text,
		Image:         msg.Image,
		AudioURL:      msg.AudioURL,
		AudioDuration: msg.AudioDurationMs,
		FileName:      msg.FileName,
		Timestamp:     formatTimestamp(msg.CreatedAt),
	}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
