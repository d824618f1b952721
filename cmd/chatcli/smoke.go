package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/anonchat-server/internal/proto"
	"github.com/vovakirdan/anonchat-server/internal/utils"
)

func newSmokeCmd(opts *options) *cobra.Command {
	var (
		text    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Register, join, send one message and wait for its echo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.device == "" {
				opts.device = "smoke-" + utils.NewID()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return smoke(ctx, *opts, text)
		},
	}

	cmd.Flags().StringVar(&text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func smoke(ctx context.Context, opts options, text string) error {
	conn, _, err := websocket.Dial(ctx, opts.addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")
	conn.SetReadLimit(-1)

	if err := send(ctx, conn, proto.EventRegisterUser, proto.RegisterUserData{DeviceID: opts.device}); err != nil {
		return err
	}
	userID, err := awaitRegistration(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Printf("registered as %s\n", userID)

	if err := send(ctx, conn, proto.EventJoinRoom, proto.JoinRoomData{SenderID: userID, ReceiverID: opts.to}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.EventSendMessage, proto.SendMessageData{SenderID: userID, ReceiverID: opts.to, Message: text}); err != nil {
		return err
	}

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		switch f.Event {
		case proto.EventChatHistory:
			var data proto.ChatHistoryData
			if err := json.Unmarshal(f.Data, &data); err != nil {
				return fmt.Errorf("decode history: %w", err)
			}
			fmt.Printf("joined %s with %d messages of history\n", data.Room, len(data.Messages))
		case proto.EventReceiveMessage:
			var data proto.ReceiveMessageData
			if err := json.Unmarshal(f.Data, &data); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			if data.SenderID == userID && data.Message == text {
				fmt.Printf("echo received at %s\n", data.Timestamp)
				return nil
			}
		case proto.EventError:
			var data proto.ErrorData
			_ = json.Unmarshal(f.Data, &data)
			return fmt.Errorf("server error: %s", data.Message)
		}
	}
}
