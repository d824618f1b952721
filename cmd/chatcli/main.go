package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/proto"
	"github.com/vovakirdan/anonchat-server/internal/utils"
)

type options struct {
	addr   string
	device string
	to     string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "chatcli: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:           "chatcli",
		Short:         "Terminal client for the anonchat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.device == "" {
				opts.device = "cli-" + utils.NewID()
			}
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.addr, "addr", "ws://localhost:3000/ws", "WebSocket address")
	flags.StringVar(&opts.device, "device", "", "device id (random when empty)")
	flags.StringVar(&opts.to, "to", core.GlobalRoom, "user id to chat with, or the shared room")

	cmd.AddCommand(newSmokeCmd(&opts))
	return cmd
}

func run(parent context.Context, opts options) error {
	baseCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

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

	if err := send(ctx, conn, proto.EventJoinRoom, proto.JoinRoomData{SenderID: userID, ReceiverID: opts.to}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s, chatting in %s\n", opts.addr, userID, core.RoomID(userID, opts.to))
	fmt.Println("Type messages and press Enter to send. /audio <file> sends a clip, /image <url> an image. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, userID, opts.to)
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Event: event, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func awaitRegistration(ctx context.Context, conn *websocket.Conn) (string, error) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			return "", fmt.Errorf("await registration: %w", err)
		}
		switch f.Event {
		case proto.EventUserRegistered:
			var data proto.UserRegisteredData
			if err := json.Unmarshal(f.Data, &data); err != nil {
				return "", fmt.Errorf("decode registration: %w", err)
			}
			return data.UserID, nil
		case proto.EventError:
			var data proto.ErrorData
			_ = json.Unmarshal(f.Data, &data)
			return "", fmt.Errorf("registration failed: %s", data.Message)
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			fmt.Fprintf(os.Stderr, "read error: %v\n", err)
			return
		}
		if err := printFrame(f); err != nil {
			fmt.Fprintf(os.Stderr, "decode %s: %v\n", f.Event, err)
		}
	}
}

func printFrame(f frame) error {
	switch f.Event {
	case proto.EventChatHistory:
		var data proto.ChatHistoryData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return err
		}
		for _, msg := range data.Messages {
			switch {
			case msg.AudioURL != "":
				fmt.Printf("%s %s: [audio %dms] %s\n", msg.Timestamp, msg.SenderID, msg.AudioDuration, msg.AudioURL)
			default:
				fmt.Printf("%s %s: %s\n", msg.Timestamp, msg.SenderID, msg.Text)
			}
		}
	case proto.EventReceiveMessage:
		var data proto.ReceiveMessageData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return err
		}
		if data.Message != "" {
			fmt.Printf("%s %s: %s\n", data.Timestamp, data.SenderID, data.Message)
		}
		if data.Image != "" {
			fmt.Printf("%s %s: [image] %s\n", data.Timestamp, data.SenderID, data.Image)
		}
	case proto.EventReceiveAudioMessage:
		var data proto.ReceiveAudioData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return err
		}
		fmt.Printf("%s %s: [audio %dms] %s\n", data.Timestamp, data.SenderID, data.AudioDuration, data.AudioURL)
	case proto.EventUserJoined, proto.EventUserLeft:
		var data proto.UserPresenceData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return err
		}
		verb := "joined"
		if f.Event == proto.EventUserLeft {
			verb = "left"
		}
		fmt.Printf("* %s %s\n", data.UserID, verb)
	case proto.EventError:
		var data proto.ErrorData
		if err := json.Unmarshal(f.Data, &data); err != nil {
			return err
		}
		fmt.Printf("! %s\n", data.Message)
	default:
		fmt.Printf("event=%s data=%s\n", f.Event, f.Data)
	}
	return nil
}

func writeLoop(ctx context.Context, conn *websocket.Conn, userID, to string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			var err error
			switch {
			case strings.HasPrefix(text, "/audio "):
				err = sendAudio(ctx, conn, userID, to, strings.TrimSpace(strings.TrimPrefix(text, "/audio ")))
			case strings.HasPrefix(text, "/image "):
				err = send(ctx, conn, proto.EventSendMessage, proto.SendMessageData{
					SenderID:   userID,
					ReceiverID: to,
					Image:      strings.TrimSpace(strings.TrimPrefix(text, "/image ")),
				})
			default:
				err = send(ctx, conn, proto.EventSendMessage, proto.SendMessageData{
					SenderID:   userID,
					ReceiverID: to,
					Message:    text,
				})
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

func sendAudio(ctx context.Context, conn *websocket.Conn, userID, to, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}
	return send(ctx, conn, proto.EventSendAudioMessage, proto.SendAudioData{
		SenderID:   userID,
		ReceiverID: to,
		AudioData:  base64.StdEncoding.EncodeToString(data),
		FileName:   filepath.Base(path),
	})
}
