package core

import (
	"fmt"
	"testing"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	hub := NewHub(HubConfig{})

	sender := NewClient("sender", 0)
	hub.Presence().Join("user_sender", sender, "bench")
	sender.userID = "user_sender"
	go func() {
		for range sender.Events {
		}
	}()

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i), 0)
		hub.Presence().Join(fmt.Sprintf("user_%d", i), c, "bench")
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid queue backpressure.
	target := clients[0]
	for _, c := range clients[1:] {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		hub.broadcaster.EmitToRoom("bench", &Event{
			Kind:    EventReceiveMessage,
			Room:    "bench",
			Message: Message{SenderID: sender.userID, Text: "payload"},
		}, nil)
		<-target.Events
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
