package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestPresenceJoinReplacesChannelMembership(t *testing.T) {
	p := NewPresence()
	c := NewClient("c1", 1)

	if displaced := p.Join("user_a", c, GlobalRoom); len(displaced) != 0 {
		t.Fatalf("unexpected displaced memberships: %+v", displaced)
	}
	displaced := p.Join("user_a", c, "room-2")
	if len(displaced) != 1 || displaced[0].Room != GlobalRoom {
		t.Fatalf("expected global membership displaced, got %+v", displaced)
	}

	if len(p.MembersOf(GlobalRoom)) != 0 {
		t.Fatalf("channel still listed in previous room")
	}
	if m, ok := p.Lookup("c1"); !ok || m.Room != "room-2" || m.UserID != "user_a" {
		t.Fatalf("unexpected membership: %+v", m)
	}
	if p.Count() != 1 || p.RoomCount() != 1 {
		t.Fatalf("unexpected counts: %d channels, %d rooms", p.Count(), p.RoomCount())
	}
}

func TestPresenceLatestChannelWinsForUser(t *testing.T) {
	p := NewPresence()
	first := NewClient("first", 1)
	second := NewClient("second", 1)

	p.Join("user_a", first, GlobalRoom)
	displaced := p.Join("user_a", second, GlobalRoom)
	if len(displaced) != 1 || displaced[0].Client != first {
		t.Fatalf("expected first channel displaced, got %+v", displaced)
	}
	if _, ok := p.Lookup("first"); ok {
		t.Fatalf("first channel still present")
	}
	members := p.MembersOf(GlobalRoom)
	if len(members) != 1 || members[0] != second {
		t.Fatalf("unexpected members: %+v", members)
	}
}

func TestPresenceLeave(t *testing.T) {
	p := NewPresence()
	c := NewClient("c1", 1)
	p.Join("user_a", c, GlobalRoom)

	m, ok := p.Leave("c1")
	if !ok || m.UserID != "user_a" {
		t.Fatalf("unexpected leave result: %+v %v", m, ok)
	}
	if _, ok := p.Leave("c1"); ok {
		t.Fatalf("second leave must report no membership")
	}
	if p.Count() != 0 || p.RoomCount() != 0 {
		t.Fatalf("presence not empty after leave")
	}
}

func TestPresenceMembersOfIsSnapshot(t *testing.T) {
	p := NewPresence()
	p.Join("user_a", NewClient("a", 1), GlobalRoom)

	members := p.MembersOf(GlobalRoom)
	p.Join("user_b", NewClient("b", 1), GlobalRoom)
	if len(members) != 1 {
		t.Fatalf("snapshot changed after join: %d", len(members))
	}
}

func TestPresenceConcurrentJoinAndLeave(t *testing.T) {
	p := NewPresence()

	const n = 100
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(fmt.Sprintf("c%d", i), 1)
			p.Join(fmt.Sprintf("user_%d", i), c, GlobalRoom)
			_ = p.MembersOf(GlobalRoom)
		}(i)
	}
	wg.Wait()

	if got := len(p.MembersOf(GlobalRoom)); got != n {
		t.Fatalf("expected %d members, got %d", n, got)
	}

	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Leave(fmt.Sprintf("c%d", i))
		}(i)
	}
	wg.Wait()

	if p.Count() != 0 {
		t.Fatalf("expected empty presence, got %d", p.Count())
	}
}

func TestRoomID(t *testing.T) {
	tests := []struct {
		user, target, want string
	}{
		{"user_b", GlobalRoom, GlobalRoom},
		{"user_a", "user_b", "user_a_user_b"},
		{"user_b", "user_a", "user_a_user_b"},
		{"user_a", "user_a", "user_a_user_a"},
	}
	for _, tt := range tests {
		if got := RoomID(tt.user, tt.target); got != tt.want {
			t.Errorf("RoomID(%q, %q) = %q, want %q", tt.user, tt.target, got, tt.want)
		}
	}
}

func TestBroadcasterSkipsFullQueues(t *testing.T) {
	p := NewPresence()
	b := NewBroadcaster(p, nil)

	slow := NewClient("slow", 1)
	fast := NewClient("fast", 4)
	p.Join("user_slow", slow, GlobalRoom)
	p.Join("user_fast", fast, GlobalRoom)

	ev := &Event{Kind: EventReceiveMessage, Room: GlobalRoom}
	if got := b.EmitToRoom(GlobalRoom, ev, nil); got != 2 {
		t.Fatalf("expected 2 deliveries, got %d", got)
	}
	if got := b.EmitToRoom(GlobalRoom, ev, nil); got != 1 {
		t.Fatalf("expected 1 delivery with a full queue, got %d", got)
	}

	select {
	case <-slow.Stalled():
	default:
		t.Fatalf("slow client not flagged stalled")
	}
	select {
	case <-fast.Stalled():
		t.Fatalf("fast client flagged stalled")
	default:
	}
	if len(fast.Events) != 2 {
		t.Fatalf("fast client missed events: %d queued", len(fast.Events))
	}
}

func TestBroadcasterExcludesClient(t *testing.T) {
	p := NewPresence()
	b := NewBroadcaster(p, nil)

	a := NewClient("a", 2)
	other := NewClient("other", 2)
	p.Join("user_a", a, GlobalRoom)
	p.Join("user_o", other, GlobalRoom)

	b.EmitToRoom(GlobalRoom, &Event{Kind: EventUserJoined, User: "user_a"}, a)
	if len(a.Events) != 0 || len(other.Events) != 1 {
		t.Fatalf("unexpected queue lengths: a=%d other=%d", len(a.Events), len(other.Events))
	}
}
