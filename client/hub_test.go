package client

import (
	"testing"

	offlinecache "github.com/anapath-lab/offline-cache"
)

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	_, ch1 := hub.Subscribe("/dashboard")
	_, ch2 := hub.Subscribe("/patients")

	hub.Broadcast(offlinecache.Message{Type: offlinecache.MsgUpdateAvailable, Version: "2"})

	for _, ch := range []<-chan offlinecache.Message{ch1, ch2} {
		msg := <-ch
		if msg.Type != offlinecache.MsgUpdateAvailable || msg.Version != "2" {
			t.Fatalf("Message is %+v", msg)
		}
	}
}

func TestPostTargetsSingleClient(t *testing.T) {
	hub := NewHub()
	info1, ch1 := hub.Subscribe("/a")
	_, ch2 := hub.Subscribe("/b")

	if err := hub.Post(info1.ID, offlinecache.Message{Type: offlinecache.MsgNotification}); err != nil {
		t.Fatal(err)
	}

	if msg := <-ch1; msg.Type != offlinecache.MsgNotification {
		t.Fatalf("Message is %+v", msg)
	}
	select {
	case msg := <-ch2:
		t.Fatalf("Unexpected message %+v", msg)
	default:
	}
}

func TestPostToUnknownClient(t *testing.T) {
	hub := NewHub()
	if err := hub.Post("nope", offlinecache.Message{Type: offlinecache.MsgFocus}); err == nil {
		t.Fatal("Expected error for unknown client")
	}
}

func TestFocusSendsControlMessage(t *testing.T) {
	hub := NewHub()
	info, ch := hub.Subscribe("/dashboard")

	if err := hub.Focus(info.ID); err != nil {
		t.Fatal(err)
	}
	if msg := <-ch; msg.Type != offlinecache.MsgFocus {
		t.Fatalf("Message is %+v", msg)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	info, ch := hub.Subscribe("/dashboard")
	hub.Unsubscribe(info.ID)

	if _, ok := <-ch; ok {
		t.Fatal("Channel still open after unsubscribe")
	}
	clients, _ := hub.Clients()
	if len(clients) != 0 {
		t.Fatalf("Clients: %v", clients)
	}
}

func TestSlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	hub.Subscribe("/slow")

	// fill the buffer and then some; none of these may block
	for i := 0; i < messageBuffer*2; i++ {
		hub.Broadcast(offlinecache.Message{Type: offlinecache.MsgNotification})
	}
}
