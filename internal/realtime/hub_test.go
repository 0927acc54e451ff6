package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/huddleapp/huddle/internal/model"
)

func TestSlowClientDropThenUnregister(t *testing.T) {
	hub := NewHub(nil, nil)
	client := NewClient(hub, nil, uuid.New(), "Alice")
	hub.addClient(client)

	// Saturate the send buffer so the next delivery drops the client
	for i := 0; i < cap(client.send); i++ {
		client.send <- []byte("{}")
	}
	hub.sendToLocalUser(client.UserID, &model.Event{Type: "ping"})

	// The read pump's unregister races the drop in production; it must not
	// close the channel a second time
	hub.removeClient(client)

	if hub.IsUserOnline(client.UserID) {
		t.Fatal("dropped client should leave no connections behind")
	}
}

func TestSendToLocalUserDeliversToEveryConnection(t *testing.T) {
	hub := NewHub(nil, nil)
	userID := uuid.New()
	tab := NewClient(hub, nil, userID, "Alice")
	phone := NewClient(hub, nil, userID, "Alice")
	hub.addClient(tab)
	hub.addClient(phone)

	hub.sendToLocalUser(userID, &model.Event{Type: "ping"})

	for name, c := range map[string]*Client{"tab": tab, "phone": phone} {
		select {
		case <-c.send:
		default:
			t.Fatalf("%s connection received nothing", name)
		}
	}
}

func TestRemoveLastConnectionMarksOffline(t *testing.T) {
	statusCh := make(chan bool, 2)
	hub := NewHub(nil, func(_ uuid.UUID, online bool) {
		statusCh <- online
	})

	userID := uuid.New()
	first := NewClient(hub, nil, userID, "Alice")
	second := NewClient(hub, nil, userID, "Alice")

	hub.addClient(first)
	if online := <-statusCh; !online {
		t.Fatal("first connection should report online")
	}
	hub.addClient(second)

	// Dropping one of two connections keeps the user online
	hub.removeClient(first)
	if !hub.IsUserOnline(userID) {
		t.Fatal("user should stay online with a connection left")
	}

	hub.removeClient(second)
	if online := <-statusCh; online {
		t.Fatal("last disconnect should report offline")
	}
	if hub.IsUserOnline(userID) {
		t.Fatal("user should read offline with no connections")
	}
}
