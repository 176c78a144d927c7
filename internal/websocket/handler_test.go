package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"kirana/internal/modules/notify"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

func TestParseTopics(t *testing.T) {
	all, ok := ParseTopics("")
	if !ok || len(all) != 2 {
		t.Fatalf("empty topics = %v", all)
	}
	one, ok := ParseTopics(" drivers ")
	if !ok || len(one) != 1 || one[0] != notify.TopicDrivers {
		t.Fatalf("drivers = %v", one)
	}
	if _, ok := ParseTopics("drivers,orders"); ok {
		t.Fatalf("unknown topic accepted")
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := notify.NewHub()
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/api/events", Handler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events?topics=drivers"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	notify.NewFanout(hub, nil).PublishDriver(ctx, types.ChangeUpdate, &presence.Driver{ID: "d1", Online: true}, nil)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	e, err := notify.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ch, err := e.Drivers()
	if err != nil || ch.New.ID != "d1" {
		t.Fatalf("change = %+v (%v)", ch, err)
	}
}
