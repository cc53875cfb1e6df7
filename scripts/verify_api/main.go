package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// verify_api sends one message through a running gateway and checks that it
// shows up in the REST history.
func main() {
	gateway := flag.String("gateway", "localhost:8080", "gateway address")
	room := flag.String("room", "global", "room to test")
	flag.Parse()

	ws := url.URL{Scheme: "ws", Host: *gateway, Path: "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(ws.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	text := fmt.Sprintf("verify %d", time.Now().UnixNano())
	send := func(event string, data any, ack int) {
		if err := c.WriteJSON(map[string]any{"event": event, "data": data, "ack": ack}); err != nil {
			log.Fatal("write:", err)
		}
	}
	send("user_join", "verify_api", 1)
	send("join_room", *room, 2)
	send("send_message", map[string]string{"message": text, "room": *room}, 3)

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var f struct {
			Event string          `json:"event"`
			Ack   int             `json:"ack"`
			Data  json.RawMessage `json:"data"`
		}
		if err := c.ReadJSON(&f); err != nil {
			log.Fatal("waiting for ack:", err)
		}
		if f.Event == "ack" && f.Ack == 3 {
			log.Printf("Ack: %s", f.Data)
			break
		}
	}

	history := url.URL{Scheme: "http", Host: *gateway, Path: "/api/messages"}
	q := history.Query()
	q.Set("room", *room)
	q.Set("limit", "5")
	history.RawQuery = q.Encode()

	resp, err := http.Get(history.String())
	if err != nil {
		log.Fatal("History request failed:", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("History: %s", string(body))

	var page struct {
		Items []struct {
			Message string `json:"message"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		log.Fatal("decode history:", err)
	}
	for _, m := range page.Items {
		if m.Message == text {
			log.Println("OK: message found in history")
			return
		}
	}
	log.Fatal("message not found in history")
}
