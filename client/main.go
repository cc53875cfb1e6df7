package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"mime"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mahaj/room-relay/pkg/model"
)

type frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type session struct {
	conn *websocket.Conn
	mu   sync.Mutex
	ack  int64
	room string
}

func (s *session) emit(event string, data any, wantAck bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f := frame{Event: event, Data: raw}

	s.mu.Lock()
	defer s.mu.Unlock()
	if wantAck {
		s.ack++
		id := s.ack
		f.Ack = &id
	}
	return s.conn.WriteJSON(f)
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "gateway address")
	name := flag.String("name", "", "display name")
	room := flag.String("room", model.DefaultRoom, "room to join")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	s := &session{conn: c, room: *room}
	if *name != "" {
		if err := s.emit(model.EventUserJoin, *name, true); err != nil {
			log.Fatal("announce:", err)
		}
	}
	if *room != model.DefaultRoom {
		if err := s.emit(model.EventJoinRoom, *room, true); err != nil {
			log.Fatal("join:", err)
		}
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			var f frame
			if err := json.Unmarshal(message, &f); err != nil {
				log.Printf("Received raw: %s", message)
				continue
			}
			render(f)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if text == "/quit" {
				interrupt <- os.Interrupt
				return
			}
			if err := s.command(text); err != nil {
				log.Println("write:", err)
				return
			}
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			log.Println("interrupt")

			// Cleanly close the connection by sending a close message and then
			// waiting (with timeout) for the server to close the connection.
			s.mu.Lock()
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			s.mu.Unlock()
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

// command turns one input line into an event. Plain text is a room message.
func (s *session) command(text string) error {
	if !strings.HasPrefix(text, "/") {
		return s.emit(model.EventSendMessage, model.SendMessageRequest{Message: text, Room: s.room}, true)
	}
	cmd, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/name":
		return s.emit(model.EventUserJoin, rest, true)
	case "/join":
		s.room = rest
		if s.room == "" {
			s.room = model.DefaultRoom
		}
		return s.emit(model.EventJoinRoom, s.room, true)
	case "/typing":
		return s.emit(model.EventTyping, model.TypingRequest{IsTyping: true, Room: s.room}, false)
	case "/stop":
		return s.emit(model.EventTyping, model.TypingRequest{IsTyping: false, Room: s.room}, false)
	case "/pm":
		to, msg, _ := strings.Cut(rest, " ")
		return s.emit(model.EventPrivateMessage, model.PrivateMessageRequest{ToSocketID: to, Message: msg}, true)
	case "/react":
		id, reaction, _ := strings.Cut(rest, " ")
		return s.emit(model.EventReaction, model.ReactionRequest{MessageID: id, Room: s.room, Reaction: reaction}, true)
	case "/read":
		return s.emit(model.EventRead, model.ReadRequest{MessageID: rest, Room: s.room}, false)
	case "/file":
		req, err := fileRequest(rest, s.room)
		if err != nil {
			fmt.Printf("\rcannot send file: %v\n", err)
			return nil
		}
		return s.emit(model.EventFileMessage, req, true)
	default:
		fmt.Printf("\rcommands: /name N, /join R, /typing, /stop, /pm ID TEXT, /react ID R, /read ID, /file PATH, /quit\n")
		return nil
	}
}

func fileRequest(path, room string) (model.FileMessageRequest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.FileMessageRequest{}, err
	}
	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return model.FileMessageRequest{
		DataURL:  "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(b),
		Filename: filepath.Base(path),
		Room:     room,
	}, nil
}

func render(f frame) {
	switch f.Event {
	case model.EventReceiveMessage, model.EventPrivateMessage:
		var m model.Message
		if json.Unmarshal(f.Data, &m) != nil {
			return
		}
		prefix := "[" + m.Room + "]"
		if m.IsPrivate {
			prefix = "[pm]"
		}
		if m.IsFile && m.File != nil {
			fmt.Printf("\r%s %s sent file %s (%s)\n> ", prefix, m.Sender, m.File.Filename, m.ID)
		} else {
			fmt.Printf("\r%s %s: %s (%s)\n> ", prefix, m.Sender, m.Text, m.ID)
		}
	case model.EventUserList:
		var ps []model.Participant
		if json.Unmarshal(f.Data, &ps) != nil {
			return
		}
		names := make([]string, 0, len(ps))
		for _, p := range ps {
			names = append(names, fmt.Sprintf("%s(%s@%s)", p.Username, p.ID, p.CurrentRoom))
		}
		fmt.Printf("\rusers: %s\n> ", strings.Join(names, ", "))
	case model.EventUserJoined, model.EventUserLeft:
		var n model.UserNotice
		if json.Unmarshal(f.Data, &n) != nil {
			return
		}
		verb := "joined"
		if f.Event == model.EventUserLeft {
			verb = "left"
		}
		fmt.Printf("\r%s %s\n> ", n.Username, verb)
	case model.EventTypingUsers:
		var names []string
		if json.Unmarshal(f.Data, &names) != nil || len(names) == 0 {
			return
		}
		fmt.Printf("\r%s typing...\n> ", strings.Join(names, ", "))
	case model.EventReaction:
		var r model.ReactionUpdate
		if json.Unmarshal(f.Data, &r) == nil {
			fmt.Printf("\r%s on %s: %d\n> ", r.Reaction, r.MessageID, len(r.Reactors))
		}
	case model.EventRead:
		var r model.ReadReceipt
		if json.Unmarshal(f.Data, &r) == nil {
			fmt.Printf("\r%s read by %s\n> ", r.MessageID, r.ReaderID)
		}
	case model.EventAck:
		var a model.Ack
		if json.Unmarshal(f.Data, &a) == nil && !a.OK {
			fmt.Printf("\rrequest failed: %s\n> ", a.Error)
		}
	}
}
