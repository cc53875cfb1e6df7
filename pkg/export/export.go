// Package export ships relay activity to external brokers. Each exporter
// has the sink.Handler signature and is driven by a sink.Async queue.
package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mahaj/room-relay/pkg/model"
)

// SubjectPrefix is the NATS subject hierarchy activity is published under.
const SubjectPrefix = "chat.activity"

// Encode serialises an activity for the wire. File payloads are stripped of
// their data URL; only the file name leaves the process.
func Encode(a model.Activity) ([]byte, error) {
	if a.Message != nil && a.Message.File != nil && a.Message.File.DataURL != "" {
		m := a.Message.Clone()
		m.File.DataURL = ""
		a.Message = &m
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("export: encode %s: %w", a.Kind, err)
	}
	return b, nil
}

func Decode(b []byte) (model.Activity, error) {
	var a model.Activity
	if err := json.Unmarshal(b, &a); err != nil {
		return a, fmt.Errorf("export: decode activity: %w", err)
	}
	return a, nil
}

var subjectToken = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// Subject is the NATS subject for activity in room.
func Subject(room string) string {
	if room == "" {
		room = model.DefaultRoom
	}
	return SubjectPrefix + "." + subjectToken.Replace(room)
}
