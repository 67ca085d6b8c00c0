package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestLogWritesJSONLine(t *testing.T) {
	buf := captureLog(t)
	Log(Fields{Service: "api", OrderID: "o-1", Step: "cancel", Status: "ok"})

	var got map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got); err != nil {
		t.Fatalf("not json: %v (%s)", err, buf.String())
	}
	if got["service"] != "api" || got["order_id"] != "o-1" || got["step"] != "cancel" {
		t.Fatalf("unexpected fields: %v", got)
	}
	if _, ok := got["timestamp"]; !ok {
		t.Fatalf("missing timestamp")
	}
	if _, ok := got["user_id"]; ok {
		t.Fatalf("empty fields should be omitted")
	}
}

func TestErr(t *testing.T) {
	buf := captureLog(t)
	Err("projector", "decode", errors.New("boom"))
	if !strings.Contains(buf.String(), `"error":"boom"`) {
		t.Fatalf("error not logged: %s", buf.String())
	}
}
