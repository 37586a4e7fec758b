package services

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

var (
	nc *nats.Conn
	js nats.JetStreamContext
)

// Lifecycle subjects published by the handlers.
const (
	SubjectFileUploaded  = "files.uploaded"
	SubjectFileDuplicate = "files.duplicate"
	SubjectFileReleased  = "files.released"
	SubjectFileDeleted   = "files.deleted"
)

// ConnectNATS connects to NATS and initializes JetStream and streams.
// It returns the underlying Conn and JetStreamContext for advanced usage.
func ConnectNATS(url string) (*nats.Conn, nats.JetStreamContext, error) {
	if nc != nil && nc.IsConnected() {
		return nc, js, nil
	}

	opts := []nats.Option{
		nats.Name("dedup-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("[NATS] connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, err
	}
	nc = conn

	jsCtx, err := nc.JetStream()
	if err != nil {
		nc.Close()
		nc = nil
		return nil, nil, err
	}
	js = jsCtx

	if err := ensureStreams(); err != nil {
		log.Printf("[NATS] warning: failed to ensure streams: %v", err)
	}

	log.Println("[NATS] connected and JetStream initialized")
	return nc, js, nil
}

// ensureStreams creates streams used by the app if they don't exist
func ensureStreams() error {
	_, err := js.StreamInfo("file-events")
	if err == nil {
		log.Printf("[NATS] stream %s already exists", "file-events")
		return nil
	}

	streamCfg := &nats.StreamConfig{
		Name:     "file-events",
		Subjects: []string{"files.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	}

	_, err = js.AddStream(streamCfg)
	return err
}

// PublishEvent publishes an event via JetStream (durable, stored).
// Returns an error when JetStream is unavailable; callers treat publish
// failures as non-fatal and log them.
func PublishEvent(subject string, payload interface{}) error {
	if js == nil {
		return errors.New("jetstream not initialized")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Use a message ID for idempotency
	msgID := uuid.New().String()
	_, err = js.Publish(subject, data, nats.MsgId(msgID))
	if err != nil {
		log.Printf("[NATS] publish failed subject=%s err=%v", subject, err)
		return err
	}
	return nil
}

// CloseNATS closes the connection.
func CloseNATS() {
	if nc != nil && nc.IsConnected() {
		nc.Close()
	}
	nc = nil
	js = nil
}
