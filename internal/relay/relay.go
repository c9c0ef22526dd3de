// Package relay carries live match updates from the simulation engine to
// their consumers over an embedded NATS server. The engine publishes fire
// and forget; the WebSocket layer subscribes. Running a real broker in
// process keeps delivery decoupled from the tick loop and leaves the wire
// subjects ready to expose externally later.
package relay

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/emrys/duskball/internal/domain"
)

const (
	readyTimeout = 5 * time.Second

	// subjectAll matches every match feed; per-match subjects are
	// "match.<game id>".
	subjectAll = "match.>"
)

func matchSubject(gameID int64) string {
	return fmt.Sprintf("match.%d", gameID)
}

// Relay is an in-process NATS server plus the connection the engine
// publishes through. It satisfies the engine's Broadcaster interface.
type Relay struct {
	ns *server.Server
	nc *nats.Conn
}

// New starts the embedded server and connects to it in process. The server
// binds no sockets.
func New() (*Relay, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "duskball-relay",
		DontListen: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating relay server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("relay server not ready after %s", readyTimeout)
	}

	nc, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connecting to relay server: %w", err)
	}
	return &Relay{ns: ns, nc: nc}, nil
}

// Publish sends a match update to that match's subject. Delivery is best
// effort; a failed publish is logged and dropped rather than stalling the
// tick loop.
func (r *Relay) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Relay: encoding %s for game %d: %v", ev.Type, ev.GameID, err)
		return
	}
	if err := r.nc.Publish(matchSubject(ev.GameID), data); err != nil {
		log.Printf("Relay: publishing %s for game %d: %v", ev.Type, ev.GameID, err)
	}
}

// Subscribe delivers every match update to fn until the subscription is
// unsubscribed. Updates that fail to decode are dropped.
func (r *Relay) Subscribe(fn func(domain.Event)) (*nats.Subscription, error) {
	return r.subscribe(subjectAll, fn)
}

// SubscribeMatch delivers one match's updates to fn.
func (r *Relay) SubscribeMatch(gameID int64, fn func(domain.Event)) (*nats.Subscription, error) {
	return r.subscribe(matchSubject(gameID), fn)
}

func (r *Relay) subscribe(subject string, fn func(domain.Event)) (*nats.Subscription, error) {
	sub, err := r.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev domain.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("Relay: decoding update on %s: %v", msg.Subject, err)
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	return sub, nil
}

// Close flushes outstanding publishes and shuts the embedded server down.
func (r *Relay) Close() {
	if err := r.nc.Flush(); err != nil {
		log.Printf("Relay: flushing on close: %v", err)
	}
	r.nc.Close()
	r.ns.Shutdown()
	r.ns.WaitForShutdown()
}
