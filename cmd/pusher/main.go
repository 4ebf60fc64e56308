package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"market-relay/src/logger"
	"market-relay/src/snapshot"

	"github.com/gorilla/websocket"
)

// pusher replays a snapshot file to the push receiver the way the charting
// platform does: one long-lived connection, one whole snapshot per message.
func main() {
	url := flag.String("url", "ws://localhost:9000/data", "push receiver URL")
	file := flag.String("file", "market_data.json", "snapshot file to push")
	repeat := flag.Int("repeat", 1, "number of pushes")
	interval := flag.Duration("interval", 5*time.Second, "delay between pushes")
	level := flag.String("log-level", "INFO", "log level")
	flag.Parse()

	log := logger.NewLogger(*level, "Pusher")

	payload, err := os.ReadFile(*file)
	if err != nil {
		fmt.Printf("Error reading snapshot: %v\n", err)
		os.Exit(1)
	}
	decoded, err := snapshot.Decode(payload)
	if err != nil {
		fmt.Printf("Not a pushable snapshot: %v\n", err)
		os.Exit(1)
	}
	log.Info("Loaded %d bars for %s from %s", len(decoded.Snapshot), decoded.Snapshot.Instrument(), *file)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(*url, nil)
	if err != nil {
		if resp != nil {
			log.Critical("Dial failed, status=%d: %v", resp.StatusCode, err)
		}
		log.Critical("Dial failed: %v", err)
	}
	defer conn.Close()

	for i := 0; i < *repeat; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Critical("Push failed: %v", err)
		}

		var ack map[string]any
		if err := conn.ReadJSON(&ack); err != nil {
			log.Critical("No acknowledgement: %v", err)
		}
		log.Info("Push %d/%d: %v", i+1, *repeat, ack)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
