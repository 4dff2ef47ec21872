// chattest drives a roomcast instance end to end: mints an identity,
// opens the chat websocket, prints every inbound frame and publishes a
// few messages over both the socket and the REST endpoint.
//
// Usage: go run ./cmd/chattest --addr localhost:8000 --room general --count 5
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	addr := flag.String("addr", "localhost:8000", "roomcast host:port")
	room := flag.String("room", "", "room to join (server default when empty)")
	count := flag.Int("count", 5, "messages to send over the websocket")
	interval := flag.Duration("interval", 500*time.Millisecond, "delay between messages")
	switchTo := flag.String("switch-to", "", "room to change into after sending")
	verbose := flag.Bool("verbose", false, "print full frame JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	base := "http://" + *addr

	// Mint an identity
	userID, err := fetchUserID(base)
	if err != nil {
		logger.Error("auth failed", "error", err)
		os.Exit(1)
	}
	logger.Info("authenticated", "user_id", userID)

	// Open the chat socket
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/chat/" + userID}
	if *room != "" {
		u.RawQuery = "room=" + url.QueryEscape(*room)
	}
	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Error("dial failed", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer ws.Close()
	logger.Info("connected", "url", u.String())

	// Reader: print every inbound frame until the socket closes
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				logger.Info("socket closed", "error", err)
				return
			}
			printFrame(data, *verbose)
		}
	}()

	// Publish over the websocket
	for i := 1; i <= *count; i++ {
		frame := map[string]string{
			"message": fmt.Sprintf("hello %d from %s", i, shortID(userID)),
		}
		if err := ws.WriteJSON(frame); err != nil {
			logger.Error("write failed", "error", err)
			os.Exit(1)
		}
		select {
		case <-time.After(*interval):
		case <-done:
			logger.Error("socket closed mid-run")
			os.Exit(1)
		case <-ctx.Done():
			closeSocket(ws, done)
			return
		}
	}

	// One more through the REST endpoint
	if err := postJSON(base+"/send_message", map[string]string{
		"user_id": userID,
		"message": "hello over rest from " + shortID(userID),
	}); err != nil {
		logger.Error("send_message failed", "error", err)
	} else {
		logger.Info("sent via rest")
	}

	// Optional room change; the new welcome arrives on the socket
	if *switchTo != "" {
		if err := postJSON(base+"/change_room", map[string]string{
			"user_id": userID,
			"room":    *switchTo,
		}); err != nil {
			logger.Error("change_room failed", "error", err)
		} else {
			logger.Info("changed room", "room", *switchTo)
		}
	}

	// Linger for stragglers, then close cleanly
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	case <-ctx.Done():
	}
	closeSocket(ws, done)
}

func closeSocket(ws *websocket.Conn, done <-chan struct{}) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func fetchUserID(base string) (string, error) {
	resp, err := http.Get(base + "/auth")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth: status %d", resp.StatusCode)
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.UserID == "" {
		return "", fmt.Errorf("auth: empty user_id")
	}
	return body.UserID, nil
}

func postJSON(url string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}

func printFrame(data []byte, verbose bool) {
	if verbose {
		var buf bytes.Buffer
		if json.Indent(&buf, data, "", "  ") == nil {
			fmt.Printf("[FRAME] %s\n", buf.String())
			return
		}
	}

	var f struct {
		Type    string `json:"type"`
		Status  string `json:"status"`
		UserID  string `json:"user_id"`
		Message string `json:"message"`
		Room    string `json:"room"`
		At      string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		fmt.Printf("[RAW] %s\n", data)
		return
	}

	switch f.Type {
	case "system":
		fmt.Printf("[SYSTEM] room=%s %s\n", f.Room, f.Message)
	case "ack":
		fmt.Printf("[ACK] status=%s at=%s\n", f.Status, f.At)
	case "error":
		fmt.Printf("[ERROR] %s\n", f.Message)
	default:
		fmt.Printf("[CHAT] room=%s user=%s %s\n", f.Room, shortID(f.UserID), f.Message)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
