// Command devicesim is a scripted stand-in for the phone app. It
// authenticates, opens a session, sends a hello handshake and a tap
// gesture, and answers capture and speak commands with canned results, so
// the gateway can be exercised end to end without a device.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

type deviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

type deviceAuthResponse struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:8080", "gateway host")
	serial := flag.String("serial", "VA-DEV-001", "device serial number")
	secret := flag.String("secret", "dev-secret", "device secret key")
	flag.Parse()

	token, deviceID, err := authenticate(*host, *serial, *secret)
	if err != nil {
		log.Fatal("authentication failed: ", err)
	}
	log.Printf("authenticated as %s", deviceID)

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws"}
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+token)

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), headers)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go readLoop(conn, done)

	send(conn, "hello", map[string]interface{}{
		"app_version": "devicesim",
		"capabilities": map[string]bool{
			"live_recognition": false,
		},
	})

	// One tap on the capture surface: a Describe intent.
	send(conn, "touch", map[string]string{"surface": "capture", "kind": "press"})
	time.Sleep(80 * time.Millisecond)
	send(conn, "touch", map[string]string{"surface": "capture", "kind": "release"})

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupt")
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Println("read: ", err)
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Println("bad frame: ", err)
			continue
		}
		log.Printf("<- %s %s", env.Type, string(env.Payload))

		switch env.Type {
		case "capture":
			var p struct {
				RequestID string `json:"request_id"`
			}
			json.Unmarshal(env.Payload, &p)
			// A 1x1 placeholder; the gateway only forwards the bytes.
			send(conn, "capture_result", map[string]string{
				"request_id": p.RequestID,
				"data":       base64.StdEncoding.EncodeToString([]byte("fake-jpeg-bytes")),
				"mime_type":  "image/jpeg",
			})

		case "speak":
			var p struct {
				UtteranceID string `json:"utterance_id"`
				Text        string `json:"text"`
			}
			json.Unmarshal(env.Payload, &p)
			log.Printf("speaking: %s", p.Text)
			send(conn, "speech_event", map[string]string{
				"utterance_id": p.UtteranceID,
				"event":        "started",
			})
			send(conn, "speech_event", map[string]string{
				"utterance_id": p.UtteranceID,
				"event":        "finished",
			})
		}
	}
}

func send(conn *websocket.Conn, msgType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Fatal("marshal: ", err)
	}
	frame, err := json.Marshal(envelope{Type: msgType, Payload: raw})
	if err != nil {
		log.Fatal("marshal frame: ", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		log.Fatal("write: ", err)
	}
}

func authenticate(host, serial, secret string) (string, string, error) {
	body, err := json.Marshal(deviceAuthRequest{SerialNumber: serial, SecretKey: secret})
	if err != nil {
		return "", "", err
	}

	resp, err := http.Post(fmt.Sprintf("http://%s/api/v1/device/auth", host),
		"application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("auth failed with status %d", resp.StatusCode)
	}

	var parsed deviceAuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", err
	}
	return parsed.Token, parsed.DeviceID, nil
}
