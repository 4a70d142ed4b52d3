//go:build integration
// +build integration

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	wsmsg "github.com/quizlive/quizlive/pkg/http/ws"
)

type hostAccount struct {
	ID    string
	Email string
	Token string
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func registerHost(t *testing.T, baseURL string) hostAccount {
	t.Helper()

	email := fmt.Sprintf("host-%d@example.com", time.Now().UnixNano())
	resp := postJSON(t, fmt.Sprintf("%s/v1/auth/register", baseURL), "", map[string]string{
		"email":        email,
		"password":     "testpassword123",
		"display_name": "Integration Host",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected register status: %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
		Host  struct {
			ID string `json:"id"`
		} `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if out.Token == "" {
		t.Fatal("empty token in register response")
	}
	return hostAccount{ID: out.Host.ID, Email: email, Token: out.Token}
}

func loginHost(t *testing.T, baseURL, email, password string) hostAccount {
	t.Helper()

	resp := postJSON(t, fmt.Sprintf("%s/v1/auth/login", baseURL), "", map[string]string{
		"email":    email,
		"password": password,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
		Host  struct {
			ID string `json:"id"`
		} `json:"host"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return hostAccount{ID: out.Host.ID, Email: email, Token: out.Token}
}

func createQuiz(t *testing.T, baseURL, token string) string {
	t.Helper()

	payload := map[string]any{
		"title": fmt.Sprintf("Integration Quiz %d", time.Now().UnixNano()),
		"questions": []map[string]any{
			{
				"text":       "Capital of France?",
				"time_limit": 20,
				"points":     1000,
				"options": []map[string]any{
					{"text": "Paris", "is_correct": true, "color": "red"},
					{"text": "Lyon", "is_correct": false, "color": "blue"},
					{"text": "Nice", "is_correct": false, "color": "yellow"},
					{"text": "Lille", "is_correct": false, "color": "green"},
				},
			},
			{
				"text":       "2 + 2?",
				"time_limit": 20,
				"points":     1000,
				"options": []map[string]any{
					{"text": "3", "is_correct": false, "color": "red"},
					{"text": "4", "is_correct": true, "color": "blue"},
					{"text": "5", "is_correct": false, "color": "yellow"},
					{"text": "22", "is_correct": false, "color": "green"},
				},
			},
		},
	}

	resp := postJSON(t, fmt.Sprintf("%s/v1/quizzes", baseURL), token, payload)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected quiz creation status: %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode quiz response: %v", err)
	}
	if out.ID == "" {
		t.Fatal("empty quiz id")
	}
	return out.ID
}

type sessionInfo struct {
	ID  string
	PIN string
}

func createSession(t *testing.T, baseURL, token, quizID string) sessionInfo {
	t.Helper()

	resp := postJSON(t, fmt.Sprintf("%s/v1/sessions", baseURL), token, map[string]string{
		"quiz_id": quizID,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected session creation status: %d", resp.StatusCode)
	}

	var out struct {
		ID     string `json:"id"`
		PIN    string `json:"pin"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode session response: %v", err)
	}
	if out.Status != "waiting" {
		t.Fatalf("new session should be waiting, got %q", out.Status)
	}
	if len(out.PIN) != 6 {
		t.Fatalf("expected 6-digit PIN, got %q", out.PIN)
	}
	return sessionInfo{ID: out.ID, PIN: out.PIN}
}

func postJSON(t *testing.T, url, token string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s failed: %v", url, err)
	}
	return resp
}

func makeAuthenticatedRequest(t *testing.T, method, url, token string, payload any) *http.Response {
	t.Helper()

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func dialGameWS(t *testing.T, wsBase, token string) *websocket.Conn {
	t.Helper()

	u, err := url.Parse(wsBase)
	if err != nil {
		t.Fatalf("invalid WS url: %v", err)
	}
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u.String(), err)
	}
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", msgType, err)
	}
	if err := conn.WriteJSON(wsmsg.Message{Type: msgType, Payload: raw}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// waitForWS reads messages until one of the given type arrives, skipping
// everything else (ticks, presence updates), or fails on the deadline.
func waitForWS(t *testing.T, conn *websocket.Conn, msgType string, timeout time.Duration) wsmsg.Message {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		var msg wsmsg.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if msg.Type == wsmsg.TypeError && msgType != wsmsg.TypeError {
			t.Fatalf("unexpected error frame while waiting for %s: %s", msgType, string(msg.Payload))
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func decodeWSPayload(t *testing.T, msg wsmsg.Message, dst any) {
	t.Helper()
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		t.Fatalf("decode %s payload: %v", msg.Type, err)
	}
}
