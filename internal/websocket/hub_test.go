package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

var testSecret = []byte("hub-test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestPublishQueuesEventFrame(t *testing.T) {
	hub := NewHub()
	hub.Publish(EventProcessAssigned, map[string]string{"order_number": "ORD-2025-00001"})

	select {
	case msg := <-hub.Broadcast:
		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if ev.Event != EventProcessAssigned || ev.At.IsZero() {
			t.Fatalf("frame %+v", ev)
		}
		data, _ := ev.Data.(map[string]interface{})
		if data["order_number"] != "ORD-2025-00001" {
			t.Fatalf("data %v", ev.Data)
		}
	default:
		t.Fatal("nothing queued")
	}
}

func TestPublishDropsWhenQueueIsFull(t *testing.T) {
	hub := NewHub()
	for i := 0; i < cap(hub.Broadcast); i++ {
		hub.Publish(EventStockChanged, i)
	}

	done := make(chan struct{})
	go func() {
		hub.Publish(EventStockChanged, "overflow")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	if len(hub.Broadcast) != cap(hub.Broadcast) {
		t.Fatalf("queue holds %d", len(hub.Broadcast))
	}
}

func newBoardServer(hub *Hub) *httptest.Server {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ServeWs(hub, c, testSecret) })
	return httptest.NewServer(r)
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	srv := newBoardServer(NewHub())
	defer srv.Close()

	cases := map[string]struct {
		token  string
		status int
	}{
		"missing":    {"", http.StatusUnauthorized},
		"garbage":    {"not-a-jwt", http.StatusUnauthorized},
		"no role":    {signToken(t, jwt.MapClaims{"sub": "u1"}), http.StatusForbidden},
		"wrong key": {func() string {
			tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte("other"))
			return tok
		}(), http.StatusUnauthorized},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/ws?token=" + tc.token)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.status)
			}
		})
	}
}

func TestClientReceivesPublishedEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	srv := newBoardServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + signToken(t, jwt.MapClaims{"sub": "u1", "role": "operator"})
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration is asynchronous, so keep publishing until the client sees a frame
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hub.Publish(EventOrderHeld, map[string]string{"reason": "fabric shortage"})
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	first := strings.SplitN(string(msg), "\n", 2)[0]
	var ev Event
	if err := json.Unmarshal([]byte(first), &ev); err != nil {
		t.Fatalf("decode %q: %v", first, err)
	}
	if ev.Event != EventOrderHeld {
		t.Fatalf("event %q", ev.Event)
	}
}
