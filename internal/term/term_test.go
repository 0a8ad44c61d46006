package term

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseControl(t *testing.T) {
	frame, ok := parseControl([]byte(`{"type":"resize","cols":120,"rows":40}`))
	require.True(t, ok)
	assert.Equal(t, controlResize, frame.Type)
	assert.Equal(t, uint16(120), frame.Cols)
	assert.Equal(t, uint16(40), frame.Rows)

	frame, ok = parseControl([]byte(` {"type":"ping"} `))
	require.True(t, ok)
	assert.Equal(t, controlPing, frame.Type)

	// shell traffic must never be mistaken for control frames
	for _, raw := range []string{
		"ls -la\n",
		`{"type":"exec"}`,
		`echo '{"type":"ping"}'`,
		"{broken json",
		"",
	} {
		_, ok := parseControl([]byte(raw))
		assert.False(t, ok, raw)
	}
}

func TestGeometryDefaults(t *testing.T) {
	geo := Geometry{}.orDefault()
	assert.Equal(t, uint16(80), geo.Cols)
	assert.Equal(t, uint16(20), geo.Rows)

	geo = Geometry{Cols: 132, Rows: 50}.orDefault()
	assert.Equal(t, uint16(132), geo.Cols)
	assert.Equal(t, uint16(50), geo.Rows)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	assert.Empty(t, m.List())
	assert.ErrorIs(t, m.Close("nope"), ErrSessionNotFound)

	id, ctx, done := m.register(context.Background(), ModeLocal)
	require.Len(t, m.List(), 1)
	assert.Equal(t, ModeLocal, m.List()[0].Mode)

	require.NoError(t, m.Close(id))
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("close did not cancel the session context")
	}

	done()
	assert.Empty(t, m.List())
}

// TestRemoteProxy wires browser -> daemon -> fake sandbox and checks the
// bridge semantics: payload pass-through both ways, pong filtering, resize
// forwarding.
func TestRemoteProxy(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	sandboxGot := make(chan string, 16)
	sandboxSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		ctx := r.Context()

		// greet, then answer pings with pongs and echo everything else
		conn.Write(ctx, websocket.MessageBinary, []byte("sandbox$ "))
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			sandboxGot <- string(data)
			if frame, ok := parseControl(data); ok {
				if frame.Type == controlPing {
					conn.Write(ctx, websocket.MessageText, marshalControl(&controlFrame{Type: controlPong}))
				}
				continue
			}
			conn.Write(ctx, typ, append([]byte("echo:"), data...))
		}
	}))
	defer sandboxSrv.Close()
	sandboxURL := "ws" + strings.TrimPrefix(sandboxSrv.URL, "http")

	m := NewManager()
	daemonSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		m.RunRemote(r.Context(), conn, sandboxURL, log)
	}))
	defer daemonSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(daemonSrv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close(websocket.StatusNormalClosure, "test done")

	// sandbox greeting reaches the client
	_, data, err := client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sandbox$ ", string(data))

	// plain input round-trips
	require.NoError(t, client.Write(ctx, websocket.MessageBinary, []byte("whoami\n")))
	_, data, err = client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo:whoami\n", string(data))

	// resize is forwarded verbatim to the sandbox
	resize := `{"type":"resize","cols":100,"rows":30}`
	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte(resize)))

	// client ping is forwarded; the resulting pong is filtered, so the next
	// frame the client sees is the echo of a later payload
	require.NoError(t, client.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)))
	require.NoError(t, client.Write(ctx, websocket.MessageBinary, []byte("pwd\n")))

	_, data, err = client.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo:pwd\n", string(data))

	seen := []string{<-sandboxGot, <-sandboxGot, <-sandboxGot, <-sandboxGot}
	assert.Equal(t, []string{"whoami\n", resize, `{"type":"ping"}`, "pwd\n"}, seen)
}
