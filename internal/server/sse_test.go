package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamRecorder 记录SSE流内容，并检测写入与刷新是否并发进入
type streamRecorder struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	active  int32
	overlap int32
}

func (r *streamRecorder) Header() http.Header { return http.Header{} }

func (r *streamRecorder) WriteHeader(int) {}

func (r *streamRecorder) enter() {
	if atomic.AddInt32(&r.active, 1) > 1 {
		atomic.StoreInt32(&r.overlap, 1)
	}
	// 拉长临界区，让并发进入更容易暴露
	time.Sleep(time.Millisecond)
}

func (r *streamRecorder) leave() {
	atomic.AddInt32(&r.active, -1)
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.enter()
	defer r.leave()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) Flush() {
	r.enter()
	r.leave()
}

// 心跳与消息推送共用同一条SSE流，并发推送时帧必须完整且写入串行
func TestSSEPush_ConcurrentPushersKeepFramesIntact(t *testing.T) {
	srv, _ := newPetsServer(t)

	rec := &streamRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := &SSEConnection{
		ID:        "client-1",
		Writer:    rec,
		Flusher:   rec,
		Context:   ctx,
		Cancel:    cancel,
		SessionID: "sess-1",
	}
	srv.sseConnections[conn.ID] = conn
	srv.sessions[conn.SessionID] = &MCPSession{
		ID:        conn.SessionID,
		ClientID:  conn.ID,
		CreatedAt: time.Now(),
	}

	const pushers = 6
	const perPusher = 20
	var wg sync.WaitGroup
	for i := 0; i < pushers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perPusher; j++ {
				msg := fmt.Sprintf(`{"jsonrpc":"2.0","id":"%d-%d","result":{}}`, n, j)
				srv.pushMessageToSession("sess-1", []byte(msg))
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt32(&rec.overlap), "流写入发生并发进入")

	raw := rec.buf.String()
	frames := strings.Split(strings.TrimSuffix(raw, "\n\n"), "\n\n")
	require.Len(t, frames, pushers*perPusher)
	for _, frame := range frames {
		parts := strings.SplitN(frame, "\n", 2)
		require.Len(t, parts, 2, "残缺的帧: %q", frame)
		assert.Equal(t, "event: message", parts[0])
		require.True(t, strings.HasPrefix(parts[1], "data: "), "残缺的数据行: %q", parts[1])

		var parsed map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(parts[1], "data: ")), &parsed))
	}
}
