package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MimeLyc/yt-summary/pkg/log"
)

// ErrStreamClosed is returned by Next once the channel is gone, whether the
// peer closed it or Close was called.
var ErrStreamClosed = errors.New("progress stream closed")

// Stream is an open progress channel for one job.
type Stream interface {
	// Next blocks until the next well-formed message arrives.
	Next() (Message, error)
	Close() error
}

// StreamDialer opens /ws/{jobId} channels.
type StreamDialer struct {
	dialer      *websocket.Dialer
	idleTimeout time.Duration
}

// NewStreamDialer creates a dialer. idleTimeout > 0 fails Next when no frame
// arrives for that long; 0 waits indefinitely.
func NewStreamDialer(handshakeTimeout, idleTimeout time.Duration) *StreamDialer {
	return &StreamDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		idleTimeout: idleTimeout,
	}
}

// Open dials streamURL. Cancelling ctx closes the socket, which unblocks Next.
func (d *StreamDialer) Open(ctx context.Context, streamURL, requestID string) (Stream, error) {
	header := http.Header{}
	if requestID != "" {
		header.Set(HeaderRequestID, requestID)
	}

	conn, resp, err := d.dialer.DialContext(ctx, streamURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", streamURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", streamURL, err)
	}

	s := &wsStream{
		conn: conn,
		idle: d.idleTimeout,
		done: make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

type wsStream struct {
	conn      *websocket.Conn
	idle      time.Duration
	closeOnce sync.Once
	done      chan struct{}
}

func (s *wsStream) Next() (Message, error) {
	for {
		if s.idle > 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.idle)); err != nil {
				return Message{}, fmt.Errorf("%w: %v", ErrStreamClosed, err)
			}
		}

		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return Message{}, ErrStreamClosed
			default:
			}
			return Message{}, fmt.Errorf("%w: %v", ErrStreamClosed, err)
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("Skipping malformed progress frame: %v", err)
			continue
		}
		return msg, nil
	}
}

func (s *wsStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = s.conn.Close()
	})
	return err
}
