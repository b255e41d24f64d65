// Package connector maintains a single outbound TCP session to the
// controller with exponential-backoff reconnect, and implements the binary
// frame envelope (type byte, big-endian packet id, big-endian length,
// JSON payload) that carries protocol.Frame values over the wire.
package connector

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/infrasonar/rapp/internal/logging"
	"github.com/infrasonar/rapp/internal/metrics"
	"github.com/infrasonar/rapp/internal/protocol"
)

const (
	connectTimeout = 10 * time.Second
	initialBackoff = 2 * time.Second
	maxBackoff     = 128 * time.Second
)

// Connector owns the single outbound connection to the controller.
type Connector struct {
	addr string
	log  *logging.Logger
	disp *protocol.Dispatcher
}

// New creates a Connector that dials host:port and routes inbound frames
// to disp.
func New(host string, port int, disp *protocol.Dispatcher, log *logging.Logger) *Connector {
	return &Connector{addr: fmt.Sprintf("%s:%d", host, port), log: log, disp: disp}
}

// Run dials, serves frames until the connection drops or ctx is cancelled,
// then reconnects with exponential backoff. Blocks until ctx is cancelled.
func (c *Connector) Run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := c.dial(ctx)
		if err != nil {
			metrics.ConnectorReconnects.Inc()
			c.log.Warn("connect failed, retrying", "addr", c.addr, "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		c.log.Info("connected", "addr", c.addr)
		c.serve(ctx, conn)
		conn.Close()
	}
}

func (c *Connector) dial(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: connectTimeout}
	return d.DialContext(ctx, "tcp", c.addr)
}

func (c *Connector) serve(ctx context.Context, conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		if ctx.Err() != nil {
			return
		}
		req, err := readFrame(r)
		if err != nil {
			if err != io.EOF {
				c.log.Warn("connection read failed", "error", err)
			}
			return
		}
		reply := c.disp.Handle(ctx, req)
		if reply == nil {
			continue
		}
		if err := writeFrame(conn, *reply); err != nil {
			c.log.Warn("connection write failed", "error", err)
			return
		}
	}
}

// readFrame decodes one frame: 1 type byte, 4-byte BE packet id, 4-byte BE
// payload length, then the payload.
func readFrame(r io.Reader) (protocol.Frame, error) {
	var header [9]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return protocol.Frame{}, err
	}
	f := protocol.Frame{
		Type:  header[0],
		PktID: binary.BigEndian.Uint32(header[1:5]),
	}
	length := binary.BigEndian.Uint32(header[5:9])
	if length > 0 {
		f.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return protocol.Frame{}, err
		}
	}
	return f, nil
}

// writeFrame encodes f using the same envelope readFrame decodes.
func writeFrame(w io.Writer, f protocol.Frame) error {
	header := make([]byte, 9)
	header[0] = f.Type
	binary.BigEndian.PutUint32(header[1:5], f.PktID)
	binary.BigEndian.PutUint32(header[5:9], uint32(len(f.Payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if len(f.Payload) > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}
