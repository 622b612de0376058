// Package replica implements the replica side of replication: the
// handshake performed against --replicaof (PING / REPLCONF / PSYNC), RDB
// payload consumption, and steady-state command offset tracking for the
// ACK protocol.
package replica

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/kvserver/kvserver/internal/resp"
)

// Client is a connection to a master, past the initial handshake, ready to
// stream write commands.
type Client struct {
	Conn         net.Conn
	MasterReplID string

	mu  sync.Mutex
	dec *resp.Decoder

	offset int64

	// pendingAck holds a just-read GETACK frame's own wire length. Per the
	// ACK protocol, a GETACK's bytes must not count toward the offset
	// reported in its own reply; SendAck folds pendingAck into offset only
	// after that reply goes out.
	pendingAck int64
}

// Offset returns the number of command bytes processed so far, the value
// reported back to the master via REPLCONF ACK.
func (c *Client) Offset() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offset
}

// Handshake dials addr, performs PING/REPLCONF/PSYNC, and returns a Client
// positioned right after the RDB payload along with that payload's bytes.
// listeningPort is this replica's own listening port, reported to the
// master via REPLCONF listening-port.
func Handshake(ctx context.Context, addr, listeningPort string) (*Client, []byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial master %s: %w", addr, err)
	}

	br := bufio.NewReader(conn)

	if err := sendAndExpectOK(conn, br, resp.EncodeCommand("PING"), "PONG"); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := sendAndExpectOK(conn, br, resp.EncodeCommand("REPLCONF", "listening-port", listeningPort), "OK"); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := sendAndExpectOK(conn, br, resp.EncodeCommand("REPLCONF", "capa", "psync2"), "OK"); err != nil {
		conn.Close()
		return nil, nil, err
	}

	if _, err := conn.Write(resp.EncodeCommand("PSYNC", "?", "-1")); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("psync: %w", err)
	}
	line, err := readLine(br)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("psync reply: %w", err)
	}
	replID, err := parseFullResync(line)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}

	payload, err := readBulkNoCRLF(br)
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("reading snapshot payload: %w", err)
	}

	dec := resp.NewDecoder()
	if n := br.Buffered(); n > 0 {
		leftover, _ := br.Peek(n)
		dec.Feed(leftover)
	}

	cclog.Infof("[REPL]> handshake with master %s complete, replid=%s, snapshot=%d bytes", addr, replID, len(payload))
	return &Client{Conn: conn, MasterReplID: replID, dec: dec}, payload, nil
}

func sendAndExpectOK(conn net.Conn, br *bufio.Reader, wire []byte, want string) error {
	if _, err := conn.Write(wire); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	line, err := readLine(br)
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	if !strings.EqualFold(strings.TrimPrefix(line, "+"), want) {
		return fmt.Errorf("unexpected reply from master: %q (wanted %q)", line, want)
	}
	return nil
}

func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseFullResync(line string) (string, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "+"))
	if len(fields) != 3 || fields[0] != "FULLRESYNC" {
		return "", fmt.Errorf("unexpected PSYNC reply: %q", line)
	}
	return fields[1], nil
}

// readBulkNoCRLF reads a "$<len>\r\n<bytes>" frame with no trailing
// terminator, the snapshot framing used by FULLRESYNC.
func readBulkNoCRLF(br *bufio.Reader) ([]byte, error) {
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(line, "$") {
		return nil, fmt.Errorf("expected bulk header, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil {
		return nil, fmt.Errorf("bad bulk length %q: %w", line, err)
	}
	buf := make([]byte, n)
	if _, err := readFull(br, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func readFull(br *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := br.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// ReadCommand blocks until the next command frame arrives from the master.
// A GETACK frame's own wire length is held back from Offset until SendAck
// reports it, so ACK <offset> reflects only bytes processed before this
// GETACK; any other command advances Offset immediately. The caller
// applies the command to the local store without sending any reply,
// except for REPLCONF GETACK which it answers via SendAck.
func (c *Client) ReadCommand() ([][]byte, error) {
	buf := make([]byte, 4096)
	for {
		before := c.dec.Buffered()
		cmd, ok, err := c.dec.Next()
		if err != nil {
			return nil, err
		}
		if ok {
			consumed := int64(before - c.dec.Buffered())
			c.mu.Lock()
			if IsGetAck(cmd) {
				c.pendingAck = consumed
			} else {
				c.offset += consumed
			}
			c.mu.Unlock()
			return cmd, nil
		}

		n, err := c.Conn.Read(buf)
		if n > 0 {
			c.dec.Feed(buf[:n])
		}
		if err != nil {
			return nil, err
		}
	}
}

// SendAck writes "REPLCONF ACK <offset>" to the master, in answer to a
// GETACK or on the periodic ACK cadence a supervisor may drive. A pending
// GETACK's own bytes are folded into Offset only after the reply is sent,
// so the reported offset never includes the frame that triggered it.
func (c *Client) SendAck() error {
	c.mu.Lock()
	offset := c.offset
	pending := c.pendingAck
	c.pendingAck = 0
	c.mu.Unlock()

	_, err := c.Conn.Write(resp.EncodeCommand("REPLCONF", "ACK", strconv.FormatInt(offset, 10)))

	c.mu.Lock()
	c.offset += pending
	c.mu.Unlock()

	return err
}

// IsGetAck reports whether cmd is the "REPLCONF GETACK *" the master sends
// during WAIT.
func IsGetAck(cmd [][]byte) bool {
	return len(cmd) == 3 &&
		strings.EqualFold(string(cmd[0]), "REPLCONF") &&
		strings.EqualFold(string(cmd[1]), "GETACK")
}

// AckInterval is a one-second cadence for proactive ACKs outside of
// GETACK. The replica loop in cmd/kvserver does not use it: it sends
// REPLCONF ACK only in answer to GETACK.
const AckInterval = time.Second
