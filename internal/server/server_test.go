package server

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kvserver/kvserver/internal/pubsub"
	"github.com/kvserver/kvserver/internal/replication/master"
	"github.com/kvserver/kvserver/internal/store/liststore"
	"github.com/kvserver/kvserver/internal/store/streamstore"
	"github.com/kvserver/kvserver/internal/store/strstore"
	"github.com/kvserver/kvserver/internal/store/zsetstore"
)

// newTestServer starts a Server listening on an ephemeral loopback port and
// returns its address; the listener and connection loop are torn down
// when the test finishes.
func newTestServer(t *testing.T) string {
	t.Helper()

	stores := Stores{
		Str:    strstore.New(),
		List:   liststore.New(),
		Stream: streamstore.New(),
		ZSet:   zsetstore.New(),
	}
	srv := New(stores, pubsub.New(), master.NewManager("0123456789012345678901234567890123456789"), Options{}, "master", "")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	go srv.Serve(ctx, ln)
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn, bufio.NewReader(conn)
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}

func TestPingPong(t *testing.T) {
	addr := newTestServer(t)
	conn, r := dial(t, addr)

	_, err := conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", readLine(t, r))
}

func TestSetGetIncr(t *testing.T) {
	addr := newTestServer(t)
	conn, r := dial(t, addr)

	_, err := conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nx\r\n$1\r\n1\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", readLine(t, r))

	_, err = conn.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nx\r\n"))
	require.NoError(t, err)
	require.Equal(t, "$1\r\n", readLine(t, r))
	require.Equal(t, "1\r\n", readLine(t, r))

	_, err = conn.Write([]byte("*2\r\n$4\r\nINCR\r\n$1\r\nx\r\n"))
	require.NoError(t, err)
	require.Equal(t, ":2\r\n", readLine(t, r))
}

func TestUnknownCommand(t *testing.T) {
	addr := newTestServer(t)
	conn, r := dial(t, addr)

	_, err := conn.Write([]byte("*1\r\n$4\r\nNOPE\r\n"))
	require.NoError(t, err)
	require.Equal(t, "-ERR unknown command 'NOPE'\r\n", readLine(t, r))
}

func TestWrongArity(t *testing.T) {
	addr := newTestServer(t)
	conn, r := dial(t, addr)

	_, err := conn.Write([]byte("*1\r\n$3\r\nGET\r\n"))
	require.NoError(t, err)
	require.Equal(t, "-ERR wrong number of arguments for 'get' command\r\n", readLine(t, r))
}

func TestMultiExec(t *testing.T) {
	addr := newTestServer(t)
	conn, r := dial(t, addr)

	send := func(wire string) {
		_, err := conn.Write([]byte(wire))
		require.NoError(t, err)
	}

	send("*1\r\n$5\r\nMULTI\r\n")
	require.Equal(t, "+OK\r\n", readLine(t, r))

	send("*3\r\n$3\r\nSET\r\n$1\r\ny\r\n$1\r\n5\r\n")
	require.Equal(t, "+QUEUED\r\n", readLine(t, r))

	send("*2\r\n$4\r\nINCR\r\n$1\r\ny\r\n")
	require.Equal(t, "+QUEUED\r\n", readLine(t, r))

	send("*1\r\n$4\r\nEXEC\r\n")
	require.Equal(t, "*2\r\n", readLine(t, r))
	require.Equal(t, "+OK\r\n", readLine(t, r))
	require.Equal(t, ":6\r\n", readLine(t, r))
}

func TestPsyncHandshakeAndPropagation(t *testing.T) {
	addr := newTestServer(t)
	replicaConn, r := dial(t, addr)

	_, err := replicaConn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", readLine(t, r))

	_, err = replicaConn.Write([]byte("*3\r\n$8\r\nREPLCONF\r\n$14\r\nlistening-port\r\n$4\r\n6380\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", readLine(t, r))

	_, err = replicaConn.Write([]byte("*3\r\n$5\r\nPSYNC\r\n$1\r\n?\r\n$2\r\n-1\r\n"))
	require.NoError(t, err)

	full := readLine(t, r)
	require.Contains(t, full, "+FULLRESYNC")

	bulkHeader := readLine(t, r)
	require.Equal(t, "$"+lenOfEmptyRDB()+"\r\n", bulkHeader)

	buf := make([]byte, len(master.EmptyRDB))
	_, err = r.Read(buf)
	require.NoError(t, err)

	clientConn, cr := dial(t, addr)
	_, err = clientConn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nx\r\n$1\r\n1\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", readLine(t, cr))

	propagated := readLine(t, r)
	require.Equal(t, "*3\r\n", propagated)
	require.Equal(t, "$3\r\n", readLine(t, r))
	require.Equal(t, "SET\r\n", readLine(t, r))
	require.Equal(t, "$1\r\n", readLine(t, r))
	require.Equal(t, "x\r\n", readLine(t, r))
	require.Equal(t, "$1\r\n", readLine(t, r))
	require.Equal(t, "1\r\n", readLine(t, r))
}

func lenOfEmptyRDB() string {
	return itoa(len(master.EmptyRDB))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
