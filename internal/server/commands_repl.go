package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/kvserver/kvserver/internal/metrics"
	"github.com/kvserver/kvserver/internal/replication/master"
	"github.com/kvserver/kvserver/internal/resp"
)

func init() {
	register("PSYNC", cmdPsync)
	register("REPLCONF", cmdReplconf)
	register("WAIT", cmdWait)
}

// cmdPsync answers the full-resync handshake: a header line,
// an opaque snapshot payload framed as a bulk string without a trailing
// CRLF, then registration into the replica set.
func cmdPsync(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("PSYNC")
	}
	_, _ = c.w.Write(c.srv.Repl.FullResyncHeader())
	_, _ = c.w.Write(master.SnapshotFrame(master.EmptyRDB))

	c.isReplicaLink = true
	c.replicaID = c.srv.Repl.AddReplica(c.w)
	metrics.ReplicaCount.Set(float64(c.srv.Repl.Count()))
	return nil
}

func cmdReplconf(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 2 {
		return wrongArity("REPLCONF")
	}
	switch strings.ToUpper(string(cmd[1])) {
	case "LISTENING-PORT", "CAPA":
		return okReply
	case "ACK":
		if len(cmd) != 3 {
			return nil
		}
		offset, err := strconv.ParseInt(string(cmd[2]), 10, 64)
		if err == nil && c.isReplicaLink {
			c.srv.Repl.Ack(c.replicaID, offset)
		}
		return nil
	default:
		return okReply
	}
}

func cmdWait(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("WAIT")
	}
	numReplicas, err1 := strconv.Atoi(string(cmd[1]))
	timeoutMs, err2 := strconv.Atoi(string(cmd[2]))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	n := c.srv.Repl.Wait(numReplicas, time.Duration(timeoutMs)*time.Millisecond)
	return resp.Integer(n)
}
