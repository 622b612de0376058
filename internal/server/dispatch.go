package server

import (
	"context"

	"github.com/kvserver/kvserver/internal/metrics"
	"github.com/kvserver/kvserver/internal/resp"
)

type handlerFunc func(ctx context.Context, c *conn, cmd [][]byte) resp.Reply

// dispatchTable maps an upper-cased command name to its handler. Built once
// at init from the per-module tables defined alongside their commands.
var dispatchTable = map[string]handlerFunc{}

func register(name string, h handlerFunc) {
	dispatchTable[name] = h
}

// writeCommands propagate to replicas on success, using the fixed
// list (SET/DEL/INCR/DECR/RPUSH/LPUSH/LPOP/XADD/ZADD).
var writeCommands = map[string]bool{
	"SET": true, "DEL": true, "INCR": true, "DECR": true,
	"RPUSH": true, "LPUSH": true, "LPOP": true, "XADD": true, "ZADD": true,
}

// runCommand invokes name's handler and propagates it to replicas if it is
// a write command that did not error, used both by the top-level dispatch
// loop and by EXEC so queued writes propagate in execution order.
func runCommand(ctx context.Context, c *conn, name string, cmd [][]byte) resp.Reply {
	h, ok := dispatchTable[name]
	if !ok {
		return errorf("ERR unknown command '%s'", string(cmd[0]))
	}

	reply := h(ctx, c, cmd)
	if writeCommands[name] && c.srv.role == "master" {
		if _, failed := reply.(resp.Error); !failed {
			c.srv.Repl.PropagateBytes(resp.EncodeCommandBytes(cmd))
			metrics.ReplicationOffset.Set(float64(c.srv.Repl.Offset()))
		}
	}
	return reply
}
