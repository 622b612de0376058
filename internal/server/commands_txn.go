package server

import (
	"context"
	"strings"

	"github.com/kvserver/kvserver/internal/resp"
)

func init() {
	register("MULTI", cmdMulti)
	register("DISCARD", cmdDiscard)
	register("EXEC", cmdExec)
}

func cmdMulti(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 1 {
		return wrongArity("MULTI")
	}
	if !c.txn.Begin() {
		return resp.Error("ERR MULTI calls can not be nested")
	}
	return okReply
}

func cmdDiscard(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if !c.txn.Active {
		return resp.Error("ERR DISCARD without MULTI")
	}
	c.txn.Drain()
	return okReply
}

// cmdExec runs the queued commands in order, returning each reply as one
// array. A queued command's own error becomes its entry in
// the array rather than aborting the batch.
func cmdExec(ctx context.Context, c *conn, cmd [][]byte) resp.Reply {
	if !c.txn.Active {
		return resp.Error("ERR EXEC without MULTI")
	}
	queue := c.txn.Drain()

	results := make(resp.Array, len(queue))
	for i, qc := range queue {
		if len(qc) == 0 {
			results[i] = resp.Error("ERR unknown command ''")
			continue
		}
		name := strings.ToUpper(string(qc[0]))
		r := runCommand(ctx, c, name, qc)
		if r == nil {
			r = okReply
		}
		results[i] = r
	}
	return results
}
