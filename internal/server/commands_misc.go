package server

import (
	"context"
	"fmt"

	"github.com/kvserver/kvserver/internal/resp"
)

func init() {
	register("PING", cmdPing)
	register("COMMAND", cmdCommand)
	register("INFO", cmdInfo)
}

func cmdPing(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) > 2 {
		return wrongArity("PING")
	}
	if c.inSubscribedMode() {
		return resp.Array{resp.BulkString("pong"), resp.BulkString("")}
	}
	if len(cmd) == 2 {
		return resp.Bulk(cmd[1])
	}
	return pongReply
}

func cmdCommand(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	return resp.Array{}
}

// cmdInfo replies with the replication section real clients expect;
// clients and redis-cli probe this on connect regardless of arguments.
func cmdInfo(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	body := fmt.Sprintf(
		"role:%s\r\nmaster_replid:%s\r\nmaster_repl_offset:%d\r\n",
		c.srv.role, c.srv.Repl.ReplID(), c.srv.Repl.Offset(),
	)
	return resp.BulkString(body)
}
