package server

import (
	"context"
	"strconv"
	"time"

	"github.com/kvserver/kvserver/internal/metrics"
	"github.com/kvserver/kvserver/internal/resp"
)

func init() {
	register("LPUSH", cmdLPush)
	register("RPUSH", cmdRPush)
	register("LPOP", cmdLPop)
	register("LRANGE", cmdLRange)
	register("LLEN", cmdLLen)
	register("BLPOP", cmdBLPop)
}

func cmdLPush(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	return pushReply(c, cmd, "LPUSH", true)
}

func cmdRPush(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	return pushReply(c, cmd, "RPUSH", false)
}

func pushReply(c *conn, cmd [][]byte, name string, left bool) resp.Reply {
	if len(cmd) < 3 {
		return wrongArity(name)
	}
	n := c.srv.Stores.List.Push(string(cmd[1]), left, cmd[2:]...)
	return resp.Integer(n)
}

func cmdLPop(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 && len(cmd) != 3 {
		return wrongArity("LPOP")
	}
	key := string(cmd[1])

	if len(cmd) == 2 {
		vals, ok := c.srv.Stores.List.Pop(key, 1)
		if !ok {
			return resp.NullBulk
		}
		return resp.Bulk(vals[0])
	}

	count, err := strconv.Atoi(string(cmd[2]))
	if err != nil {
		return notInteger()
	}
	vals, ok := c.srv.Stores.List.Pop(key, count)
	if !ok {
		return resp.NullArray
	}
	out := make(resp.Array, len(vals))
	for i, v := range vals {
		out[i] = resp.Bulk(v)
	}
	return out
}

func cmdLRange(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 4 {
		return wrongArity("LRANGE")
	}
	start, err1 := strconv.Atoi(string(cmd[2]))
	end, err2 := strconv.Atoi(string(cmd[3]))
	if err1 != nil || err2 != nil {
		return notInteger()
	}
	vals := c.srv.Stores.List.Range(string(cmd[1]), start, end)
	out := make(resp.Array, len(vals))
	for i, v := range vals {
		out[i] = resp.Bulk(v)
	}
	return out
}

func cmdLLen(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 {
		return wrongArity("LLEN")
	}
	return resp.Integer(c.srv.Stores.List.Len(string(cmd[1])))
}

func cmdBLPop(ctx context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("BLPOP")
	}
	secs, err := strconv.ParseFloat(string(cmd[2]), 64)
	if err != nil || secs < 0 {
		return notInteger()
	}
	timeout := time.Duration(secs * float64(time.Second))

	metrics.BlockedClients.Inc()
	val, ok := c.srv.Stores.List.BLPop(ctx, string(cmd[1]), timeout)
	metrics.BlockedClients.Dec()

	if !ok {
		return resp.NullArray
	}
	return resp.Array{resp.Bulk(cmd[1]), resp.Bulk(val)}
}
