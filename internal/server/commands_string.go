package server

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/kvserver/kvserver/internal/resp"
)

func init() {
	register("SET", cmdSet)
	register("GET", cmdGet)
	register("INCR", cmdIncr)
	register("DECR", cmdDecr)
	register("DEL", cmdDel)
	register("KEYS", cmdKeys)
}

func cmdSet(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 && len(cmd) != 5 {
		return wrongArity("SET")
	}
	var ttl time.Duration
	if len(cmd) == 5 {
		if !strings.EqualFold(string(cmd[3]), "PX") {
			return resp.Error("ERR syntax error")
		}
		ms, err := strconv.ParseInt(string(cmd[4]), 10, 64)
		if err != nil || ms <= 0 {
			return notInteger()
		}
		ttl = time.Duration(ms) * time.Millisecond
	}
	c.srv.Stores.Str.Set(string(cmd[1]), cmd[2], ttl)
	return okReply
}

func cmdGet(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 {
		return wrongArity("GET")
	}
	v, ok := c.srv.Stores.Str.Get(string(cmd[1]))
	if !ok {
		return resp.NullBulk
	}
	return resp.Bulk(v)
}

func cmdIncr(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 {
		return wrongArity("INCR")
	}
	v, ok := c.srv.Stores.Str.Incr(string(cmd[1]))
	if !ok {
		return notInteger()
	}
	return resp.Integer(v)
}

func cmdDecr(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 {
		return wrongArity("DECR")
	}
	v, ok := c.srv.Stores.Str.Decr(string(cmd[1]))
	if !ok {
		return notInteger()
	}
	return resp.Integer(v)
}

// cmdDel deletes key(s) from whichever store currently owns them, since the
// keyspace is flat across the four typed stores, and returns the
// number actually removed.
func cmdDel(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 2 {
		return wrongArity("DEL")
	}
	n := 0
	for _, k := range cmd[1:] {
		key := string(k)
		inStr := c.srv.Stores.Str.Del(key)
		inList := c.srv.Stores.List.Del(key)
		inStream := c.srv.Stores.Stream.Del(key)
		inZSet := c.srv.Stores.ZSet.Del(key)
		if inStr || inList || inStream || inZSet {
			n++
		}
	}
	return resp.Integer(n)
}

// cmdKeys returns string-store keys only; only the "*" pattern
// is required, but other glob patterns are matched on a best-effort basis
// via path.Match rather than erroring.
func cmdKeys(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 2 {
		return wrongArity("KEYS")
	}
	pattern := string(cmd[1])
	all := c.srv.Stores.Str.Keys()

	out := make(resp.Array, 0, len(all))
	for _, k := range all {
		if pattern == "*" {
			out = append(out, resp.BulkString(k))
			continue
		}
		if matched, _ := path.Match(pattern, k); matched {
			out = append(out, resp.BulkString(k))
		}
	}
	return out
}
