package server

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/kvserver/kvserver/internal/metrics"
	"github.com/kvserver/kvserver/internal/resp"
	"github.com/kvserver/kvserver/internal/store/streamstore"
)

func init() {
	register("XADD", cmdXAdd)
	register("XRANGE", cmdXRange)
	register("XREAD", cmdXRead)
}

func nowMs() int64 { return time.Now().UnixMilli() }

func cmdXAdd(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 5 || (len(cmd)-3)%2 != 0 {
		return wrongArity("XADD")
	}
	key := string(cmd[1])
	idSpec := string(cmd[2])

	fields := make([]streamstore.Field, 0, (len(cmd)-3)/2)
	for i := 3; i < len(cmd); i += 2 {
		fields = append(fields, streamstore.Field{Name: string(cmd[i]), Value: cmd[i+1]})
	}

	id, err := c.srv.Stores.Stream.Add(key, idSpec, fields, nowMs)
	if err != nil {
		return resp.Error(err.Error())
	}

	// Rewrite the id field to the concrete resolved id before this command
	// is (potentially) propagated: a replica re-resolving "*" or "ms-*"
	// against its own clock would not reproduce the master's id, breaking
	// replication convergence. Real masters propagate the concrete id, not
	// the original id form the client sent.
	cmd[2] = []byte(id.String())

	return resp.BulkString(id.String())
}

func parseRangeBound(s string) (streamstore.ID, error) {
	switch s {
	case "-":
		return streamstore.ID{}, nil
	case "+":
		return streamstore.ID{Ms: ^uint64(0), Seq: ^uint64(0)}, nil
	default:
		return streamstore.ParseID(s)
	}
}

func cmdXRange(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 4 {
		return wrongArity("XRANGE")
	}
	start, err := parseRangeBound(string(cmd[2]))
	if err != nil {
		return resp.Error(err.Error())
	}
	end, err := parseRangeBound(string(cmd[3]))
	if err != nil {
		return resp.Error(err.Error())
	}

	entries := c.srv.Stores.Stream.Range(string(cmd[1]), start, end)
	return encodeEntries(entries)
}

func encodeEntries(entries []streamstore.Entry) resp.Array {
	out := make(resp.Array, len(entries))
	for i, e := range entries {
		fv := make(resp.Array, 0, 2*len(e.Fields))
		for _, f := range e.Fields {
			fv = append(fv, resp.BulkString(f.Name), resp.Bulk(f.Value))
		}
		out[i] = resp.Array{resp.BulkString(e.ID.String()), fv}
	}
	return out
}

func cmdXRead(ctx context.Context, c *conn, cmd [][]byte) resp.Reply {
	idx := 1
	blockMs := int64(-1)

	if idx < len(cmd) && strings.EqualFold(string(cmd[idx]), "BLOCK") {
		idx++
		if idx >= len(cmd) {
			return wrongArity("XREAD")
		}
		ms, err := strconv.ParseInt(string(cmd[idx]), 10, 64)
		if err != nil || ms < 0 {
			return notInteger()
		}
		blockMs = ms
		idx++
	}

	if idx >= len(cmd) || !strings.EqualFold(string(cmd[idx]), "STREAMS") {
		return resp.Error("ERR syntax error")
	}
	idx++

	rest := cmd[idx:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Error("ERR Unbalanced XREAD list of streams: for each stream key an ID or '$' must be specified.")
	}
	n := len(rest) / 2
	keys := make([]string, n)
	ids := make([]streamstore.ID, n)
	for i := 0; i < n; i++ {
		keys[i] = string(rest[i])
		idRaw := string(rest[n+i])
		if idRaw == "$" {
			ids[i] = c.srv.Stores.Stream.LastID(keys[i])
			continue
		}
		id, err := streamstore.ParseID(idRaw)
		if err != nil {
			return resp.Error(err.Error())
		}
		ids[i] = id
	}

	if reply, any := buildXReadReply(c, keys, ids); any {
		return reply
	}

	if blockMs < 0 {
		return resp.Array{}
	}

	timeout := time.Duration(blockMs) * time.Millisecond
	metrics.BlockedClients.Inc()
	_, ok := c.srv.Stores.Stream.WaitForNew(ctx, keys, ids, timeout)
	metrics.BlockedClients.Dec()
	if !ok {
		return resp.NullArray
	}

	reply, _ := buildXReadReply(c, keys, ids)
	return reply
}

// buildXReadReply assembles the per-stream reply shape for XREAD,
// including only streams that have at least one entry after their id. any
// reports whether the overall reply is non-empty.
func buildXReadReply(c *conn, keys []string, ids []streamstore.ID) (reply resp.Reply, any bool) {
	out := make(resp.Array, 0, len(keys))
	for i, key := range keys {
		entries := c.srv.Stores.Stream.After(key, ids[i])
		if len(entries) == 0 {
			continue
		}
		out = append(out, resp.Array{resp.BulkString(key), encodeEntries(entries)})
	}
	return out, len(out) > 0
}
