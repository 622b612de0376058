package server

import (
	"context"

	"github.com/kvserver/kvserver/internal/resp"
)

func init() {
	register("SUBSCRIBE", cmdSubscribe)
	register("UNSUBSCRIBE", cmdUnsubscribe)
	register("PUBLISH", cmdPublish)
}

// cmdSubscribe writes one reply frame per channel directly (the literal
// per-channel "*3 subscribe <channel> <count>" shape), since a
// single SUBSCRIBE with several channel arguments produces several reply
// frames, not one. It returns nil; the dispatch loop does not write again.
func cmdSubscribe(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) < 2 {
		return wrongArity("SUBSCRIBE")
	}
	for _, chb := range cmd[1:] {
		channel := string(chb)
		c.srv.PubSub.Subscribe(channel, c)
		c.subscribed[channel] = struct{}{}
		c.reply(resp.Array{
			resp.BulkString("subscribe"),
			resp.BulkString(channel),
			resp.Integer(len(c.subscribed)),
		})
	}
	return nil
}

func cmdUnsubscribe(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	channels := cmd[1:]
	if len(channels) == 0 {
		for ch := range c.subscribed {
			channels = append(channels, []byte(ch))
		}
	}
	if len(channels) == 0 {
		c.reply(resp.Array{resp.BulkString("unsubscribe"), resp.NullBulk, resp.Integer(0)})
		return nil
	}
	for _, chb := range channels {
		channel := string(chb)
		c.srv.PubSub.Unsubscribe(channel, c)
		delete(c.subscribed, channel)
		c.reply(resp.Array{
			resp.BulkString("unsubscribe"),
			resp.BulkString(channel),
			resp.Integer(len(c.subscribed)),
		})
	}
	return nil
}

func cmdPublish(_ context.Context, c *conn, cmd [][]byte) resp.Reply {
	if len(cmd) != 3 {
		return wrongArity("PUBLISH")
	}
	n := c.srv.PubSub.Publish(string(cmd[1]), string(cmd[2]))
	return resp.Integer(n)
}
