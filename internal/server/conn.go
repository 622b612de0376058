package server

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kvserver/kvserver/internal/metrics"
	"github.com/kvserver/kvserver/internal/replication/master"
	"github.com/kvserver/kvserver/internal/resp"
	"github.com/kvserver/kvserver/internal/txn"
)

// syncWriter serializes writes to the underlying net.Conn; besides the
// connection's own goroutine, other connections' goroutines write to it
// when they propagate a write (once this connection is a registered
// replica) or publish to a channel it is subscribed to.
type syncWriter struct {
	mu sync.Mutex
	nc net.Conn
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nc.Write(p)
}

type conn struct {
	id  uuid.UUID
	srv *Server
	nc  net.Conn
	w   *syncWriter
	dec *resp.Decoder

	limiter *rate.Limiter

	txn        txn.State
	subscribed map[string]struct{}

	// isReplicaLink becomes true once this connection issues PSYNC; from
	// then on it is a propagation sink, registered with srv.Repl.
	isReplicaLink bool
	replicaID     master.ReplicaID

	createdAt time.Time
}

// inSubscribedMode reports whether the connection is restricted to the
// pub/sub command whitelist.
func (c *conn) inSubscribedMode() bool { return len(c.subscribed) > 0 }

// onlyWhitelisted is the set of commands legal while inSubscribedMode.
var onlyWhitelisted = map[string]bool{
	"SUBSCRIBE": true, "UNSUBSCRIBE": true,
	"PSUBSCRIBE": true, "PUNSUBSCRIBE": true,
	"PING": true, "QUIT": true,
}

func (c *conn) serve(ctx context.Context) {
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}
	c.w = &syncWriter{nc: c.nc}

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()
	cclog.Debugf("[KVSERVER]> connection %s from %s accepted", c.id, c.nc.RemoteAddr())

	defer c.cleanup()

	buf := make([]byte, 16*1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for {
			cmd, ok, err := c.dec.Next()
			if err != nil {
				cclog.Warnf("[KVSERVER]> connection %s protocol error, closing: %s", c.id, err.Error())
				return
			}
			if !ok {
				break
			}
			if len(cmd) == 0 {
				continue
			}
			if !c.dispatchOne(ctx, cmd) {
				return
			}
		}

		c.nc.SetReadDeadline(time.Time{})
		n, err := c.nc.Read(buf)
		if n > 0 {
			c.dec.Feed(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// dispatchOne runs one command and reports whether the connection loop
// should continue (false means close).
func (c *conn) dispatchOne(ctx context.Context, cmd [][]byte) bool {
	if c.limiter != nil {
		_ = c.limiter.Wait(ctx)
	}

	name := strings.ToUpper(string(cmd[0]))
	metrics.CommandsTotal.WithLabelValues(name).Inc()

	if c.inSubscribedMode() && !onlyWhitelisted[name] {
		c.reply(errorf("ERR Can't execute '%s' in subscribed mode", strings.ToLower(name)))
		return true
	}

	if name == "QUIT" {
		c.reply(okReply)
		return false
	}

	if c.txn.Active && name != "EXEC" && name != "DISCARD" && name != "MULTI" {
		c.txn.Enqueue(cmd)
		c.reply(queuedReply)
		return true
	}

	reply := runCommand(ctx, c, name, cmd)
	if reply != nil {
		c.reply(reply)
	}
	return true
}

func (c *conn) reply(r resp.Reply) {
	if _, err := c.w.Write(r.Encode()); err != nil {
		cclog.Debugf("[KVSERVER]> connection %s write failed: %s", c.id, err.Error())
	}
}

func (c *conn) cleanup() {
	c.srv.PubSub.UnsubscribeAll(c)
	if c.isReplicaLink {
		c.srv.Repl.RemoveReplica(c.replicaID)
		metrics.ReplicaCount.Set(float64(c.srv.Repl.Count()))
	}
	c.nc.Close()
	cclog.Debugf("[KVSERVER]> connection %s closed", c.id)
}

// Deliver implements pubsub.Subscriber.
func (c *conn) Deliver(channel, payload string) error {
	arr := resp.Array{
		resp.BulkString("message"),
		resp.BulkString(channel),
		resp.BulkString(payload),
	}
	if _, err := c.w.Write(arr.Encode()); err != nil {
		metrics.PubsubMessagesDropped.Inc()
		return err
	}
	metrics.PubsubMessagesDelivered.Inc()
	return nil
}
