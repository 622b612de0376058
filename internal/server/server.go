// Package server is the connection loop and command dispatcher: one
// goroutine per accepted net.Conn, a byte buffer fed through
// internal/resp, and a dispatch table routing parsed commands to the
// stores, the transaction queue, pub/sub, and replication.
package server

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/kvserver/kvserver/internal/pubsub"
	"github.com/kvserver/kvserver/internal/replication/master"
	"github.com/kvserver/kvserver/internal/resp"
	"github.com/kvserver/kvserver/internal/store/liststore"
	"github.com/kvserver/kvserver/internal/store/streamstore"
	"github.com/kvserver/kvserver/internal/store/strstore"
	"github.com/kvserver/kvserver/internal/store/zsetstore"
)

// Stores bundles the four typed stores the dispatcher routes commands to.
type Stores struct {
	Str    *strstore.Store
	List   *liststore.Store
	Stream *streamstore.Store
	ZSet   *zsetstore.Store
}

// Options configures per-connection resource limits.
type Options struct {
	// CommandRateLimit is the steady-state commands/sec a connection may
	// issue before being throttled; 0 means unlimited. Default unlimited
	// per the Domain Stack section of SPEC_FULL.md.
	CommandRateLimit rate.Limit
	CommandBurst     int
}

// Server holds all process-wide state the dispatcher reads and mutates.
type Server struct {
	Stores  Stores
	PubSub  *pubsub.Registry
	Repl    *master.Manager
	Options Options

	role         string // "master" or "slave"
	replicaOfStr string // "host port", empty when role is master
}

// New builds a Server. repl carries the replication id reported by INFO
// and used in FULLRESYNC; role is "master" or "slave".
func New(stores Stores, ps *pubsub.Registry, repl *master.Manager, opts Options, role, replicaOf string) *Server {
	return &Server{
		Stores:       stores,
		PubSub:       ps,
		Repl:         repl,
		Options:      opts,
		role:         role,
		replicaOfStr: replicaOf,
	}
}

// Serve accepts connections on ln until ctx is cancelled or Accept fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c := s.newConn(nc)
		go c.serve(ctx)
	}
}

func (s *Server) newConn(nc net.Conn) *conn {
	var limiter *rate.Limiter
	if s.Options.CommandRateLimit > 0 {
		limiter = rate.NewLimiter(s.Options.CommandRateLimit, s.Options.CommandBurst)
	}
	return &conn{
		srv:        s,
		nc:         nc,
		dec:        resp.NewDecoder(),
		subscribed: make(map[string]struct{}),
		limiter:    limiter,
		createdAt:  time.Now(),
	}
}
