// Command kvserver is the RESP key-value server's entry point: it loads
// configuration, wires the stores, replication, metrics and housekeeping
// subsystems together, and supervises them all under one
// golang.org/x/sync/errgroup instead of a raw sync.WaitGroup.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/gops/agent"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kvserver/kvserver/internal/config"
	"github.com/kvserver/kvserver/internal/housekeeping"
	"github.com/kvserver/kvserver/internal/kvlog"
	"github.com/kvserver/kvserver/internal/metrics"
	"github.com/kvserver/kvserver/internal/pubsub"
	"github.com/kvserver/kvserver/internal/replication/master"
	"github.com/kvserver/kvserver/internal/replication/replica"
	"github.com/kvserver/kvserver/internal/server"
	"github.com/kvserver/kvserver/internal/snapshot"
	"github.com/kvserver/kvserver/internal/store/liststore"
	"github.com/kvserver/kvserver/internal/store/streamstore"
	"github.com/kvserver/kvserver/internal/store/strstore"
	"github.com/kvserver/kvserver/internal/store/zsetstore"
)

func main() {
	if err := run(); err != nil {
		cclog.Errorf("[KVSERVER]> %s", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	kvlog.Init(cfg.LogLevel, true)

	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fmt.Errorf("gops/agent.Listen failed: %w", err)
		}
	}

	stores := server.Stores{
		Str:    strstore.New(),
		List:   liststore.New(),
		Stream: streamstore.New(),
		ZSet:   zsetstore.New(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if cfg.Dir != "" && cfg.DBFilename != "" {
		kv, err := snapshot.Load(ctx, cfg.Dir, cfg.DBFilename)
		if err != nil {
			cancel()
			return fmt.Errorf("loading startup snapshot: %w", err)
		}
		stores.Str.LoadSnapshot(kv)
		cclog.Infof("[KVSERVER]> installed %d keys from startup snapshot", len(kv))
	}
	cancel()

	role := "master"
	var replicaHost, replicaPort string
	if cfg.ReplicaOf != "" {
		var ok bool
		replicaHost, replicaPort, ok = config.ReplicaHostPort(cfg.ReplicaOf)
		if !ok {
			return fmt.Errorf("invalid --replicaof %q, want \"<host> <port>\"", cfg.ReplicaOf)
		}
		role = "slave"
	}

	replID, err := newReplID()
	if err != nil {
		return fmt.Errorf("generating replication id: %w", err)
	}
	repl := master.NewManager(replID)

	ps := pubsub.New()

	opts := server.Options{}
	if cfg.CommandRateLimit > 0 {
		opts.CommandRateLimit = rate.Limit(cfg.CommandRateLimit)
		opts.CommandBurst = int(cfg.CommandRateLimit)
		if opts.CommandBurst < 1 {
			opts.CommandBurst = 1
		}
	}

	srv := server.New(stores, ps, repl, opts, role, cfg.ReplicaOf)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", cfg.Port, err)
	}
	cclog.Infof("[KVSERVER]> listening on %s (role=%s)", ln.Addr(), role)

	sched, err := housekeeping.Start(stores.Str, housekeeping.Stats{
		StrKeys:    stores.Str.KeyCount,
		ListKeys:   stores.List.KeyCount,
		StreamKeys: stores.Stream.KeyCount,
		ZSetKeys:   stores.ZSet.KeyCount,
	})
	if err != nil {
		return fmt.Errorf("starting housekeeping scheduler: %w", err)
	}

	metricsSrv := metrics.NewHTTPServer(cfg.MetricsAddr)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})

	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if role == "slave" {
		g.Go(func() error {
			return runReplicaLoop(gctx, srv, replicaHost, replicaPort, fmt.Sprintf("%d", cfg.Port))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		cclog.Infof("[KVSERVER]> shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx, metricsSrv)
		_ = sched.Shutdown()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

// runReplicaLoop performs the replica-side handshake and then applies
// every command read off the master link to the local stores, answering
// REPLCONF GETACK with REPLCONF ACK as the only reply ever sent back on
// that connection.
func runReplicaLoop(ctx context.Context, srv *server.Server, host, port, ownPort string) error {
	client, _, err := replica.Handshake(ctx, net.JoinHostPort(host, port), ownPort)
	if err != nil {
		return fmt.Errorf("replica handshake with %s:%s: %w", host, port, err)
	}
	cclog.Infof("[REPL]> connected to master %s:%s", host, port)

	for {
		select {
		case <-ctx.Done():
			client.Conn.Close()
			return nil
		default:
		}

		cmd, err := client.ReadCommand()
		if err != nil {
			return fmt.Errorf("replica link to %s:%s closed: %w", host, port, err)
		}
		if len(cmd) == 0 {
			continue
		}

		if replica.IsGetAck(cmd) {
			if err := client.SendAck(); err != nil {
				return fmt.Errorf("sending REPLCONF ACK: %w", err)
			}
			continue
		}

		srv.ApplyFromMaster(ctx, cmd)
	}
}

func newReplID() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
