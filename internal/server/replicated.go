package server

import (
	"context"
	"strings"

	"github.com/kvserver/kvserver/internal/txn"
)

// ApplyFromMaster executes one command received over the replication link
// directly against the local stores. It never
// writes a reply and is only ever called with role == "slave", so
// runCommand's propagate-on-write branch is a no-op.
func (s *Server) ApplyFromMaster(ctx context.Context, cmd [][]byte) {
	if len(cmd) == 0 {
		return
	}
	c := &conn{srv: s, txn: txn.State{}}
	name := strings.ToUpper(string(cmd[0]))
	runCommand(ctx, c, name, cmd)
}
