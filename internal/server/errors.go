package server

import (
	"fmt"
	"strings"

	"github.com/kvserver/kvserver/internal/resp"
)

var (
	okReply     resp.Reply = resp.SimpleString("OK")
	queuedReply resp.Reply = resp.SimpleString("QUEUED")
	pongReply   resp.Reply = resp.SimpleString("PONG")
)

func errorf(format string, args ...any) resp.Reply {
	return resp.Error(fmt.Sprintf(format, args...))
}

func wrongArity(cmd string) resp.Reply {
	return errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(cmd))
}

func wrongType() resp.Reply {
	return resp.Error("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func notInteger() resp.Reply {
	return resp.Error("ERR value is not an integer or out of range")
}
