// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads and validates the server's startup configuration:
// built-in defaults, an optional JSON file (schema-validated via the
// two-step Validate-then-decode idiom below), and finally CLI flags, in
// increasing precedence. A .env file is loaded into the process
// environment via godotenv, but no ProgramConfig field is read from the
// environment.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/joho/godotenv"
)

// ProgramConfig is the fully-resolved configuration the rest of the
// process is built from.
type ProgramConfig struct {
	Port             int     `json:"port"`
	ReplicaOf        string  `json:"replicaof"` // "host port", empty for a master
	Dir              string  `json:"dir"`
	DBFilename       string  `json:"dbfilename"`
	MetricsAddr      string  `json:"metrics_addr"`
	CommandRateLimit float64 `json:"command_rate_limit"` // commands/sec per connection, 0 = unlimited
	Gops             bool    `json:"gops"`
	LogLevel         string  `json:"loglevel"`
}

var defaults = ProgramConfig{
	Port:        6379,
	MetricsAddr: ":9121",
	LogLevel:    "info",
}

// schema validates the optional --config file before it is decoded.
const schema = `{
	"type": "object",
	"properties": {
		"port": {"type": "integer", "minimum": 1, "maximum": 65535},
		"replicaof": {"type": "string"},
		"dir": {"type": "string"},
		"dbfilename": {"type": "string"},
		"metrics_addr": {"type": "string"},
		"command_rate_limit": {"type": "number", "minimum": 0},
		"gops": {"type": "boolean"},
		"loglevel": {"type": "string", "enum": ["debug", "info", "warn", "err"]}
	},
	"additionalProperties": false
}`

// Load resolves a ProgramConfig from defaults, an optional JSON file, and
// the given CLI args (normally os.Args[1:]). It also loads .env into the
// process environment; the returned config does not depend on it.
func Load(args []string) (*ProgramConfig, error) {
	cfg := defaults

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		cclog.Warnf("[KVSERVER]> reading .env failed: %s", err.Error())
	}

	fs := flag.NewFlagSet("kvserver", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON config file")
	port := fs.Int("port", cfg.Port, "TCP port to listen on")
	replicaOf := fs.String("replicaof", cfg.ReplicaOf, `"<host> <port>" of a master to replicate from`)
	dir := fs.String("dir", cfg.Dir, "directory containing a startup snapshot file")
	dbfilename := fs.String("dbfilename", cfg.DBFilename, "snapshot file name within --dir")
	metricsAddr := fs.String("metrics-addr", cfg.MetricsAddr, "address for the /metrics and /healthz HTTP server")
	rateLimit := fs.Float64("command-rate-limit", cfg.CommandRateLimit, "commands/sec per connection, 0 = unlimited")
	gops := fs.Bool("gops", cfg.Gops, "start a github.com/google/gops/agent diagnostics listener")
	logLevel := fs.String("loglevel", cfg.LogLevel, "debug, info, warn or err")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		raw, err := os.ReadFile(*configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", *configPath, err)
		}
		Validate(schema, raw)
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decoding config file %s: %w", *configPath, err)
		}
	}

	// CLI flags take precedence over the file whenever explicitly set.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "replicaof":
			cfg.ReplicaOf = *replicaOf
		case "dir":
			cfg.Dir = *dir
		case "dbfilename":
			cfg.DBFilename = *dbfilename
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "command-rate-limit":
			cfg.CommandRateLimit = *rateLimit
		case "gops":
			cfg.Gops = *gops
		case "loglevel":
			cfg.LogLevel = *logLevel
		}
	})

	return &cfg, nil
}

// ReplicaHostPort splits the "host port" form of --replicaof.
func ReplicaHostPort(replicaOf string) (host, port string, ok bool) {
	fields := strings.Fields(replicaOf)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
