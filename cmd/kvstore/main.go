// Command kvstore is a thin interactive demonstration of the sorted
// engine: open a pool file, accept put/get/range/remove commands on
// stdin, and close the engine cleanly on exit. Replaces the
// teacher's cmd/mantisDB, which wired an HTTP API server, an admin
// dashboard subprocess, and a query parser/optimizer/executor around a
// pluggable CGO-or-Go storage engine - none of which has a place in
// front of an embedded, single-process B+-tree store (spec Non-goals:
// no networked access).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"kvstore/config"
	"kvstore/configbag"
	"kvstore/engine"
	"kvstore/logging"
	"kvstore/shutdown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides defaults)")
	dataDir := flag.String("data-dir", "", "pool file path (overrides config default)")
	forceCreate := flag.Bool("force-create", false, "recreate the pool file even if it already exists (a missing file is always created)")
	checkpointDir := flag.String("checkpoint-dir", "", "directory for periodic checkpoints (disabled if empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("kvstore dev build")
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadFromFile(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "kvstore: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "kvstore: load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Database.DataDir = *dataDir
	}
	if *forceCreate {
		cfg.Database.ForceCreate = true
	}
	if *checkpointDir != "" {
		cfg.Checkpoint.Dir = *checkpointDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "kvstore: invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logging.NewDevelopment("cmd")

	bag := configbag.New()
	bag.PutString("path", cfg.Database.DataDir)
	if *forceCreate {
		bag.PutInt64("force_create", 1)
	}
	if size, err := config.ParseSize(cfg.Database.Size); err == nil && size > 0 {
		bag.PutUint64("size", uint64(size))
	}
	if cfg.Checkpoint.Dir != "" {
		bag.PutString("checkpoint_dir", cfg.Checkpoint.Dir)
	}

	var d engine.Dispatch
	eng, st := d.Open("sorted", bag)
	if !st.Ok() {
		log.Error("open failed", zap.String("status", st.String()))
		os.Exit(1)
	}

	coord := shutdown.NewCoordinator(cfg.Checkpoint.Interval)
	coord.Register("close engine", 0, func(ctx context.Context) error {
		if st := d.Close(eng); !st.Ok() {
			return st
		}
		return nil
	})
	coord.Listen()

	log.Info("kvstore ready", zap.String("path", cfg.Database.DataDir))
	runREPL(eng, log)

	coord.Shutdown()
	coord.Wait()
}

func runREPL(eng engine.Engine, log *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("kvstore> commands: put <k> <v> | get <k> | del <k> | range [lo] [hi] | count | exit")
	for {
		fmt.Print("kvstore> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "exit", "quit":
			return
		case "put":
			if len(fields) != 3 {
				fmt.Println("usage: put <key> <value>")
				continue
			}
			st := eng.Put([]byte(fields[1]), []byte(fields[2]))
			fmt.Println(st)
		case "get":
			if len(fields) != 2 {
				fmt.Println("usage: get <key>")
				continue
			}
			st := eng.Get([]byte(fields[1]), func(v []byte) {
				fmt.Printf("%s\n", v)
			})
			if st != 0 {
				fmt.Println(st)
			}
		case "del":
			if len(fields) != 2 {
				fmt.Println("usage: del <key>")
				continue
			}
			st := eng.Remove([]byte(fields[1]))
			fmt.Println(st)
		case "count":
			n, st := eng.CountAll()
			if !st.Ok() {
				fmt.Println(st)
				continue
			}
			fmt.Println(n)
		case "range":
			lo, hi := "", ""
			if len(fields) > 1 {
				lo = fields[1]
			}
			if len(fields) > 2 {
				hi = fields[2]
			}
			printRange(eng, lo, hi)
		default:
			fmt.Println("unknown command")
		}
	}
}

func printRange(eng engine.Engine, lo, hi string) {
	cb := func(k, v []byte) bool {
		fmt.Printf("%s = %s\n", k, v)
		return false
	}
	switch {
	case lo == "" && hi == "":
		eng.GetAll(cb)
	case lo == "":
		eng.GetBelow([]byte(hi), cb)
	case hi == "":
		eng.GetAbove([]byte(lo), cb)
	default:
		eng.GetBetween([]byte(lo), []byte(hi), cb)
	}
}
