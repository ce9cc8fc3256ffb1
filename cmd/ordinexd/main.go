// Command ordinexd runs the ordinal indexer as a long-lived daemon: it
// loads configuration, opens the store, dials the upstream node, and
// drives updater.Run until a shutdown signal arrives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ordsuite/ordinex/chainparams"
	"github.com/ordsuite/ordinex/config"
	"github.com/ordsuite/ordinex/events"
	"github.com/ordsuite/ordinex/fetch"
	"github.com/ordsuite/ordinex/reorg"
	"github.com/ordsuite/ordinex/rpcclient"
	"github.com/ordsuite/ordinex/store"
	"github.com/ordsuite/ordinex/updater"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	cfg := defaults

	fs := flag.NewFlagSet("ordinexd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.Chain, "chain", defaults.Chain, "chain: mainnet|testnet|signet|regtest|testnet4")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "indexer data directory")
	fs.BoolVar(&cfg.IndexSats, "index-sats", defaults.IndexSats, "track individual sat ranges")
	fs.BoolVar(&cfg.IndexRunes, "index-runes", defaults.IndexRunes, "index rune etch/mint/transfer events")
	fs.BoolVar(&cfg.IndexSpentSats, "index-spent-sats", defaults.IndexSpentSats, "retain sat ranges for spent outputs")
	fs.BoolVar(&cfg.NoIndexInscripts, "no-index-inscriptions", defaults.NoIndexInscripts, "disable envelope/inscription indexing")
	fs.Uint64Var(&cfg.IndexCacheSize, "index-cache-size", defaults.IndexCacheSize, "store page cache size in bytes")
	fs.StringVar(&cfg.RPCURL, "rpc-url", defaults.RPCURL, "upstream node RPC host:port")
	fs.StringVar(&cfg.RPCCookie, "rpc-cookie-file", defaults.RPCCookie, "node cookie auth file")
	fs.StringVar(&cfg.RPCUser, "rpc-user", defaults.RPCUser, "node RPC username")
	fs.StringVar(&cfg.RPCPassword, "rpc-password", defaults.RPCPassword, "node RPC password")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	dryRun := fs.Bool("dry-run", false, "validate config and node connectivity, then exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return 2
	}
	defer log.Sync() //nolint:errcheck

	db, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Error("store open failed", zap.Error(err))
		return 1
	}
	defer db.Close()

	node, err := rpcclient.Dial(rpcclient.Config{
		Host:     cfg.RPCURL,
		Cookie:   cfg.RPCCookie,
		User:     cfg.RPCUser,
		Password: cfg.RPCPassword,
	})
	if err != nil {
		log.Error("node dial failed", zap.Error(err))
		return 1
	}
	defer node.Shutdown()

	chain := cfg.ResolvedChain()
	if err := checkNodeChain(node, chain); err != nil {
		log.Error("node chain mismatch", zap.Error(err))
		return 1
	}

	if *dryRun {
		fmt.Fprintf(stdout, "ordinexd: config ok, chain=%s datadir=%s\n", chain, cfg.DataDir)
		return 0
	}

	fetcher := fetch.New(node, 8)
	sink := events.NewChanSink(256)
	go drainEvents(log, sink)

	rt := &updater.Runtime{
		DB:       db,
		Fetcher:  fetcher,
		Chain:    chain,
		Config:   cfg,
		Sink:     sink,
		Detector: reorg.NewDetector(),
		Log:      log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("ordinexd starting", zap.String("chain", chain.String()), zap.String("datadir", cfg.DataDir))
	for ctx.Err() == nil {
		if err := updater.Run(ctx, rt, remoteHashAt(node)); err != nil {
			if rpcclient.NotReady(err) {
				log.Warn("node not ready, retrying", zap.Error(err))
				sleep(ctx, 2*time.Second)
				continue
			}
			log.Error("updater stopped", zap.Error(err))
			return 1
		}
		sleep(ctx, time.Second)
	}
	log.Info("ordinexd stopped")
	return 0
}

// checkNodeChain aborts on a mismatch between the configured chain and
// the chain the dialed node is actually serving, per the "current
// source aborts" resolution of this ambiguity.
func checkNodeChain(node *rpcclient.Client, chain chainparams.Chain) error {
	info, err := node.BlockchainInfo()
	if err != nil {
		return fmt.Errorf("query node chain: %w", err)
	}
	if !chainMatches(chain, info.Chain) {
		return fmt.Errorf("configured chain %s does not match node chain %q", chain, info.Chain)
	}
	return nil
}

func chainMatches(chain chainparams.Chain, nodeChain string) bool {
	switch chain {
	case chainparams.Mainnet:
		return nodeChain == "main"
	case chainparams.Testnet, chainparams.Testnet4:
		return strings.HasPrefix(nodeChain, "test")
	case chainparams.Signet:
		return nodeChain == "signet"
	case chainparams.Regtest:
		return nodeChain == "regtest"
	default:
		return false
	}
}

func remoteHashAt(node *rpcclient.Client) func(height uint32) ([32]byte, bool) {
	return func(height uint32) ([32]byte, bool) {
		hash, ok, err := node.BlockHash(int64(height))
		if err != nil || !ok {
			return [32]byte{}, false
		}
		return [32]byte(hash), true
	}
}

func drainEvents(log *zap.Logger, sink *events.ChanSink) {
	for ev := range sink.C() {
		log.Debug("event",
			zap.String("batch_id", ev.BatchID),
			zap.Uint64("sequence", ev.Sequence),
			zap.String("type", fmt.Sprintf("%T", ev.Payload)),
		)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.New("invalid log level " + level)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
