// Package rpcclient is a thin wrapper over a Bitcoin Core-compatible
// node's JSON-RPC interface, exposing exactly the operations the
// indexer's fetch/updater pipeline needs.
package rpcclient

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
)

// rpcNotReadyCode is the "warming up" sentinel Bitcoin Core returns
// while still loading the block index; callers should poll again
// rather than treat it as fatal.
const rpcNotReadyCode = -28

// rpcNotFoundCode is the "block not found" / "no such transaction"
// sentinel, distinguishable from transport failures.
const rpcNotFoundCode = -5

// Config selects how to reach and authenticate to the node. At most one
// of Cookie or (User, Password) may be supplied; Dial rejects a Config
// that sets both.
type Config struct {
	Host     string
	Cookie   string
	User     string
	Password string
	DisableTLS bool
}

// Client wraps the underlying RPC connection.
type Client struct {
	rpc *rpcclient.Client
}

// Dial opens the RPC connection, resolving cookie-file auth if Cookie
// is set.
func Dial(cfg Config) (*Client, error) {
	user, pass := cfg.User, cfg.Password
	if cfg.Cookie != "" {
		if cfg.User != "" || cfg.Password != "" {
			return nil, errors.New("rpcclient: cookie and user/password are mutually exclusive")
		}
		var err error
		user, pass, err = readCookie(cfg.Cookie)
		if err != nil {
			return nil, fmt.Errorf("rpcclient: reading cookie file: %w", err)
		}
	}

	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         user,
		Pass:         pass,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}
	c, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("rpcclient: dial: %w", err)
	}
	return &Client{rpc: c}, nil
}

func readCookie(path string) (user, pass string, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	user, pass, ok := strings.Cut(strings.TrimSpace(string(b)), ":")
	if !ok {
		return "", "", fmt.Errorf("rpcclient: malformed cookie file %q", path)
	}
	return user, pass, nil
}

// Shutdown closes the RPC connection.
func (c *Client) Shutdown() {
	c.rpc.Shutdown()
}

// NotReady reports whether err is the node's "still warming up" soft
// error, which callers should treat as "poll again" rather than fatal.
func NotReady(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == rpcNotReadyCode
}

// NotFound reports whether err is the node's "no such block/tx"
// response, distinguishable from a transport failure.
func NotFound(err error) bool {
	var rpcErr *btcjson.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == rpcNotFoundCode
}

// BlockHash resolves a height to its block hash, or ok=false if no
// block exists at that height yet (distinguished from a transport
// error, which is returned as err).
func (c *Client) BlockHash(height int64) (hash chainhash.Hash, ok bool, err error) {
	h, err := c.rpc.GetBlockHash(height)
	if err != nil {
		if NotFound(err) {
			return chainhash.Hash{}, false, nil
		}
		return chainhash.Hash{}, false, err
	}
	return *h, true, nil
}

// Block fetches the full block by hash.
func (c *Client) Block(hash chainhash.Hash) (*wire.MsgBlock, bool, error) {
	block, err := c.rpc.GetBlock(&hash)
	if err != nil {
		if NotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return block, true, nil
}

// BlockHeader fetches a block header by hash.
func (c *Client) BlockHeader(hash chainhash.Hash) (*wire.BlockHeader, bool, error) {
	header, err := c.rpc.GetBlockHeader(&hash)
	if err != nil {
		if NotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return header, true, nil
}

// RawTransaction fetches a transaction by txid.
func (c *Client) RawTransaction(txid chainhash.Hash) (*wire.MsgTx, bool, error) {
	tx, err := c.rpc.GetRawTransaction(&txid)
	if err != nil {
		if NotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return tx.MsgTx(), true, nil
}

// BlockStats fetches summary statistics for the block at height.
func (c *Client) BlockStats(height int64) (*btcjson.GetBlockStatsResult, error) {
	return c.rpc.GetBlockStats(height, nil)
}

// BlockchainInfo fetches the node's chain selection, used to confirm
// the configured chain matches what the node is actually serving.
func (c *Client) BlockchainInfo() (*btcjson.GetBlockChainInfoResult, error) {
	return c.rpc.GetBlockChainInfo()
}
