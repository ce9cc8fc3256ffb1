// Package fetch retrieves consecutive blocks from the upstream node
// ahead of the updater needing them, overlapping network latency with
// indexing.
package fetch

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

// Block pairs a fetched block with the height it was requested at, so
// results can be reassembled in order even though fetches complete out
// of order.
type Block struct {
	Height uint32
	Hash   chainhash.Hash
	Msg    *wire.MsgBlock
}

// NodeClient is the slice of rpcclient.Client the fetcher needs,
// narrowed to an interface so it can be driven by a fake in tests.
type NodeClient interface {
	BlockHash(height int64) (chainhash.Hash, bool, error)
	Block(hash chainhash.Hash) (*wire.MsgBlock, bool, error)
}

// Fetcher pulls a batch of consecutive blocks starting at a given
// height, resolving hashes and bodies concurrently but returning them
// in height order.
type Fetcher struct {
	client      NodeClient
	concurrency int
}

// New creates a Fetcher. concurrency bounds how many in-flight RPCs run
// at once; values <= 0 default to 8.
func New(client NodeClient, concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Fetcher{client: client, concurrency: concurrency}
}

// Batch fetches up to count consecutive blocks starting at from. It
// stops early (without error) at the first height the node doesn't
// have yet, so the caller can request a batch past the current tip and
// just get whatever's available.
func (f *Fetcher) Batch(ctx context.Context, from uint32, count int) ([]Block, error) {
	hashes := make([]chainhash.Hash, count)
	present := make([]bool, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			hash, ok, err := f.client.BlockHash(int64(from) + int64(i))
			if err != nil {
				return fmt.Errorf("fetch: block hash at height %d: %w", from+uint32(i), err)
			}
			hashes[i], present[i] = hash, ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := count
	for i, ok := range present {
		if !ok {
			n = i
			break
		}
	}

	blocks := make([]Block, n)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			msg, ok, err := f.client.Block(hashes[i])
			if err != nil {
				return fmt.Errorf("fetch: block body at height %d: %w", from+uint32(i), err)
			}
			if !ok {
				return fmt.Errorf("fetch: block at height %d vanished between hash and body lookup", from+uint32(i))
			}
			blocks[i] = Block{Height: from + uint32(i), Hash: hashes[i], Msg: msg}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return blocks, nil
}
