// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node assembles the store, the session engine and the api server,
// and drives the per-block session check.
package node

import (
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/inconshreveable/log15"

	"github.com/axiomchain/axiom/api"
	"github.com/axiomchain/axiom/api/sessions"
	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/kv"
	"github.com/axiomchain/axiom/session"
)

var log = log15.New("pkg", "node")

var (
	nodePropsBucket = kv.Bucket("node-props-")
	bestBlockKey    = []byte("best-block")
)

// Options for Node.
type Options struct {
	APIAddr        string
	AllowedOrigins string
	PprofOn        bool

	// BlockInterval overrides the chain block time. Zero means the default.
	BlockInterval time.Duration
}

// Node is the abstraction of the local node.
type Node struct {
	opts   Options
	engine *session.Engine
	props  kv.Store
	subs   *sessions.Sessions

	lock sync.RWMutex
	best uint32

	wg sync.WaitGroup
}

// New creates a node over the given store and engine.
func New(store kv.Store, engine *session.Engine, opts Options) (*Node, error) {
	if opts.BlockInterval == 0 {
		opts.BlockInterval = time.Duration(axiom.BlockInterval) * time.Second
	}
	props := nodePropsBucket.NewStore(store)
	best, err := loadBestBlock(props)
	if err != nil {
		return nil, err
	}
	return &Node{
		opts:   opts,
		engine: engine,
		props:  props,
		best:   best,
	}, nil
}

// BestBlock returns the latest processed block number.
func (n *Node) BestBlock() uint32 {
	n.lock.RLock()
	defer n.lock.RUnlock()
	return n.best
}

// Engine exposes the session engine.
func (n *Node) Engine() *session.Engine {
	return n.engine
}

// Run starts the api service and the block loop, blocking until the parent
// context is canceled.
func (n *Node) Run(ctx context.Context) error {
	handler, subs := api.New(n.engine, n.BestBlock, api.Options{
		AllowedOrigins: n.opts.AllowedOrigins,
		PprofOn:        n.opts.PprofOn,
	})
	n.subs = subs

	listener, err := net.Listen("tcp", n.opts.APIAddr)
	if err != nil {
		return err
	}
	log.Info("api started", "addr", listener.Addr())

	routine := func(f func()) {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			f()
		}()
	}
	routine(func() { n.serveAPI(ctx, listener, handler) })
	routine(func() { n.blockLoop(ctx) })

	n.wg.Wait()
	return nil
}

func (n *Node) serveAPI(ctx context.Context, listener net.Listener, handler http.HandlerFunc) {
	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		n.subs.Close()
		srv.Close()
	}()
	if err := srv.Serve(listener); err != http.ErrServerClosed {
		log.Warn("api stopped", "err", err)
	}
}

// blockLoop advances the local block number on every block interval and lets
// the engine decide whether the session ends.
func (n *Node) blockLoop(ctx context.Context) {
	ticker := time.NewTicker(n.opts.BlockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.processBlock(); err != nil {
				log.Error("block processing failed", "err", err)
			}
		}
	}
}

func (n *Node) processBlock() error {
	n.lock.Lock()
	num := n.best + 1
	n.lock.Unlock()

	ev, err := n.engine.OnBlock(num)
	if err != nil {
		return err
	}
	if err := saveBestBlock(n.props, num); err != nil {
		return err
	}

	n.lock.Lock()
	n.best = num
	n.lock.Unlock()

	if ev != nil && n.subs != nil {
		n.subs.Notify(*ev, num)
	}
	return nil
}

func loadBestBlock(getter kv.Getter) (uint32, error) {
	data, err := getter.Get(bestBlockKey)
	if err != nil {
		if getter.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

func saveBestBlock(putter kv.Putter, num uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], num)
	return putter.Put(bestBlockKey, b[:])
}
