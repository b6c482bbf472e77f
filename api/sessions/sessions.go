// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package sessions exposes the session engine state over HTTP, plus a
// websocket stream of rotation records.
package sessions

import (
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/axiomchain/axiom/api/utils"
	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/co"
	"github.com/axiomchain/axiom/session"
)

var log = log15.New("pkg", "sessions")

const defaultRecentSize = 64

// Sessions is the read-only HTTP surface over the engine.
type Sessions struct {
	engine   *session.Engine
	best     func() uint32
	upgrader websocket.Upgrader

	sig    co.Signal
	recent *lru.Cache

	done     chan struct{}
	closeOne sync.Once
	wg       sync.WaitGroup
}

// New creates the handler group. best reports the best block number, used for
// session progress estimates.
func New(engine *session.Engine, best func() uint32, allowedOrigins []string) *Sessions {
	recent, _ := lru.New(defaultRecentSize)
	return &Sessions{
		engine: engine,
		best:   best,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, o := range allowedOrigins {
					if o == origin || o == "*" {
						return true
					}
				}
				return false
			},
		},
		recent: recent,
		done:   make(chan struct{}),
	}
}

// Notify records an emitted rotation and wakes the websocket subscribers.
func (s *Sessions) Notify(ev session.Event, block uint32) {
	s.recent.Add(ev.Index, &NewSessionRecord{Index: ev.Index, Block: block})
	s.sig.Broadcast()
}

// Close terminates all subscriber connections.
func (s *Sessions) Close() {
	s.closeOne.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Sessions) recentRecords() []*NewSessionRecord {
	keys := s.recent.Keys()
	records := make([]*NewSessionRecord, 0, len(keys))
	for _, k := range keys {
		if v, ok := s.recent.Get(k); ok {
			records = append(records, v.(*NewSessionRecord))
		}
	}
	return records
}

func (s *Sessions) handleGetCurrent(w http.ResponseWriter, _ *http.Request) error {
	index, err := s.engine.CurrentIndex()
	if err != nil {
		return err
	}
	validators, err := s.engine.Validators()
	if err != nil {
		return err
	}
	disabled, err := s.engine.DisabledValidators()
	if err != nil {
		return err
	}
	now := s.best()
	return utils.WriteJSON(w, &CurrentSession{
		Index:         index,
		Validators:    validators,
		Disabled:      disabled,
		Progress:      s.engine.Policy().EstimateCurrentSessionProgress(now),
		NextRotation:  s.engine.EstimateNextNewSession(now),
		AverageLength: s.engine.Policy().AverageSessionLength(),
	})
}

func (s *Sessions) handleGetQueued(w http.ResponseWriter, _ *http.Request) error {
	queued, err := s.engine.QueuedKeys()
	if err != nil {
		return err
	}
	changed, err := s.engine.QueuedChanged()
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &QueuedRoster{
		Changed: changed,
		Entries: convertEntries(queued),
	})
}

func (s *Sessions) handleGetKeys(w http.ResponseWriter, req *http.Request) error {
	id, err := axiom.ParseValidatorID(mux.Vars(req)["validator"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "validator"))
	}
	keys, ok, err := s.engine.LoadKeys(id)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NotFound(errors.New("no keys registered"))
	}
	entry := convertEntry(session.Entry{Validator: id, Keys: keys})
	return utils.WriteJSON(w, &entry)
}

func (s *Sessions) handleGetKeyOwner(w http.ResponseWriter, req *http.Request) error {
	vars := mux.Vars(req)
	keyType, err := axiom.ParseKeyTypeID(vars["keyType"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "keyType"))
	}
	keyData, err := hexutil.Decode(vars["key"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "key"))
	}
	owner, ok, err := s.engine.KeyOwner(keyType, keyData)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NotFound(errors.New("key has no owner"))
	}
	return utils.WriteJSON(w, &KeyOwner{
		KeyType:   keyType.String(),
		Key:       keyData,
		Validator: owner,
	})
}

func (s *Sessions) handleGetRecent(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, s.recentRecords())
}

func (s *Sessions) handleSubscribe(w http.ResponseWriter, req *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// websocket upgrade writes the error response itself
		return nil
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var lastSent uint32
	if index, err := s.engine.CurrentIndex(); err == nil {
		lastSent = index
	}
	for {
		waiter := s.sig.NewWaiter()
		for _, record := range s.recentRecords() {
			if record.Index <= lastSent {
				continue
			}
			if err := conn.WriteJSON(record); err != nil {
				log.Debug("subscriber write failed", "err", err)
				return nil
			}
			lastSent = record.Index
		}
		select {
		case <-waiter.C():
		case <-closed:
			return nil
		case <-s.done:
			return nil
		case <-req.Context().Done():
			return nil
		}
	}
}

// Mount attaches the handlers to the router.
func (s *Sessions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/current").
		Methods(http.MethodGet).
		Name("sessions_get_current").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetCurrent))
	sub.Path("/queued").
		Methods(http.MethodGet).
		Name("sessions_get_queued").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetQueued))
	sub.Path("/keys/{validator}").
		Methods(http.MethodGet).
		Name("sessions_get_keys").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetKeys))
	sub.Path("/owner/{keyType}/{key}").
		Methods(http.MethodGet).
		Name("sessions_get_key_owner").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetKeyOwner))
	sub.Path("/recent").
		Methods(http.MethodGet).
		Name("sessions_get_recent").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetRecent))
	sub.Path("/subscribe").
		Methods(http.MethodGet).
		Name("sessions_subscribe").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubscribe))
}
