// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package sessions_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomchain/axiom/api/sessions"
	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/lvldb"
	"github.com/axiomchain/axiom/session"
)

var testKeyTypes = []axiom.KeyTypeID{axiom.KeyTypeAuthor, axiom.KeyTypeFinality}

func initSessionsServer(t *testing.T) (*session.Engine, *sessions.Sessions, *httptest.Server) {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	policy, err := session.NewPeriodic(10, 3)
	require.NoError(t, err)

	engine, err := session.New(db, session.Options{
		KeyTypes: testKeyTypes,
		Policy:   policy,
		Verifier: session.ProofVerifierFunc(func(axiom.Address, []axiom.KeyTypeID, session.Bundle, []byte) bool {
			return true
		}),
	})
	require.NoError(t, err)

	genesis := []session.GenesisKey{
		{
			Account:   axiom.BytesToAddress([]byte{1}),
			Validator: axiom.BytesToValidatorID([]byte{1}),
			Keys:      session.Bundle{[]byte{0xa1}, []byte{0xf1}},
		},
		{
			Account:   axiom.BytesToAddress([]byte{2}),
			Validator: axiom.BytesToValidatorID([]byte{2}),
			Keys:      session.Bundle{[]byte{0xa2}, []byte{0xf2}},
		},
	}
	require.NoError(t, engine.Bootstrap(genesis))

	subs := sessions.New(engine, func() uint32 { return 5 }, []string{"*"})
	t.Cleanup(subs.Close)

	router := mux.NewRouter()
	subs.Mount(router, "/sessions")
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	return engine, subs, ts
}

func httpGet(t *testing.T, url string) ([]byte, int) {
	res, err := http.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.NoError(t, res.Body.Close())
	return body, res.StatusCode
}

func TestGetCurrent(t *testing.T) {
	_, _, ts := initSessionsServer(t)

	body, status := httpGet(t, ts.URL+"/sessions/current")
	require.Equal(t, http.StatusOK, status)

	var current sessions.CurrentSession
	require.NoError(t, json.Unmarshal(body, &current))
	assert.Equal(t, uint32(0), current.Index)
	assert.Len(t, current.Validators, 2)
	assert.Empty(t, current.Disabled)
	assert.Equal(t, uint8(30), current.Progress)
	assert.Equal(t, uint32(13), current.NextRotation)
	assert.Equal(t, uint32(10), current.AverageLength)
}

func TestGetQueued(t *testing.T) {
	_, _, ts := initSessionsServer(t)

	body, status := httpGet(t, ts.URL+"/sessions/queued")
	require.Equal(t, http.StatusOK, status)

	var queued sessions.QueuedRoster
	require.NoError(t, json.Unmarshal(body, &queued))
	assert.False(t, queued.Changed)
	require.Len(t, queued.Entries, 2)
	require.Len(t, queued.Entries[0].Keys, 2)
	assert.Equal(t, []byte{0xa1}, []byte(queued.Entries[0].Keys[0]))
}

func TestGetKeys(t *testing.T) {
	_, _, ts := initSessionsServer(t)

	id := axiom.BytesToValidatorID([]byte{1})
	body, status := httpGet(t, ts.URL+"/sessions/keys/"+id.String())
	require.Equal(t, http.StatusOK, status)

	var entry sessions.Entry
	require.NoError(t, json.Unmarshal(body, &entry))
	assert.Equal(t, id, entry.Validator)
	require.Len(t, entry.Keys, 2)
	assert.Equal(t, []byte{0xf1}, []byte(entry.Keys[1]))

	unknown := axiom.BytesToValidatorID([]byte{9})
	_, status = httpGet(t, ts.URL+"/sessions/keys/"+unknown.String())
	assert.Equal(t, http.StatusNotFound, status)

	_, status = httpGet(t, ts.URL+"/sessions/keys/invalid")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetKeyOwner(t *testing.T) {
	_, _, ts := initSessionsServer(t)

	body, status := httpGet(t, ts.URL+"/sessions/owner/auth/0xa1")
	require.Equal(t, http.StatusOK, status)

	var owner sessions.KeyOwner
	require.NoError(t, json.Unmarshal(body, &owner))
	assert.Equal(t, "auth", owner.KeyType)
	assert.Equal(t, axiom.BytesToValidatorID([]byte{1}), owner.Validator)

	_, status = httpGet(t, ts.URL+"/sessions/owner/auth/0xff")
	assert.Equal(t, http.StatusNotFound, status)

	_, status = httpGet(t, ts.URL+"/sessions/owner/toolong1/0xa1")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestGetRecent(t *testing.T) {
	_, subs, ts := initSessionsServer(t)

	body, status := httpGet(t, ts.URL+"/sessions/recent")
	require.Equal(t, http.StatusOK, status)
	var records []*sessions.NewSessionRecord
	require.NoError(t, json.Unmarshal(body, &records))
	assert.Empty(t, records)

	subs.Notify(session.Event{Index: 1}, 13)
	subs.Notify(session.Event{Index: 2}, 23)

	body, status = httpGet(t, ts.URL+"/sessions/recent")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 2)
	assert.Equal(t, uint32(1), records[0].Index)
	assert.Equal(t, uint32(13), records[0].Block)
	assert.Equal(t, uint32(2), records[1].Index)
}

func TestSubscribe(t *testing.T) {
	engine, subs, ts := initSessionsServer(t)

	u := url.URL{Scheme: "ws", Host: strings.TrimPrefix(ts.URL, "http://"), Path: "/sessions/subscribe"}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	ev, err := engine.RotateSession()
	require.NoError(t, err)
	subs.Notify(ev, 3)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var record sessions.NewSessionRecord
	require.NoError(t, conn.ReadJSON(&record))
	assert.Equal(t, uint32(1), record.Index)
	assert.Equal(t, uint32(3), record.Block)
}
