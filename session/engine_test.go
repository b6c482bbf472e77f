// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/kv"
	"github.com/axiomchain/axiom/lvldb"
)

var testKeyTypes = []axiom.KeyTypeID{axiom.KeyTypeAuthor, axiom.KeyTypeFinality}

var acceptAll = ProofVerifierFunc(func(axiom.Address, []axiom.KeyTypeID, Bundle, []byte) bool {
	return true
})

func newTestStore(t *testing.T) kv.Store {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func vid(b byte) axiom.ValidatorID {
	return axiom.BytesToValidatorID([]byte{b})
}

func acct(b byte) axiom.Address {
	return axiom.BytesToAddress([]byte{b})
}

// testBundle builds a bundle whose raw keys are unique per tag.
func testBundle(tag byte) Bundle {
	return Bundle{[]byte{'a', tag}, []byte{'f', tag}}
}

func testGenesisKey(b byte) GenesisKey {
	return GenesisKey{Account: acct(b), Validator: vid(b), Keys: testBundle(b)}
}

type mockManager struct {
	sets    map[uint32][]axiom.ValidatorID
	ended   []uint32
	started []uint32
}

func (m *mockManager) NewSession(index uint32) ([]axiom.ValidatorID, bool) {
	set, ok := m.sets[index]
	return set, ok
}
func (m *mockManager) EndSession(index uint32)   { m.ended = append(m.ended, index) }
func (m *mockManager) StartSession(index uint32) { m.started = append(m.started, index) }

type sessionRecord struct {
	changed    bool
	validators []Entry
	queued     []Entry
}

type mockHandler struct {
	genesis  [][]Entry
	sessions []sessionRecord
	endings  int
	disabled []uint32
}

func (h *mockHandler) KeyTypes() []axiom.KeyTypeID { return testKeyTypes }
func (h *mockHandler) OnGenesisSession(validators []Entry) {
	h.genesis = append(h.genesis, validators)
}
func (h *mockHandler) OnNewSession(changed bool, validators, queued []Entry) {
	h.sessions = append(h.sessions, sessionRecord{changed, validators, queued})
}
func (h *mockHandler) OnBeforeSessionEnding() { h.endings++ }
func (h *mockHandler) OnDisabled(index uint32) {
	h.disabled = append(h.disabled, index)
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	if opts.KeyTypes == nil {
		opts.KeyTypes = testKeyTypes
	}
	if opts.Verifier == nil {
		opts.Verifier = acceptAll
	}
	e, err := New(newTestStore(t), opts)
	require.NoError(t, err)
	return e
}

func TestNewValidation(t *testing.T) {
	store := newTestStore(t)

	_, err := New(store, Options{Verifier: acceptAll})
	assert.Error(t, err, "no key types")

	_, err = New(store, Options{
		KeyTypes: []axiom.KeyTypeID{axiom.KeyTypeAuthor, axiom.KeyTypeAuthor},
		Verifier: acceptAll,
	})
	assert.Error(t, err, "duplicate key types")

	_, err = New(store, Options{KeyTypes: testKeyTypes})
	assert.Error(t, err, "no verifier")

	_, err = New(store, Options{
		KeyTypes: []axiom.KeyTypeID{axiom.KeyTypeAuthor},
		Handlers: []Handler{&mockHandler{}},
		Verifier: acceptAll,
	})
	assert.Error(t, err, "handler key type arity mismatch")

	_, err = New(store, Options{KeyTypes: testKeyTypes, Verifier: acceptAll})
	assert.NoError(t, err)
}

func TestBootstrap(t *testing.T) {
	h := &mockHandler{}
	m := &mockManager{}
	e := newTestEngine(t, Options{Manager: m, Handlers: []Handler{h}})

	genesis := []GenesisKey{testGenesisKey(1), testGenesisKey(2)}
	require.NoError(t, e.Bootstrap(genesis))

	index, err := e.CurrentIndex()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), index)

	validators, err := e.Validators()
	require.NoError(t, err)
	assert.Equal(t, []axiom.ValidatorID{vid(1), vid(2)}, validators)

	queued, err := e.QueuedKeys()
	require.NoError(t, err)
	require.Len(t, queued, 2)
	assert.Equal(t, vid(1), queued[0].Validator)
	assert.True(t, queued[0].Keys.Equal(testBundle(1)))
	assert.True(t, queued[1].Keys.Equal(testBundle(2)))

	changed, err := e.QueuedChanged()
	require.NoError(t, err)
	assert.False(t, changed)

	require.Len(t, h.genesis, 1)
	assert.Len(t, h.genesis[0], 2)
	assert.Equal(t, []uint32{0}, m.started)
	assert.Empty(t, m.ended)

	assert.Error(t, e.Bootstrap(genesis), "second bootstrap must fail")
}

func TestBootstrapEmptySet(t *testing.T) {
	e := newTestEngine(t, Options{})
	assert.Error(t, e.Bootstrap(nil))
}

func TestBootstrapArityMismatch(t *testing.T) {
	e := newTestEngine(t, Options{})
	bad := GenesisKey{Account: acct(1), Validator: vid(1), Keys: Bundle{[]byte{1}}}
	assert.Error(t, e.Bootstrap([]GenesisKey{bad}))
}

func TestBootstrapDuplicateGenesisKeys(t *testing.T) {
	e := newTestEngine(t, Options{})
	a := testGenesisKey(1)
	b := testGenesisKey(2)
	b.Keys = testBundle(1)
	assert.Error(t, e.Bootstrap([]GenesisKey{a, b}))
}

func TestBootstrapManagerRoster(t *testing.T) {
	m := &mockManager{sets: map[uint32][]axiom.ValidatorID{
		0: {vid(1), vid(2)},
		1: {vid(2)},
	}}
	e := newTestEngine(t, Options{Manager: m})

	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1)}))

	validators, err := e.Validators()
	require.NoError(t, err)
	assert.Equal(t, []axiom.ValidatorID{vid(1), vid(2)}, validators)

	// validator 2 never registered keys, so it is queued with empty ones
	queued, err := e.QueuedKeys()
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, vid(2), queued[0].Validator)
	assert.True(t, queued[0].Keys.Equal(Bundle{}))
}

func TestRotationDelay(t *testing.T) {
	h := &mockHandler{}
	m := &mockManager{sets: map[uint32][]axiom.ValidatorID{
		2: {vid(1), vid(2), vid(3)},
	}}
	e := newTestEngine(t, Options{Manager: m, Handlers: []Handler{h}})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1), testGenesisKey(2)}))

	// the new validator registers its keys while session 0 is still active
	require.NoError(t, e.SetKeys(acct(3), testBundle(3), nil))

	ev, err := e.RotateSession()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), ev.Index)

	// roster changes do not take effect yet
	validators, err := e.Validators()
	require.NoError(t, err)
	assert.Equal(t, []axiom.ValidatorID{vid(1), vid(2)}, validators)

	queued, err := e.QueuedKeys()
	require.NoError(t, err)
	require.Len(t, queued, 3)
	assert.Equal(t, vid(3), queued[2].Validator)
	assert.True(t, queued[2].Keys.Equal(testBundle(3)))

	changed, err := e.QueuedChanged()
	require.NoError(t, err)
	assert.True(t, changed)

	// one session later the provided roster becomes active
	ev, err = e.RotateSession()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), ev.Index)

	validators, err = e.Validators()
	require.NoError(t, err)
	assert.Equal(t, []axiom.ValidatorID{vid(1), vid(2), vid(3)}, validators)

	assert.Equal(t, []uint32{0, 1}, m.ended)
	assert.Equal(t, []uint32{0, 1, 2}, m.started)
	assert.Equal(t, 2, h.endings)
}

func TestChangedFlagLagsOneSession(t *testing.T) {
	h := &mockHandler{}
	m := &mockManager{sets: map[uint32][]axiom.ValidatorID{
		2: {vid(1), vid(2), vid(3)},
	}}
	e := newTestEngine(t, Options{Manager: m, Handlers: []Handler{h}})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1), testGenesisKey(2)}))
	require.NoError(t, e.SetKeys(acct(3), testBundle(3), nil))

	for i := 0; i < 3; i++ {
		_, err := e.RotateSession()
		require.NoError(t, err)
	}

	// the flag announces the roster becoming active, which is the one queued
	// by the previous rotation
	require.Len(t, h.sessions, 3)
	assert.False(t, h.sessions[0].changed)
	assert.True(t, h.sessions[1].changed)
	assert.False(t, h.sessions[2].changed)

	// each rotation activates exactly what the previous one queued
	assert.Len(t, h.sessions[0].validators, 2)
	assert.Len(t, h.sessions[0].queued, 3)
	assert.Len(t, h.sessions[1].validators, 3)
}

func TestRotationDetectsKeyChange(t *testing.T) {
	h := &mockHandler{}
	e := newTestEngine(t, Options{Handlers: []Handler{h}})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1)}))

	// same roster, new keys
	require.NoError(t, e.SetKeys(acct(1), testBundle(9), nil))

	_, err := e.RotateSession()
	require.NoError(t, err)

	changed, err := e.QueuedChanged()
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = e.RotateSession()
	require.NoError(t, err)
	require.Len(t, h.sessions, 2)
	assert.False(t, h.sessions[0].changed)
	assert.True(t, h.sessions[1].changed)

	// stable from here on
	_, err = e.RotateSession()
	require.NoError(t, err)
	assert.False(t, h.sessions[2].changed)
}

func TestMonotonicIndex(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1)}))

	for want := uint32(1); want <= 5; want++ {
		ev, err := e.RotateSession()
		require.NoError(t, err)
		assert.Equal(t, want, ev.Index)

		index, err := e.CurrentIndex()
		require.NoError(t, err)
		assert.Equal(t, want, index)

		validators, err := e.Validators()
		require.NoError(t, err)
		queued, err := e.QueuedKeys()
		require.NoError(t, err)
		assert.Len(t, queued, len(validators))
	}
}

func TestOnBlock(t *testing.T) {
	policy, err := NewPeriodic(10, 3)
	require.NoError(t, err)
	e := newTestEngine(t, Options{Policy: policy})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1)}))

	ev, err := e.OnBlock(2)
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev, err = e.OnBlock(3)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, uint32(1), ev.Index)

	ev, err = e.OnBlock(12)
	require.NoError(t, err)
	assert.Nil(t, ev)

	ev, err = e.OnBlock(13)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, uint32(2), ev.Index)

	assert.Equal(t, uint32(23), e.EstimateNextNewSession(13))
}

func TestDisable(t *testing.T) {
	h := &mockHandler{}
	e := newTestEngine(t, Options{Handlers: []Handler{h}})
	genesis := []GenesisKey{testGenesisKey(1), testGenesisKey(2), testGenesisKey(3)}
	require.NoError(t, e.Bootstrap(genesis))

	// threshold for 3 validators at 1/3 is 1
	reached, found, err := e.Disable(vid(2))
	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, reached)

	// disabling again has no effect
	reached, err = e.DisableIndex(1)
	require.NoError(t, err)
	assert.False(t, reached)
	assert.Equal(t, []uint32{1}, h.disabled)

	reached, err = e.DisableIndex(0)
	require.NoError(t, err)
	assert.True(t, reached, "two of three disabled exceeds the threshold")

	disabled, err := e.DisabledValidators()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, disabled)

	_, found, err = e.Disable(vid(9))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDisabledClearedOnChange(t *testing.T) {
	m := &mockManager{sets: map[uint32][]axiom.ValidatorID{
		2: {vid(1), vid(2)},
	}}
	e := newTestEngine(t, Options{Manager: m})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1), testGenesisKey(2)}))

	_, _, err := e.Disable(vid(1))
	require.NoError(t, err)

	// the first rotation activates an unchanged roster, so the set survives
	_, err = e.RotateSession()
	require.NoError(t, err)
	disabled, err := e.DisabledValidators()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, disabled)

	// the second one activates the changed roster and clears it
	_, err = e.RotateSession()
	require.NoError(t, err)
	disabled, err = e.DisabledValidators()
	require.NoError(t, err)
	assert.Empty(t, disabled)
}

func TestFindAuthorFromIndex(t *testing.T) {
	e := newTestEngine(t, Options{})
	require.NoError(t, e.Bootstrap([]GenesisKey{testGenesisKey(1), testGenesisKey(2)}))

	author, ok, err := e.FindAuthorFromIndex(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vid(2), author)

	_, ok, err = e.FindAuthorFromIndex(2)
	require.NoError(t, err)
	assert.False(t, ok)
}
