// Copyright (c) 2024 The Axiom developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package session

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/axiomchain/axiom/axiom"
	"github.com/axiomchain/axiom/kv"
)

var (
	propsBucket    = kv.Bucket("session-props-")
	nextKeysBucket = kv.Bucket("session-next-keys-")
	keyOwnerBucket = kv.Bucket("session-key-owner-")
)

// Options to construct an engine.
type Options struct {
	// KeyTypes is the ordered, fixed list of key type ids the chain requires.
	KeyTypes []axiom.KeyTypeID

	// Manager provides new validator sets. Optional; when nil the roster
	// carries over unchanged forever.
	Manager Manager

	// Handlers observe session life cycle events, in registration order.
	Handlers []Handler

	// Policy decides end of session. Defaults to a periodic policy with
	// axiom.DefaultSessionPeriod/axiom.DefaultSessionOffset.
	Policy Policy

	// DisabledThreshold is the fraction of the validator set that is safe to
	// be disabled. Defaults to axiom.DefaultDisabledThreshold.
	DisabledThreshold axiom.Fraction

	// Verifier validates key ownership proofs submitted with SetKeys.
	Verifier ProofVerifier

	// Liveness tracks account references. Optional.
	Liveness AccountLiveness

	// ValidatorIDOf maps an account to its validator identity. Optional;
	// defaults to the identity mapping.
	ValidatorIDOf func(axiom.Address) (axiom.ValidatorID, bool)
}

// Engine owns the session transition sequence and the key registration
// protocol. It is a sequential, single-writer state machine: one rotation
// executes per triggering block, with no re-entrant invocation. The lock only
// shields concurrent readers (e.g. an API) from the writer.
type Engine struct {
	keyTypes      []axiom.KeyTypeID
	manager       Manager
	handlers      []Handler
	policy        Policy
	threshold     axiom.Fraction
	verifier      ProofVerifier
	liveness      AccountLiveness
	validatorIDOf func(axiom.Address) (axiom.ValidatorID, bool)

	props    kv.Store
	nextKeys kv.Store
	keyOwner kv.Store

	lock sync.RWMutex
}

// New creates an engine over the given store.
func New(store kv.Store, opts Options) (*Engine, error) {
	if len(opts.KeyTypes) == 0 {
		return nil, errors.New("no key types declared")
	}
	seen := make(map[axiom.KeyTypeID]bool, len(opts.KeyTypes))
	for _, kt := range opts.KeyTypes {
		if seen[kt] {
			return nil, errors.Errorf("duplicate key type %v", kt)
		}
		seen[kt] = true
	}
	for _, h := range opts.Handlers {
		hts := h.KeyTypes()
		if len(hts) != len(opts.KeyTypes) {
			return nil, errors.New("number of key types in handler and declared key types does not match")
		}
		for i, kt := range hts {
			if kt != opts.KeyTypes[i] {
				return nil, errors.Errorf("handler and declared key types differ at index %d", i)
			}
		}
	}
	if opts.Verifier == nil {
		return nil, errors.New("proof verifier required")
	}

	manager := opts.Manager
	if manager == nil {
		manager = nopManager{}
	}
	policy := opts.Policy
	if policy == nil {
		policy, _ = NewPeriodic(axiom.DefaultSessionPeriod, axiom.DefaultSessionOffset)
	}
	threshold := opts.DisabledThreshold
	if threshold.Den == 0 {
		threshold = axiom.DefaultDisabledThreshold
	}
	liveness := opts.Liveness
	if liveness == nil {
		liveness = nopLiveness{}
	}
	validatorIDOf := opts.ValidatorIDOf
	if validatorIDOf == nil {
		validatorIDOf = func(a axiom.Address) (axiom.ValidatorID, bool) {
			return axiom.BytesToValidatorID(a.Bytes()), true
		}
	}

	return &Engine{
		keyTypes:      append([]axiom.KeyTypeID(nil), opts.KeyTypes...),
		manager:       manager,
		handlers:      opts.Handlers,
		policy:        policy,
		threshold:     threshold,
		verifier:      opts.Verifier,
		liveness:      liveness,
		validatorIDOf: validatorIDOf,
		props:         propsBucket.NewStore(store),
		nextKeys:      nextKeysBucket.NewStore(store),
		keyOwner:      keyOwnerBucket.NewStore(store),
	}, nil
}

// KeyTypes returns the declared key type ids, in declaration order.
func (e *Engine) KeyTypes() []axiom.KeyTypeID {
	return append([]axiom.KeyTypeID(nil), e.keyTypes...)
}

// Policy returns the session policy in use.
func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) defaultBundle() Bundle {
	return make(Bundle, len(e.keyTypes))
}

// Bootstrap initializes the genesis session state: the validator set of
// session 0 and the queued keys for session 1, taken from the manager or
// falling back to the chain-config-supplied key set. It must run exactly once
// on an empty store.
func (e *Engine) Bootstrap(genesisKeys []GenesisKey) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if existing, err := loadValidators(e.props); err != nil {
		return err
	} else if len(existing) > 0 {
		return errors.New("already bootstrapped")
	}

	for _, gk := range genesisKeys {
		if len(gk.Keys) != len(e.keyTypes) {
			return errors.Errorf("genesis key bundle arity mismatch for %v", gk.Validator)
		}
		if _, _, err := e.innerSetKeys(gk.Validator, gk.Keys); err != nil {
			return errors.Wrap(err, "genesis config must not contain duplicates")
		}
		if !e.liveness.CanIncRef(gk.Account) {
			// the reference leaks, but it only happens once (at genesis) and
			// it's the only way a non-endowed account can hold a session key
			log.Warn("genesis account cannot hold reference", "account", gk.Account)
		}
		if err := e.liveness.IncRef(gk.Account); err != nil {
			return err
		}
	}

	initialValidators, ok := e.manager.NewSession(0)
	if !ok {
		log.Info("no initial validator set provided by manager, deriving it from genesis keys")
		initialValidators = make([]axiom.ValidatorID, 0, len(genesisKeys))
		for _, gk := range genesisKeys {
			initialValidators = append(initialValidators, gk.Validator)
		}
	}
	if len(initialValidators) == 0 {
		return errors.New("empty validator set for session 0 in genesis block")
	}

	nextValidators, ok := e.manager.NewSession(1)
	if !ok {
		nextValidators = initialValidators
	}
	if len(nextValidators) == 0 {
		return errors.New("empty validator set for session 1 in genesis block")
	}

	queued := make([]Entry, 0, len(nextValidators))
	for _, v := range nextValidators {
		keys, ok, err := loadKeys(e.nextKeys, v)
		if err != nil {
			return err
		}
		if !ok {
			keys = e.defaultBundle()
		}
		queued = append(queued, Entry{v, keys})
	}

	// tell everyone about the genesis session keys
	for _, h := range e.handlers {
		h.OnGenesisSession(queued)
	}

	if err := saveValidators(e.props, initialValidators); err != nil {
		return err
	}
	if err := saveQueuedKeys(e.props, queued); err != nil {
		return err
	}
	if err := saveCurrentIndex(e.props, 0); err != nil {
		return err
	}

	e.manager.StartSession(0)

	metricCurrentIndex().Set(0)
	metricActiveValidators().Set(int64(len(initialValidators)))
	return nil
}

// OnBlock asks the policy whether the session should end at block number now,
// and runs the rotation if so. It returns the emitted record, or nil when no
// rotation happened.
func (e *Engine) OnBlock(now uint32) (*Event, error) {
	if !e.policy.ShouldEndSession(now) {
		return nil, nil
	}
	ev, err := e.RotateSession()
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// RotateSession moves on to the next session. It registers the new validator
// set, queues key changes for the session after next, and emits the
// NewSession record. Changes to the validator set have a session of delay to
// take effect, which allows for equivocation punishment after a fork.
func (e *Engine) RotateSession() (Event, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	startTime := time.Now()

	index, err := loadCurrentIndex(e.props)
	if err != nil {
		return Event{}, err
	}
	changed, err := loadQueuedChanged(e.props)
	if err != nil {
		return Event{}, err
	}

	// inform the handlers that a session is going to end
	for _, h := range e.handlers {
		h.OnBeforeSessionEnding()
	}

	e.manager.EndSession(index)

	// promote the queued session keys and validators
	sessionKeys, err := loadQueuedKeys(e.props)
	if err != nil {
		return Event{}, err
	}
	validators := make([]axiom.ValidatorID, len(sessionKeys))
	for i, entry := range sessionKeys {
		validators[i] = entry.Validator
	}
	if err := saveValidators(e.props, validators); err != nil {
		return Event{}, err
	}

	if changed {
		// reset disabled validators
		if err := saveDisabled(e.props, nil); err != nil {
			return Event{}, err
		}
		metricDisabledValidators().Set(0)
	}

	index++
	if err := saveCurrentIndex(e.props, index); err != nil {
		return Event{}, err
	}

	e.manager.StartSession(index)

	// get the next validator set. A provided set counts as changed even if
	// its membership is identical, as underlying economic conditions may
	// have shifted.
	nextValidators, provided := e.manager.NewSession(index + 1)
	nextChanged := provided
	if !provided {
		nextValidators = validators
	}

	// queue next session keys, checking the prior entries positionally for
	// changes until a change is certain
	queued := make([]Entry, 0, len(nextValidators))
	cursor := 0
	for _, v := range nextValidators {
		keys, ok, err := loadKeys(e.nextKeys, v)
		if err != nil {
			return Event{}, err
		}
		if !ok {
			keys = e.defaultBundle()
		}
		if !nextChanged {
			if cursor >= len(sessionKeys) || !sessionKeys[cursor].Keys.Equal(keys) {
				nextChanged = true
			}
			cursor++
		}
		queued = append(queued, Entry{v, keys})
	}

	if err := saveQueuedKeys(e.props, queued); err != nil {
		return Event{}, err
	}
	if err := saveQueuedChanged(e.props, nextChanged); err != nil {
		return Event{}, err
	}

	ev := Event{Index: index}
	log.Info("new session", "index", index, "changed", changed, "validators", len(validators))
	metricRotationCount().Add(1)
	metricCurrentIndex().Set(int64(index))
	metricActiveValidators().Set(int64(len(validators)))
	metricRotationDuration().Observe(time.Since(startTime).Milliseconds())

	// the changed flag announces what is becoming active now, i.e. whether
	// the previous rotation queued a changed roster; nextChanged describes
	// the roster just queued and is only persisted
	for _, h := range e.handlers {
		h.OnNewSession(changed, sessionKeys, queued)
	}

	return ev, nil
}

// DisableIndex disables the validator of index i for the rest of the current
// session. It reports whether this causes the disabled-validators threshold
// to be exceeded. Disabling an already disabled index has no effect.
func (e *Engine) DisableIndex(i uint32) (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.disableIndex(i)
}

func (e *Engine) disableIndex(i uint32) (bool, error) {
	disabled, err := loadDisabled(e.props)
	if err != nil {
		return false, err
	}
	pos := sort.Search(len(disabled), func(j int) bool { return disabled[j] >= i })
	if pos < len(disabled) && disabled[pos] == i {
		return false, nil
	}

	validators, err := loadValidators(e.props)
	if err != nil {
		return false, err
	}
	threshold := e.threshold.Mul(uint32(len(validators)))

	disabled = append(disabled, 0)
	copy(disabled[pos+1:], disabled[pos:])
	disabled[pos] = i
	if err := saveDisabled(e.props, disabled); err != nil {
		return false, err
	}
	metricDisabledValidators().Set(int64(len(disabled)))

	for _, h := range e.handlers {
		h.OnDisabled(i)
	}

	return uint32(len(disabled)) > threshold, nil
}

// Disable disables the validator identified by id. The second return value
// reports whether the id is in the current validator set at all; when it is
// false nothing happened.
func (e *Engine) Disable(id axiom.ValidatorID) (thresholdReached bool, found bool, err error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	validators, err := loadValidators(e.props)
	if err != nil {
		return false, false, err
	}
	for i, v := range validators {
		if v == id {
			reached, err := e.disableIndex(uint32(i))
			return reached, true, err
		}
	}
	return false, false, nil
}

// Validators returns the current validator set.
func (e *Engine) Validators() ([]axiom.ValidatorID, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadValidators(e.props)
}

// CurrentIndex returns the current session index.
func (e *Engine) CurrentIndex() (uint32, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadCurrentIndex(e.props)
}

// QueuedKeys returns the queued validator/key-bundle pairs for the next session.
func (e *Engine) QueuedKeys() ([]Entry, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadQueuedKeys(e.props)
}

// QueuedChanged reports whether the identity of the queued validator set
// differs from the current one.
func (e *Engine) QueuedChanged() (bool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadQueuedChanged(e.props)
}

// DisabledValidators returns the sorted indices of validators disabled in the
// current session.
func (e *Engine) DisabledValidators() ([]uint32, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return loadDisabled(e.props)
}

// FindAuthorFromIndex maps an author index, as recovered by a consensus
// engine, into the current validator set.
func (e *Engine) FindAuthorFromIndex(i uint32) (axiom.ValidatorID, bool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()

	validators, err := loadValidators(e.props)
	if err != nil {
		return axiom.ValidatorID{}, false, err
	}
	if int(i) >= len(validators) {
		return axiom.ValidatorID{}, false, nil
	}
	return validators[i], true, nil
}

// EstimateNextNewSession proxies the policy estimate: the engine plans and
// rotates sessions at the same time, so the next new session is the next
// rotation.
func (e *Engine) EstimateNextNewSession(now uint32) uint32 {
	return e.policy.EstimateNextSessionRotation(now)
}
