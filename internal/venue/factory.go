package venue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"parity/internal/logger"
	"parity/internal/pkg/circuit"

	"github.com/google/uuid"
)

// Account carries the credentials and limits one adapter instance is built
// from.
type Account struct {
	ID        string
	Venue     string
	APIKey    string
	APISecret string
	Limits    RateLimits
}

// credentialKey fingerprints (venue, api key) without retaining the secret.
func (a Account) credentialKey() string {
	sum := sha256.Sum256([]byte(strings.ToLower(a.Venue) + "|" + a.APIKey))
	return hex.EncodeToString(sum[:8])
}

// Builder constructs an unconnected adapter for an account.
type Builder func(acct Account) (Adapter, error)

type instance struct {
	adapter Adapter
	id      string
	key     string
	refs    int
}

// Factory creates and destroys adapter instances, keyed by (credential
// identity, venue). Repeated creates for a live key return the existing
// instance instead of opening a duplicate connection.
type Factory struct {
	mu        sync.Mutex
	builders  map[string]Builder
	byKey     map[string]*instance
	byID      map[string]*instance
	breakers  map[string]*circuit.Breaker
	threshold int
	timeout   time.Duration
}

func NewFactory() *Factory {
	return &Factory{
		builders:  make(map[string]Builder),
		byKey:     make(map[string]*instance),
		byID:      make(map[string]*instance),
		breakers:  make(map[string]*circuit.Breaker),
		threshold: 3,
		timeout:   30 * time.Second,
	}
}

// Register binds a venue name to an adapter builder. Last registration wins.
func (f *Factory) Register(venueName string, b Builder) {
	f.mu.Lock()
	f.builders[strings.ToLower(venueName)] = b
	f.mu.Unlock()
}

func (f *Factory) breakerFor(venueName string) *circuit.Breaker {
	br, ok := f.breakers[venueName]
	if !ok {
		br = circuit.NewBreaker("venue:"+venueName, f.threshold, f.timeout)
		f.breakers[venueName] = br
	}
	return br
}

// CreateAdapter returns a connected, authenticated adapter plus its instance
// id. Creation failures (bad credentials, venue unreachable) come back as
// taxonomy errors and must never crash the caller's larger job.
func (f *Factory) CreateAdapter(ctx context.Context, acct Account) (Adapter, string, error) {
	name := strings.ToLower(strings.TrimSpace(acct.Venue))
	if name == "" {
		return nil, "", NewValidationError("factory: account venue is required")
	}

	f.mu.Lock()
	builder, ok := f.builders[name]
	if !ok {
		f.mu.Unlock()
		return nil, "", NewValidationError("factory: no builder registered for venue %q", name)
	}
	key := acct.credentialKey()
	if inst, live := f.byKey[key]; live {
		inst.refs++
		adapter, id := inst.adapter, inst.id
		f.mu.Unlock()
		return adapter, id, nil
	}
	br := f.breakerFor(name)
	f.mu.Unlock()

	if !br.Allow() {
		return nil, "", NewConnectionError(name, "venue temporarily disabled after repeated failures", nil)
	}

	adapter, err := f.buildAndOpen(ctx, builder, acct)
	if err != nil {
		br.RecordFailure()
		return nil, "", err
	}
	br.RecordSuccess()

	inst := &instance{adapter: adapter, id: uuid.NewString(), key: key, refs: 1}

	f.mu.Lock()
	// Another caller may have raced us here; prefer the instance that won.
	if prior, live := f.byKey[key]; live {
		prior.refs++
		f.mu.Unlock()
		_ = adapter.Disconnect(ctx)
		return prior.adapter, prior.id, nil
	}
	f.byKey[key] = inst
	f.byID[inst.id] = inst
	f.mu.Unlock()

	logger.Debugf("factory: created adapter venue=%s account=%s instance=%s", name, acct.ID, inst.id)
	return inst.adapter, inst.id, nil
}

func (f *Factory) buildAndOpen(ctx context.Context, builder Builder, acct Account) (Adapter, error) {
	adapter, err := builder(acct)
	if err != nil {
		return nil, err
	}
	if err := adapter.Connect(ctx); err != nil {
		return nil, err
	}
	if err := adapter.Authenticate(ctx); err != nil {
		_ = adapter.Disconnect(ctx)
		return nil, err
	}
	return adapter, nil
}

// DestroyAdapter releases one reference; the last release disconnects the
// adapter and removes it from the registry. Unknown ids are a no-op.
func (f *Factory) DestroyAdapter(ctx context.Context, instanceID string) error {
	f.mu.Lock()
	inst, ok := f.byID[instanceID]
	if !ok {
		f.mu.Unlock()
		return nil
	}
	inst.refs--
	if inst.refs > 0 {
		f.mu.Unlock()
		return nil
	}
	delete(f.byID, instanceID)
	delete(f.byKey, inst.key)
	f.mu.Unlock()

	if err := inst.adapter.Disconnect(ctx); err != nil {
		return fmt.Errorf("factory: disconnect failed: %w", err)
	}
	return nil
}

// ActiveInstances reports the number of live adapter instances.
func (f *Factory) ActiveInstances() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}
