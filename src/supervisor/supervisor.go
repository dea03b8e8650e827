// Package supervisor owns broker connection state. Sessions never talk
// to the broker directly; they acquire a connected client from the
// registry, which is shared by every session using the same credential
// set.
package supervisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"forwardtester/src/connectors"
	"forwardtester/src/retry"
)

type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateReconnecting State = "RECONNECTING"
	StateFailed       State = "FAILED"
)

// ErrConnectionFailed is returned for credentials whose retry budget is
// exhausted. Every session on that credential set stays blocked until
// an explicit Reset.
var ErrConnectionFailed = errors.New("broker connection failed, reset required")

// Credentials identify one brokerage account. The token arrives here
// already decrypted.
type Credentials struct {
	Token       string
	AccountID   string
	Environment string
}

// Fingerprint is a stable non-reversible key for a credential set.
func (c Credentials) Fingerprint() string {
	sum := sha256.Sum256([]byte(c.Token + "|" + c.AccountID + "|" + c.Environment))
	return hex.EncodeToString(sum[:8])
}

// Factory builds a broker client for a credential set.
type Factory func(creds Credentials) connectors.BrokerAPI

// ConnectionStatus is the read-only view exposed on /status.
type ConnectionStatus struct {
	Fingerprint string `json:"fingerprint"`
	AccountID   string `json:"account_id"`
	Environment string `json:"environment"`
	State       State  `json:"state"`
	Failures    int    `json:"failures"`
	LastError   string `json:"last_error,omitempty"`
}

type connection struct {
	mu       sync.Mutex
	creds    Credentials
	state    State
	client   connectors.BrokerAPI
	failures int
	lastErr  error
}

// Registry holds one connection per credential fingerprint. Connections
// are built lazily and never persisted. Only the registry mutates
// connection state.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	policy  retry.Policy
	conns   map[string]*connection
}

func NewRegistry() *Registry {
	return NewRegistryWith(func(creds Credentials) connectors.BrokerAPI {
		return connectors.NewOandaClient(creds.Token, creds.AccountID, creds.Environment)
	}, retry.DefaultPolicy())
}

func NewRegistryWith(factory Factory, policy retry.Policy) *Registry {
	return &Registry{
		factory: factory,
		policy:  policy,
		conns:   make(map[string]*connection),
	}
}

func (r *Registry) connection(creds Credentials) *connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := creds.Fingerprint()
	conn, ok := r.conns[key]
	if !ok {
		conn = &connection{creds: creds, state: StateDisconnected}
		r.conns[key] = conn
	}
	return conn
}

// Acquire returns a connected client for the credentials, establishing
// or re-establishing the connection when needed. A Failed connection
// returns ErrConnectionFailed without touching the broker.
func (r *Registry) Acquire(ctx context.Context, creds Credentials) (connectors.BrokerAPI, error) {
	conn := r.connection(creds)

	conn.mu.Lock()
	defer conn.mu.Unlock()

	switch conn.state {
	case StateConnected:
		return conn.client, nil
	case StateFailed:
		return nil, fmt.Errorf("%w: account %s", ErrConnectionFailed, creds.AccountID)
	case StateReconnecting:
		// keep the Reconnecting label while probing
	default:
		conn.state = StateConnecting
	}

	logger.WithFields(map[string]interface{}{
		"fingerprint": creds.Fingerprint(),
		"account_id":  creds.AccountID,
		"environment": creds.Environment,
		"state":       conn.state,
	}).Info("Establishing broker connection")

	client := r.factory(creds)

	err := r.policy.Do(ctx, "broker connect", connectors.IsRetryable, func() error {
		_, probeErr := client.GetAccountSummary(ctx)
		return probeErr
	})
	if err != nil {
		conn.failures++
		conn.lastErr = err
		conn.state = StateFailed
		logger.WithFields(map[string]interface{}{
			"fingerprint": creds.Fingerprint(),
			"account_id":  creds.AccountID,
			"failures":    conn.failures,
		}).WithError(err).Error("Broker connection failed")
		return nil, fmt.Errorf("%w: account %s: %v", ErrConnectionFailed, creds.AccountID, err)
	}

	conn.client = client
	conn.state = StateConnected
	conn.failures = 0
	conn.lastErr = nil
	return client, nil
}

// ReportFailure moves a connection out of Connected after an I/O error
// during use. Auth errors go straight to Failed; transient errors mark
// the connection Reconnecting so the next Acquire re-probes.
func (r *Registry) ReportFailure(creds Credentials, err error) {
	conn := r.connection(creds)

	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.failures++
	conn.lastErr = err

	if errors.Is(err, connectors.ErrAuth) {
		conn.state = StateFailed
	} else {
		conn.state = StateReconnecting
	}

	logger.WithFields(map[string]interface{}{
		"fingerprint": creds.Fingerprint(),
		"account_id":  creds.AccountID,
		"state":       conn.state,
		"failures":    conn.failures,
	}).WithError(err).Warn("Broker connection degraded")
}

// Reset clears a Failed connection so sessions can try again.
func (r *Registry) Reset(creds Credentials) {
	conn := r.connection(creds)

	conn.mu.Lock()
	defer conn.mu.Unlock()

	conn.state = StateDisconnected
	conn.client = nil
	conn.failures = 0
	conn.lastErr = nil
}

// Snapshot returns the current state of every known connection.
func (r *Registry) Snapshot() []ConnectionStatus {
	r.mu.Lock()
	conns := make([]*connection, 0, len(r.conns))
	keys := make([]string, 0, len(r.conns))
	for key, conn := range r.conns {
		conns = append(conns, conn)
		keys = append(keys, key)
	}
	r.mu.Unlock()

	statuses := make([]ConnectionStatus, 0, len(conns))
	for i, conn := range conns {
		conn.mu.Lock()
		status := ConnectionStatus{
			Fingerprint: keys[i],
			AccountID:   conn.creds.AccountID,
			Environment: conn.creds.Environment,
			State:       conn.state,
			Failures:    conn.failures,
		}
		if conn.lastErr != nil {
			status.LastError = conn.lastErr.Error()
		}
		conn.mu.Unlock()
		statuses = append(statuses, status)
	}
	return statuses
}
