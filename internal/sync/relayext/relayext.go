// Package relayext implements the optional relay (multi-peer sync)
// extension: a raft-replicated command log that carries origin-tagged
// KV updates between peers, then re-applies each committed command to
// the local kv.Log via ApplyRemote so the log's own LWW rule decides
// the winner exactly as it would for any other remote update.
//
// A BoltDB-backed raft.Raft instance, a json Command envelope applied
// through the FSM, and a snapshot/restore pair that serializes the
// full keyspace rather than individual log entries.
package relayext

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/loomhq/workspace/internal/kv"
	"github.com/loomhq/workspace/internal/workspace"
)

// Join describes an existing cluster member to contact. Relayext does
// not implement the join RPC itself (that belongs to whatever
// transport the host application already has, e.g. the engine's own
// gRPC/HTTP surface) — Join only tells Bootstrap-mode raft.Raft to
// skip self-bootstrapping, and AddVoter (called on the existing
// leader, out of band) does the rest.
type Join struct {
	LeaderAddr string
}

// Config configures one relay extension instance.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
	// Bootstrap starts a brand-new single-node cluster, with this node
	// as its only voter. Exactly one of Bootstrap or Join should be set.
	Bootstrap bool
	Join      *Join
	// LogNames are the named kv.Logs this extension replicates.
	LogNames []string
}

// command is the raft log entry envelope: which named log an entry
// belongs to, carrying the entry itself.
type command struct {
	LogName string   `json:"log"`
	Entry   kv.Entry `json:"entry"`
}

// Extension is a workspace.Extension backing one replicated node.
type Extension struct {
	cfg  Config
	logs map[string]*kv.Log

	raft      *raft.Raft
	transport *raft.NetworkTransport
	fsm       *fsm
}

// Factory builds a workspace.ExtensionFactory opening a kv.Log per
// cfg.LogNames over the client's document.
func Factory(cfg Config) workspace.ExtensionFactory {
	return func(c *workspace.Client) workspace.Extension {
		logs := make(map[string]*kv.Log, len(cfg.LogNames))
		for _, name := range cfg.LogNames {
			logs[name] = kv.New(c.Doc(), name)
		}
		return &Extension{cfg: cfg, logs: logs, fsm: newFSM(logs)}
	}
}

// Key identifies this extension to Client.Extension.
func (e *Extension) Key() string { return "sync" }

// WhenReady stands up the raft node: transport, bolt-backed log/stable
// stores, file snapshot store, and either bootstraps a new
// single-node cluster or joins an existing one's configuration.
func (e *Extension) WhenReady(ctx context.Context) error {
	if err := os.MkdirAll(e.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("relayext: data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(e.cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", e.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("relayext: resolve bind addr: %w", err)
	}
	transport, err := raft.NewTCPTransport(e.cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return fmt.Errorf("relayext: transport: %w", err)
	}
	e.transport = transport

	snapshotStore, err := raft.NewFileSnapshotStore(e.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return fmt.Errorf("relayext: snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return fmt.Errorf("relayext: log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(e.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return fmt.Errorf("relayext: stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, e.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return fmt.Errorf("relayext: new raft: %w", err)
	}
	e.raft = r

	if e.cfg.Bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		})
		if err := future.Error(); err != nil {
			return fmt.Errorf("relayext: bootstrap: %w", err)
		}
	} else if e.cfg.Join != nil {
		if err := e.WaitForLeader(ctx); err != nil {
			return fmt.Errorf("relayext: join handshake: %w", err)
		}
	}

	return nil
}

// waitForLeaderMaxElapsed bounds how long a joining node keeps
// retrying the handshake before giving up.
const waitForLeaderMaxElapsed = 10 * time.Second

func newWaitForLeaderBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = waitForLeaderMaxElapsed
	return backoff.WithContext(bo, ctx)
}

// WaitForLeader retries, with exponential backoff, until this node
// observes a cluster leader. A node joining an existing cluster calls
// this right after raft.NewRaft starts so the handshake either
// confirms cluster contact or times out, rather than returning from
// WhenReady leaderless and silent.
func (e *Extension) WaitForLeader(ctx context.Context) error {
	return backoff.Retry(func() error {
		if e.LeaderAddr() != "" {
			return nil
		}
		return fmt.Errorf("relayext: no leader yet")
	}, newWaitForLeaderBackoff(ctx))
}

// Propose replicates a single key write to logName across the
// cluster, returning once a quorum has committed it. Must be called
// on the leader (callers can check IsLeader first).
func (e *Extension) Propose(logName, key string, val any) error {
	return e.apply(command{LogName: logName, Entry: kv.Entry{Key: key, Val: val, Ts: time.Now().UnixNano()}})
}

// ProposeDelete replicates a tombstone for key in logName.
func (e *Extension) ProposeDelete(logName, key string) error {
	return e.apply(command{LogName: logName, Entry: kv.Entry{Key: key, Ts: time.Now().UnixNano(), Tomb: true}})
}

// applyRetryMaxElapsed bounds how long apply retries a command that
// keeps hitting a leaderless or mid-election cluster.
const applyRetryMaxElapsed = 5 * time.Second

func newApplyRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = applyRetryMaxElapsed
	return bo
}

func (e *Extension) apply(cmd command) error {
	if e.raft == nil {
		return fmt.Errorf("relayext: not started")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("relayext: marshal command: %w", err)
	}

	return backoff.Retry(func() error {
		future := e.raft.Apply(data, 5*time.Second)
		if err := future.Error(); err != nil {
			if err == raft.ErrNotLeader || err == raft.ErrLeadershipLost {
				return err // transient during elections; backoff will retry
			}
			return backoff.Permanent(fmt.Errorf("relayext: apply: %w", err))
		}
		if resp := future.Response(); resp != nil {
			if respErr, ok := resp.(error); ok && respErr != nil {
				return backoff.Permanent(respErr)
			}
		}
		return nil
	}, newApplyRetryBackoff())
}

// IsLeader reports whether this node currently holds raft leadership.
func (e *Extension) IsLeader() bool {
	return e.raft != nil && e.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's raft bind address, if known.
func (e *Extension) LeaderAddr() string {
	if e.raft == nil {
		return ""
	}
	return string(e.raft.Leader())
}

// AddVoter admits nodeID at address to the cluster. Must be called on
// the leader.
func (e *Extension) AddVoter(nodeID, address string) error {
	if !e.IsLeader() {
		return fmt.Errorf("relayext: not leader")
	}
	future := e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// Destroy shuts down the raft node.
func (e *Extension) Destroy(ctx context.Context) error {
	if e.raft == nil {
		return nil
	}
	return e.raft.Shutdown().Error()
}

// fsm applies committed commands to the named logs they target.
type fsm struct {
	mu   sync.Mutex
	logs map[string]*kv.Log
}

func newFSM(logs map[string]*kv.Log) *fsm { return &fsm{logs: logs} }

func (f *fsm) Apply(l *raft.Log) interface{} {
	var cmd command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("relayext: unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	log, ok := f.logs[cmd.LogName]
	if !ok {
		return fmt.Errorf("relayext: unknown log %q", cmd.LogName)
	}
	log.ApplyRemote([]kv.Entry{cmd.Entry})
	return nil
}

// snapshot captures every live entry of every replicated log, so a
// joining node can catch up without replaying the whole raft log.
type snapshot struct {
	Entries map[string][]kv.Entry `json:"entries"`
}

func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries := make(map[string][]kv.Entry, len(f.logs))
	for name, log := range f.logs {
		entries[name] = log.Entries()
	}
	return &snapshot{Entries: entries}, nil
}

func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("relayext: decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for name, entries := range snap.Entries {
		log, ok := f.logs[name]
		if !ok {
			continue
		}
		log.ApplyRemote(entries)
	}
	return nil
}

func (s *snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *snapshot) Release() {}
