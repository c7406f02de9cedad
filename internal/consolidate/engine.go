package consolidate

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/gitperf/internal/notes"
	"github.com/Sumatoshi-tech/gitperf/internal/refs"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// EmptyOID is the all-zero object id git uses to mean "ref does not exist".
const EmptyOID = refs.ZeroOID

// Engine implements the write/read/push/pull/removal protocols for one
// repository working directory.
type Engine struct {
	Runner *vcs.Runner
	Refs   *refs.Manager
	Notes  *notes.Store
}

// New returns an Engine backed by r.
func New(r *vcs.Runner) *Engine {
	return &Engine{
		Runner: r,
		Refs:   refs.New(r),
		Notes:  notes.New(r),
	}
}

func randomSuffix() (string, error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate random ref suffix: %w", err)
	}

	return fmt.Sprintf("%08x", binary.BigEndian.Uint32(buf[:])), nil
}

func tempRefName(prefix string) (string, error) {
	suffix, err := randomSuffix()
	if err != nil {
		return "", err
	}

	return prefix + suffix, nil
}

// TempRef is a scoped temporary reference: Close deletes it unconditionally,
// mirroring the Rust TempRef/Drop pattern (git_interop.rs).
type TempRef struct {
	engine *Engine
	Name   string
}

// newTempRef creates ref at startOID (EmptyOID to leave it absent until the
// caller performs its own update) and returns a handle whose Close removes
// it.
func (e *Engine) newTempRef(ctx context.Context, prefix, startOID string) (*TempRef, error) {
	name, err := tempRefName(prefix)
	if err != nil {
		return nil, err
	}

	if startOID != EmptyOID {
		txn := refs.NewTransaction().Create(name, startOID)
		if err := e.Refs.Commit(ctx, txn); err != nil {
			return nil, fmt.Errorf("create temp ref %s: %w", name, err)
		}
	}

	return &TempRef{engine: e, Name: name}, nil
}

// Close deletes the temp ref unconditionally. Safe to call even if the ref
// was never actually created (e.g. startOID was EmptyOID and the caller
// never installed it).
func (t *TempRef) Close(ctx context.Context) error {
	oid, err := t.engine.Refs.Resolve(ctx, t.Name)
	if err != nil {
		return nil
	}

	txn := refs.NewTransaction().Delete(t.Name, oid)

	return t.engine.Refs.Commit(ctx, txn)
}

// ensureRemoteExists makes sure a remote dedicated to git-perf sync exists,
// defaulting its URL from origin the first time it is needed (spec's
// "remote auto-provisioning" ambient addition; grounded on
// ensure_remote_exists in git_interop.rs).
func (e *Engine) ensureRemoteExists(ctx context.Context) (string, error) {
	if url, err := e.remoteURL(ctx, DefaultRemote); err == nil {
		return url, nil
	}

	url, err := e.remoteURL(ctx, OriginRemote)
	if err != nil {
		return "", vcs.ErrNoUpstream
	}

	if _, err := e.Runner.Capture(ctx, "remote", "add", DefaultRemote, url); err != nil {
		return "", fmt.Errorf("provision remote %s: %w", DefaultRemote, err)
	}

	return url, nil
}

func (e *Engine) remoteURL(ctx context.Context, remote string) (string, error) {
	out, err := e.Runner.Capture(ctx, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(out.Stdout), nil
}

// ensureSymbolicWriteRefExists installs the write-symbolic ref the first
// time it is needed, tolerating a concurrent peer winning the race (spec
// §4.4.1 step 1).
func (e *Engine) ensureSymbolicWriteRefExists(ctx context.Context) error {
	if _, err := e.Refs.Resolve(ctx, WriteSymbolicRef); err == nil {
		return nil
	}

	target, err := tempRefName(writeTargetPrefix)
	if err != nil {
		return err
	}

	if err := e.Refs.CreateOrUpdateSymbolic(ctx, WriteSymbolicRef, target); err != nil {
		if _, resolveErr := e.Refs.Resolve(ctx, WriteSymbolicRef); resolveErr == nil {
			return nil
		}

		return fmt.Errorf("create write-symbolic ref: %w", err)
	}

	return nil
}

// newSymbolicWriteRef rotates the write-symbolic ref to a freshly named
// target and returns that target's name (spec §4.4.3 step 1).
func (e *Engine) newSymbolicWriteRef(ctx context.Context) (string, error) {
	target, err := tempRefName(writeTargetPrefix)
	if err != nil {
		return "", err
	}

	if err := e.Refs.CreateOrUpdateSymbolic(ctx, WriteSymbolicRef, target); err != nil {
		return "", fmt.Errorf("rotate write-symbolic ref: %w", err)
	}

	return target, nil
}

// consolidateInto merges every `<base>-write-<rand>` ref except exclude into
// dstRef (already pinned to baseline), returning the set of refs consumed so
// the caller can delete them once the merge result has been durably
// recorded (spec §4.4.2 step 3, §4.4.3 steps 4-6).
func (e *Engine) consolidateInto(ctx context.Context, dstRef, exclude string) ([]refs.Ref, error) {
	all, err := e.Refs.ForEach(ctx, writeTargetPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("enumerate write refs: %w", err)
	}

	var consumed []refs.Ref

	for _, ref := range all {
		if ref.Name == exclude {
			continue
		}

		if err := e.Notes.Merge(ctx, dstRef, ref.Name); err != nil {
			return nil, fmt.Errorf("merge %s into %s: %w", ref.Name, dstRef, err)
		}

		consumed = append(consumed, ref)
	}

	return consumed, nil
}
