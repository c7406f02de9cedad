package consolidate

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/gitperf/internal/refs"
	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// Push consolidates every pending local write ref into the remote canonical
// ref under compare-and-swap, absorbing any concurrent local appends (spec
// §4.4.3). A single call performs one attempt; the retry controller invokes
// it again (with a Pull in between) on a transient failure.
func (e *Engine) Push(ctx context.Context, remote string) error {
	remoteName, err := e.resolveRemote(ctx, remote)
	if err != nil {
		return err
	}

	newWriteRef, err := e.newSymbolicWriteRef(ctx)
	if err != nil {
		return err
	}

	mergeRef, err := tempRefName(mergeBranchPrefix)
	if err != nil {
		return err
	}

	tmp := &TempRef{engine: e, Name: mergeRef}

	defer func() { _ = tmp.Close(ctx) }()

	upstreamObs, err := e.resolveOrEmpty(ctx, CanonicalRef)
	if err != nil {
		return err
	}

	pin := refs.NewTransaction().
		Verify(CanonicalRef, upstreamObs).
		Update(mergeRef, upstreamObs, EmptyOID)
	if err := e.Refs.Commit(ctx, pin); err != nil {
		return fmt.Errorf("pin merge baseline: %w", err)
	}

	consumed, err := e.consolidateInto(ctx, mergeRef, newWriteRef)
	if err != nil {
		return err
	}

	if len(consumed) == 0 && upstreamObs == EmptyOID {
		return vcs.ErrMissingMeasurements
	}

	if err := e.pushNotesRef(ctx, remoteName, upstreamObs, mergeRef); err != nil {
		return err
	}

	if err := e.Pull(ctx, remoteName); err != nil {
		return fmt.Errorf("fetch canonical after push: %w", err)
	}

	return e.deleteConsumedWriteRefs(ctx, consumed)
}

func (e *Engine) resolveRemote(ctx context.Context, remote string) (string, error) {
	if remote != "" {
		return remote, nil
	}

	if _, err := e.ensureRemoteExists(ctx); err != nil {
		return "", err
	}

	return DefaultRemote, nil
}

// pushNotesRef performs the server-side CAS push and classifies the result
// by scanning porcelain output for the canonical ref's status line (spec
// §4.4.3 step 8).
func (e *Engine) pushNotesRef(ctx context.Context, remote, expectedUpstream, pushRef string) error {
	lease := fmt.Sprintf("--force-with-lease=%s:%s", CanonicalRef, expectedUpstream)
	refspec := fmt.Sprintf("%s:%s", pushRef, CanonicalRef)

	out, err := e.Runner.Capture(ctx, "push", "--porcelain", lease, remote, refspec)
	if err == nil {
		return nil
	}

	var execErr *vcs.ExecError
	if !isExecError(err, &execErr) {
		return err
	}

	if pushSucceeded(out.Stdout) {
		return nil
	}

	return fmt.Errorf("push measurements to %s: %w", remote, vcs.ErrRefFailedToPush)
}

func isExecError(err error, target **vcs.ExecError) bool {
	e, ok := err.(*vcs.ExecError) //nolint:errorlint // narrow unwrap for porcelain inspection
	if ok {
		*target = e
	}

	return ok
}

func pushSucceeded(porcelain string) bool {
	marker := ":" + CanonicalRef + "\t"

	for _, line := range strings.Split(porcelain, "\n") {
		if strings.Contains(line, marker) && !strings.HasPrefix(line, "!") {
			return true
		}
	}

	return false
}

func (e *Engine) deleteConsumedWriteRefs(ctx context.Context, consumed []refs.Ref) error {
	if len(consumed) == 0 {
		return nil
	}

	txn := refs.NewTransaction()
	for _, ref := range consumed {
		txn.Delete(ref.Name, ref.OID)
	}

	if err := e.Refs.Commit(ctx, txn); err != nil {
		return fmt.Errorf("delete consumed write refs: %w", err)
	}

	return nil
}
