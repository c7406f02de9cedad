package consolidate

import (
	"context"
	"fmt"

	"github.com/Sumatoshi-tech/gitperf/internal/refs"
)

func (e *Engine) resolveOrEmpty(ctx context.Context, name string) (string, error) {
	oid, err := e.Refs.Resolve(ctx, name)
	if err != nil {
		return EmptyOID, nil
	}

	return oid, nil
}

// Append records one already-encoded measurement line against commit,
// without serializing against concurrent appenders in other processes
// (spec §4.4.1). Callers retry the whole call under backoff on a transient
// CAS failure (spec §4.5); Append itself performs no retrying.
func (e *Engine) Append(ctx context.Context, commit, line string) error {
	if err := e.ensureSymbolicWriteRefExists(ctx); err != nil {
		return err
	}

	targetRef, ok := e.Refs.ResolveSymbolic(ctx, WriteSymbolicRef)
	if !ok {
		return fmt.Errorf("write-symbolic ref %s vanished after creation", WriteSymbolicRef)
	}

	tipOID, err := e.resolveOrEmpty(ctx, targetRef)
	if err != nil {
		return err
	}

	addRef, err := tempRefName(addTargetPrefix)
	if err != nil {
		return err
	}

	if tipOID != EmptyOID {
		txn := refs.NewTransaction().Create(addRef, tipOID)
		if err := e.Refs.Commit(ctx, txn); err != nil {
			return fmt.Errorf("stage append ref %s: %w", addRef, err)
		}
	}

	tmp := &TempRef{engine: e, Name: addRef}

	defer func() { _ = tmp.Close(ctx) }()

	if err := e.Notes.Append(ctx, addRef, commit, line); err != nil {
		return err
	}

	newTip, err := e.Refs.Resolve(ctx, addRef)
	if err != nil {
		return fmt.Errorf("resolve staged append tip: %w", err)
	}

	txn := refs.NewTransaction().Update(targetRef, newTip, tipOID)
	if err := e.Refs.Commit(ctx, txn); err != nil {
		return fmt.Errorf("advance write target %s: %w", targetRef, err)
	}

	return nil
}
