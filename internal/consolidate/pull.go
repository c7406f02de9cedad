package consolidate

import (
	"context"
	"fmt"
)

// Pull fetches the canonical ref from remote, forcing a local update. No
// local merge is required: local appends live on separate write refs and
// are reconciled at push and read time (spec §4.4.4).
func (e *Engine) Pull(ctx context.Context, remote string) error {
	if remote == "" {
		if _, err := e.ensureRemoteExists(ctx); err != nil {
			return err
		}

		remote = DefaultRemote
	}

	refspec := fmt.Sprintf("+%s:%s", CanonicalRef, CanonicalRef)

	_, err := e.Runner.Capture(ctx, "fetch", "--atomic", "--no-write-fetch-head", remote, refspec)
	if err != nil {
		return fmt.Errorf("fetch canonical measurements from %s: %w", remote, err)
	}

	return nil
}
