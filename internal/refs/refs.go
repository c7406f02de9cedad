// Package refs implements the reference manager (spec §4.2): creating,
// CAS-updating, deleting, and enumerating references under git-perf's
// namespace, via batched atomic reference-transaction scripts. It has no
// rename operation.
package refs

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/gitperf/internal/vcs"
)

// ZeroOID is the all-zero object id used by update-ref transactions to mean
// "ref must not currently exist" (create) or "delete regardless of current
// value" depending on position.
const ZeroOID = "0000000000000000000000000000000000000000"

// Ref is a (name, object id) pair as returned by for-each-ref.
type Ref struct {
	Name string
	OID  string
}

// Manager resolves and mutates references for one repository.
type Manager struct {
	Runner *vcs.Runner
}

// New returns a Manager backed by r.
func New(r *vcs.Runner) *Manager {
	return &Manager{Runner: r}
}

// Resolve verifies name and returns its object id. A missing ref is
// reported as vcs.ErrMissingHead.
func (m *Manager) Resolve(ctx context.Context, name string) (string, error) {
	out, err := m.Runner.Capture(ctx, "rev-parse", "--verify", "-q", name)
	if err != nil {
		return "", &vcs.MissingHeadError{Reference: name}
	}

	return strings.TrimSpace(out.Stdout), nil
}

// ResolveSymbolic returns the ref name that a symbolic ref currently points
// at. ok is false if name does not exist or is not symbolic.
func (m *Manager) ResolveSymbolic(ctx context.Context, name string) (target string, ok bool) {
	out, err := m.Runner.Capture(ctx, "symbolic-ref", "-q", name)
	if err != nil {
		return "", false
	}

	return strings.TrimSpace(out.Stdout), true
}

// CreateOrUpdateSymbolic points the symbolic ref name at target. This is not
// atomic with other ref operations (spec §4.4.1 step 1, §5): callers must
// tolerate a concurrent peer winning the race and adopt whatever target
// ends up installed.
func (m *Manager) CreateOrUpdateSymbolic(ctx context.Context, name, target string) error {
	_, err := m.Runner.Capture(ctx, "symbolic-ref", name, target)
	if err != nil {
		return vcs.ClassifyError([]string{"symbolic-ref", name, target}, errOutput(err))
	}

	return nil
}

func errOutput(err error) vcs.Output {
	var execErr *vcs.ExecError
	if ok := asExecError(err, &execErr); ok {
		return execErr.Output
	}

	return vcs.Output{}
}

func asExecError(err error, target **vcs.ExecError) bool {
	e, ok := err.(*vcs.ExecError) //nolint:errorlint // narrow unwrap, immediately re-classified
	if ok {
		*target = e
	}

	return ok
}

// Transaction accumulates a batched update-ref --stdin script (spec §4.2,
// grammar in the design). Commands are applied atomically: any verify or
// expected-oid mismatch aborts the whole script.
type Transaction struct {
	lines []string
}

// NewTransaction returns an empty transaction script.
func NewTransaction() *Transaction {
	return &Transaction{}
}

// Create adds a `create <ref> <oid>` command.
func (t *Transaction) Create(ref, oid string) *Transaction {
	t.lines = append(t.lines, fmt.Sprintf("create %s %s", ref, oid))
	return t
}

// Update adds an `update <ref> <oid> <expected>` command. An empty expected
// means "no old-value check" (git update-ref treats a missing third field
// that way); pass refs.ZeroOID to require the ref not previously exist.
func (t *Transaction) Update(ref, oid, expected string) *Transaction {
	if expected == "" {
		t.lines = append(t.lines, fmt.Sprintf("update %s %s", ref, oid))
	} else {
		t.lines = append(t.lines, fmt.Sprintf("update %s %s %s", ref, oid, expected))
	}

	return t
}

// Delete adds a `delete <ref> [<expected>]` command.
func (t *Transaction) Delete(ref, expected string) *Transaction {
	if expected == "" {
		t.lines = append(t.lines, fmt.Sprintf("delete %s", ref))
	} else {
		t.lines = append(t.lines, fmt.Sprintf("delete %s %s", ref, expected))
	}

	return t
}

// Verify adds a `verify <ref> <expected>` command.
func (t *Transaction) Verify(ref, expected string) *Transaction {
	t.lines = append(t.lines, fmt.Sprintf("verify %s %s", ref, expected))
	return t
}

// Empty reports whether the script has no commands queued.
func (t *Transaction) Empty() bool {
	return len(t.lines) == 0
}

func (t *Transaction) script() string {
	var b strings.Builder

	b.WriteString("start\n")

	for _, l := range t.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}

	b.WriteString("commit\n")

	return b.String()
}

// Commit feeds the accumulated script to `git update-ref --no-deref
// --stdin`. --no-deref ensures symbolic refs in the script are updated
// themselves rather than their current target (spec §4.2).
func (m *Manager) Commit(ctx context.Context, t *Transaction) error {
	if t.Empty() {
		return nil
	}

	out, err := m.Runner.Feed(ctx, []string{"update-ref", "--no-deref", "--stdin"}, strings.NewReader(t.script()))
	if err != nil {
		return vcs.ClassifyError([]string{"update-ref"}, out)
	}

	return nil
}

// ForEach enumerates (refname, oid) pairs whose name matches pattern (a
// for-each-ref glob, e.g. "refs/notes/perf-v3-write-*").
func (m *Manager) ForEach(ctx context.Context, pattern string) ([]Ref, error) {
	out, err := m.Runner.Capture(ctx, "for-each-ref", "--format=%(refname)%00%(objectname)", pattern)
	if err != nil {
		return nil, fmt.Errorf("enumerate refs under %s: %w", pattern, err)
	}

	var refs []Ref

	for _, line := range strings.Split(out.Stdout, "\n") {
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, "\x00", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed for-each-ref line: %q", line)
		}

		refs = append(refs, Ref{Name: parts[0], OID: parts[1]})
	}

	return refs, nil
}
