package gitsync

import "fmt"

// Kind classifies the terminal state of one sync attempt.
type Kind int

const (
	// UpToDate means there was nothing to reconcile: the branch already
	// matches its remote-tracking reference, the head is detached, or the
	// branch has no remote counterpart.
	UpToDate Kind = iota

	// FastForwarded means the local branch was moved forward to the
	// remote tip.
	FastForwarded

	// DivergedSkipped means local and remote each have commits the other
	// lacks; nothing was touched.
	DivergedSkipped

	// LocalChangesSkipped means the worktree had uncommitted
	// modifications; nothing was touched.
	LocalChangesSkipped
)

// Outcome is the result of a completed sync attempt. The skip kinds are
// successful no-ops that protect local state, not errors.
type Outcome struct {
	Kind Kind

	// Count is the number of commits the branch advanced by; only set for
	// FastForwarded.
	Count int
}

func (o Outcome) String() string {
	switch o.Kind {
	case FastForwarded:
		return fmt.Sprintf("fast-forwarded %d commit(s)", o.Count)
	case DivergedSkipped:
		return "diverged from remote, skipped"
	case LocalChangesSkipped:
		return "local changes present, skipped"
	default:
		return "up to date"
	}
}
