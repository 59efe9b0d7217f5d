package softdelete

import (
	"context"
	"fmt"
)

// Violation classifies an inconsistency between set membership and flag.
type Violation int

const (
	// ViolationNone means the id is in exactly one set and the flag agrees.
	ViolationNone Violation = iota

	// ViolationBoth means the id is in both the live and deleted sets.
	ViolationBoth

	// ViolationNeither means the id is in neither set.
	ViolationNeither

	// ViolationFlagMismatch means the id is in one set but the flag says otherwise.
	ViolationFlagMismatch
)

func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationBoth:
		return "both"
	case ViolationNeither:
		return "neither"
	case ViolationFlagMismatch:
		return "flag_mismatch"
	default:
		return fmt.Sprintf("violation(%d)", int(v))
	}
}

// Report is the observed index state of one id.
type Report struct {
	ID        string
	Live      bool
	Deleted   bool
	Flag      Flag
	Violation Violation
}

// Audit reads the three pieces of state for id and classifies them.
//
// The reads are separate and not isolated from concurrent transitions, so a
// single report can be torn; confirm a violation before acting on it. Audit
// is meant for ids known to have been created: an id that never existed
// reports ViolationNeither.
func (c *Controller) Audit(ctx context.Context, id string) (Report, error) {
	if id == "" {
		return Report{}, ErrInvalidID
	}
	r := Report{ID: id}

	var err error
	if r.Live, err = c.sets.IsMember(ctx, c.config.LiveSet, id); err != nil {
		return r, fmt.Errorf("audit %s %q: live membership: %w", c.config.EntityType, id, err)
	}
	if r.Deleted, err = c.sets.IsMember(ctx, c.config.DeletedSet, id); err != nil {
		return r, fmt.Errorf("audit %s %q: deleted membership: %w", c.config.EntityType, id, err)
	}
	raw, present, err := c.store.Field(ctx, c.layout.Attributes(id), c.config.FlagField)
	if err != nil {
		return r, fmt.Errorf("audit %s %q: flag: %w", c.config.EntityType, id, err)
	}
	r.Flag = ParseFlag(raw, present)

	switch {
	case r.Live && r.Deleted:
		r.Violation = ViolationBoth
	case !r.Live && !r.Deleted:
		r.Violation = ViolationNeither
	case r.Deleted != r.Flag.Deleted():
		r.Violation = ViolationFlagMismatch
	}

	if r.Violation != ViolationNone {
		c.config.Metrics.observeViolation(c.config.EntityType, r.Violation)
		c.config.Logger.Error("soft delete index inconsistent",
			"entityType", c.config.EntityType,
			"id", id,
			"violation", r.Violation.String(),
			"live", r.Live,
			"deleted", r.Deleted,
			"flag", r.Flag.String(),
		)
	}
	return r, nil
}
