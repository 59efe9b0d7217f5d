package softdelete

import "context"

// Predicate reports whether id denotes an entity.
type Predicate func(ctx context.Context, id string) (bool, error)

// Any returns the short-circuit disjunction of preds, evaluated in order.
// Nil predicates are skipped. The first error stops evaluation.
func Any(preds ...Predicate) Predicate {
	return func(ctx context.Context, id string) (bool, error) {
		for _, p := range preds {
			if p == nil {
				continue
			}
			ok, err := p(ctx, id)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// ExistenceChecker extends a base existence predicate so that tombstoned ids
// still exist. Base is asked first; Deleted is consulted only when Base says no.
type ExistenceChecker struct {
	Base    Predicate
	Deleted Predicate
}

// Exists reports whether id is a live or tombstoned entity.
func (c ExistenceChecker) Exists(ctx context.Context, id string) (bool, error) {
	return Any(c.Base, c.Deleted)(ctx, id)
}
