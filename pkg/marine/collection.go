package marine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/ids"
	"github.com/ssargent/marinedb/pkg/store"
)

type record interface {
	store.Record
	owner() string
}

// collection is the lookup, authorize, write sequence shared by both services.
// It holds no locks: callers deliver one operation at a time.
type collection[T record] struct {
	entity     string
	ids        *ids.Allocator
	store      *store.Store[T]
	clock      Clock
	allowEmpty bool
	logger     *zap.SugaredLogger
}

func (c *collection[T]) notFound(id uint64) error {
	return &NotFoundError{Entity: c.entity, ID: id}
}

func (c *collection[T]) get(id uint64) (T, error) {
	rec, ok, err := c.store.Get(id)
	if err != nil {
		return rec, fmt.Errorf("get %s %d: %w", c.entity, id, err)
	}
	if !ok {
		return rec, c.notFound(id)
	}
	return rec, nil
}

// list returns every record accepted by keep, ascending by id. An empty result
// is a NotFoundError carrying emptyMsg unless empty results are allowed.
func (c *collection[T]) list(keep func(T) bool, emptyMsg string) ([]T, error) {
	out := []T{}
	it := c.store.Iterate()
	for it.Next() {
		if keep == nil || keep(it.Value()) {
			out = append(out, it.Value())
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", c.entity, err)
	}
	if len(out) == 0 && !c.allowEmpty {
		return nil, &NotFoundError{Entity: c.entity, Msg: emptyMsg}
	}
	return out, nil
}

// create checks the size bound with the id the allocator will hand out next,
// so a payload that cannot be stored never consumes an id. Operations run one
// at a time, so nothing else can take that id in between.
func (c *collection[T]) create(caller auth.Principal, build func(id uint64, owner string, now uint64) T) (T, error) {
	if err := auth.RequireIdentity(caller); err != nil {
		var zero T
		return zero, err
	}
	now := c.clock.Now()
	owner := caller.String()

	if err := c.store.Fits(build(c.ids.Current()+1, owner, now)); err != nil {
		var zero T
		return zero, err
	}

	id, err := c.ids.Allocate()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("create %s: %w", c.entity, err)
	}

	rec := build(id, owner, now)
	if err := c.store.Insert(id, rec); err != nil {
		var zero T
		return zero, fmt.Errorf("create %s %d: %w", c.entity, id, err)
	}
	c.logger.Debugw("created", "entity", c.entity, "id", id, "researcher", owner)
	return rec, nil
}

// update loads id, checks ownership, lets change modify a copy and writes it
// back. Nothing is written unless every step succeeds.
func (c *collection[T]) update(id uint64, caller auth.Principal, change func(rec *T, now uint64)) (T, error) {
	rec, err := c.get(id)
	if err != nil {
		return rec, err
	}
	if err := auth.Authorize(auth.Principal(rec.owner()), caller); err != nil {
		var zero T
		return zero, err
	}

	change(&rec, c.clock.Now())
	if err := c.store.Insert(id, rec); err != nil {
		var zero T
		return zero, err
	}
	c.logger.Debugw("updated", "entity", c.entity, "id", id, "researcher", caller.String())
	return rec, nil
}

func (c *collection[T]) remove(id uint64, caller auth.Principal) (T, error) {
	rec, err := c.get(id)
	if err != nil {
		return rec, err
	}
	if err := auth.Authorize(auth.Principal(rec.owner()), caller); err != nil {
		var zero T
		return zero, err
	}

	removed, ok, err := c.store.Remove(id)
	if err != nil {
		return removed, fmt.Errorf("delete %s %d: %w", c.entity, id, err)
	}
	if !ok {
		return removed, c.notFound(id)
	}
	c.logger.Debugw("deleted", "entity", c.entity, "id", id, "researcher", caller.String())
	return removed, nil
}

// pick loads ids in order and keeps those accepted by keep. Ids that no longer
// resolve are skipped. Empty results follow the same policy as list.
func (c *collection[T]) pick(ids []uint64, keep func(T) bool, emptyMsg string) ([]T, error) {
	out := []T{}
	for _, id := range ids {
		rec, ok, err := c.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("get %s %d: %w", c.entity, id, err)
		}
		if ok && (keep == nil || keep(rec)) {
			out = append(out, rec)
		}
	}
	if len(out) == 0 && !c.allowEmpty {
		return nil, &NotFoundError{Entity: c.entity, Msg: emptyMsg}
	}
	return out, nil
}

func (c *collection[T]) count() (int, error) {
	return c.store.Len()
}
