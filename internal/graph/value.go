package graph

// Value is the unique mutable point for a port's current datum. All other
// reads of a port's data go through a view of this cell.
//
// A fresh cell with no value is {nil, false, false}. Setting a value always
// makes it both available and reliable; reliability can later be revoked
// independently by the propagation protocol in Port.setValue without
// touching availability.
type Value struct {
	value     any
	available bool
	reliable  bool
}

// Get returns the current opaque value.
func (c *Value) Get() any {
	return c.value
}

// Set stores v and marks the cell available and reliable.
func (c *Value) Set(v any) {
	c.value = v
	c.available = true
	c.reliable = true
}

// MarkReliable flips the reliable flag on without touching the value or
// availability.
func (c *Value) MarkReliable() {
	c.reliable = true
}

// MarkUnreliable flips the reliable flag off without touching the value or
// availability.
func (c *Value) MarkUnreliable() {
	c.reliable = false
}

// MarkUnavailable clears both availability and reliability; the value itself
// is left untouched so a later MarkReliable observer cannot mistake a stale
// holdover for fresh data.
func (c *Value) MarkUnavailable() {
	c.available = false
	c.reliable = false
}

// IsAvailable reports whether the cell currently holds a value that was ever
// set.
func (c *Value) IsAvailable() bool {
	return c.available
}

// IsReliable reports whether the cell's value reflects the latest upstream
// computation.
func (c *Value) IsReliable() bool {
	return c.reliable
}
