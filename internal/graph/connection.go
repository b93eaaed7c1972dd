package graph

// Connection is a directed edge between an output port and an input port.
// A connection with a nil endpoint is legal while a graph is under
// construction (e.g. from deserialization's first pass) but not once the
// engine attempts to run it.
type Connection struct {
	ID       string
	fromPort *Port
	toPort   *Port
}

// newConnection links from/to symmetrically into each other's connection
// sets and, when both endpoints are present, copies from's current value
// into to's cell directly (without propagation — that happens on the next
// explicit setValue).
func newConnection(id string, from, to *Port) *Connection {
	c := &Connection{ID: id, fromPort: from, toPort: to}

	if from != nil {
		from.addConnection(c)
	}
	if to != nil {
		to.addConnection(c)
	}
	if from != nil && to != nil {
		to.cell.value = from.cell.value
		to.cell.available = from.cell.available
	}

	return c
}

// FromPort returns the connection's output-side endpoint, or nil if
// unresolved.
func (c *Connection) FromPort() *Port { return c.fromPort }

// ToPort returns the connection's input-side endpoint, or nil if unresolved.
func (c *Connection) ToPort() *Port { return c.toPort }

// remove detaches the connection from both of its endpoints.
func (c *Connection) remove() {
	if c.fromPort != nil {
		c.fromPort.removeConnection(c)
	}
	if c.toPort != nil {
		c.toPort.removeConnection(c)
	}
}
