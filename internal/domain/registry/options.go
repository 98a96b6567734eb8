package registry

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithNode sets the node id stamped into the high 8 bits of every handle
// this registry mints.
func WithNode(node uint8) Option {
	return func(r *Registry) { r.node = node }
}

// WithSlotSize overrides the initial slot table size (before any
// doubling). Must be a power of two; New does not validate this since
// the only callers are this package's own tests.
func WithSlotSize(size uint32) Option {
	return func(r *Registry) { r.slotSize = size }
}
