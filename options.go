package delve

// WorldOptions configures a new world.
type WorldOptions struct {
	// InitialEntityCapacity pre-sizes the allocator and record table.
	InitialEntityCapacity int
	// InitialRowCapacity pre-sizes each new archetype's columns.
	InitialRowCapacity int
	// RecordEvents enables the event queue's recording log.
	RecordEvents bool
}

// DefaultWorldOptions returns the defaults used by Factory.NewWorld.
func DefaultWorldOptions() WorldOptions {
	return WorldOptions{
		InitialEntityCapacity: 1024,
		InitialRowCapacity:    64,
	}
}
