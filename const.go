package match

const (
	// EngineVersion is the current version of the matching engine
	EngineVersion = "v1.0.0"

	// SnapshotSchemaVersion is the current version of the snapshot schema
	// Increment this when the snapshot format changes in a backward-incompatible way
	SnapshotSchemaVersion = 1

	// cmdChanCapacity is the buffer size of each order book's command channel.
	cmdChanCapacity = 32768
)
