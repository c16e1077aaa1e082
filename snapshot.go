package match

// OrderBookSnapshot contains the full state of a single OrderBook.
// Bids and Asks are ordered best price first, time priority within a
// price, so restoring by insertion in slice order is exact.
type OrderBookSnapshot struct {
	Instrument string  `json:"instrument"`
	BidOrderID uint64  `json:"bid_order_id"` // Last allocated bid order id
	AskOrderID uint64  `json:"ask_order_id"` // Last allocated ask order id
	Bids       []Order `json:"bids"`
	Asks       []Order `json:"asks"`
}

// SnapshotMetadata holds the global metadata for a snapshot (stored in metadata.json).
type SnapshotMetadata struct {
	SchemaVersion    int    `json:"schema_version"`
	SnapshotID       string `json:"snapshot_id"` // Globally unique id for this snapshot
	Timestamp        int64  `json:"timestamp"`   // Unix nano
	EngineVersion    string `json:"engine_version"`
	SnapshotChecksum uint32 `json:"snapshot_checksum"` // CRC32 of the entire snapshot.bin file
}

// SnapshotFileFooter is the footer structure stored at the end of snapshot.bin.
// Layout: [SegmentData...][FooterJSON][FooterLength(4 bytes)]
type SnapshotFileFooter struct {
	Instruments []InstrumentSegment `json:"instruments"` // Index of instrument data in this file
}

// InstrumentSegment locates one instrument's data within snapshot.bin.
type InstrumentSegment struct {
	Instrument string `json:"instrument"`
	Offset     int64  `json:"offset"`   // Start offset relative to file start
	Length     int64  `json:"length"`   // Length in bytes
	Checksum   uint32 `json:"checksum"` // CRC32 checksum of this segment
}
