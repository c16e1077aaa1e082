package match

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
)

// MatchingEngine manages the order books of all instruments. Books are
// created lazily on the first order for a symbol and live for the rest of
// the engine's life: a symbol with empty books is a valid, permanent
// entry. All calls for one instrument are serialized by that instrument's
// book loop; calls for different instruments run in parallel.
type MatchingEngine struct {
	isShutdown atomic.Bool
	orderbooks sync.Map // instrument symbol -> *OrderBook
	sink       NotificationSink
	bookOpts   []OrderBookOption
}

// NewMatchingEngine creates a new matching engine instance. Every book
// the engine creates reports to sink; bookOpts apply to each new book.
func NewMatchingEngine(sink NotificationSink, bookOpts ...OrderBookOption) *MatchingEngine {
	return &MatchingEngine{
		sink:     sink,
		bookOpts: bookOpts,
	}
}

// AddOrder submits a limit order for an instrument, creating the
// instrument's book on first use. It returns the allocated order id once
// matching has completed and all notifications have been delivered; the
// id is real whether the order rests, partially trades, or trades away
// completely. price is in ticks and must be positive; quantity must be
// positive. Invalid input fails before any state change, including the
// implicit instrument creation.
func (engine *MatchingEngine) AddOrder(instrument string, side Side, price int64, quantity uint32) (uint64, error) {
	if engine.isShutdown.Load() {
		return 0, ErrShutdown
	}

	if len(instrument) == 0 {
		return 0, ErrInvalidParam
	}
	if price <= 0 {
		return 0, ErrInvalidPrice
	}
	if quantity == 0 {
		return 0, ErrInvalidQuantity
	}

	return engine.orderBook(instrument).AddOrder(side, price, quantity)
}

// RemoveOrder cancels a resting order. It returns false, a routine
// negative result rather than an error, when the instrument is unknown or
// the id is not resting on that side (already filled, already cancelled,
// or never existed). A second call with the same id therefore returns
// false. Unknown instruments are not created by RemoveOrder.
func (engine *MatchingEngine) RemoveOrder(instrument string, side Side, orderID uint64) bool {
	if engine.isShutdown.Load() {
		return false
	}

	book, found := engine.orderbooks.Load(instrument)
	if !found {
		return false
	}

	return book.(*OrderBook).RemoveOrder(side, orderID)
}

// Depth returns the aggregated depth for an instrument, or ErrNotFound
// when no order has ever been submitted for it.
func (engine *MatchingEngine) Depth(instrument string, limit uint32) (*Depth, error) {
	book := engine.OrderBook(instrument)
	if book == nil {
		return nil, ErrNotFound
	}
	return book.Depth(limit)
}

// Dump returns the diagnostic book dump for an instrument, or ErrNotFound
// when no order has ever been submitted for it.
func (engine *MatchingEngine) Dump(instrument string) (*BookDump, error) {
	book := engine.OrderBook(instrument)
	if book == nil {
		return nil, ErrNotFound
	}
	return book.Dump()
}

// OrderBook retrieves the order book for an instrument.
// Returns nil if the instrument has never been traded.
func (engine *MatchingEngine) OrderBook(instrument string) *OrderBook {
	book, found := engine.orderbooks.Load(instrument)
	if !found {
		return nil
	}

	orderbook, _ := book.(*OrderBook)
	return orderbook
}

// orderBook returns the instrument's book, creating and starting it on
// first use. Losing the LoadOrStore race discards the new book unstarted.
func (engine *MatchingEngine) orderBook(instrument string) *OrderBook {
	if book, found := engine.orderbooks.Load(instrument); found {
		return book.(*OrderBook)
	}

	newbook := NewOrderBook(instrument, engine.sink, engine.bookOpts...)
	actual, loaded := engine.orderbooks.LoadOrStore(instrument, newbook)
	if !loaded {
		go func() {
			_ = newbook.Start()
		}()
	}

	book, _ := actual.(*OrderBook)
	return book
}

// Shutdown gracefully shuts down all order books in the engine.
// It blocks until all books have drained or the context is cancelled.
// Returns nil on success, or the aggregated errors otherwise.
func (engine *MatchingEngine) Shutdown(ctx context.Context) error {
	// Prevent new orders and new instrument creation
	engine.isShutdown.Store(true)

	var wg sync.WaitGroup
	var errs []error
	var errMu sync.Mutex

	engine.orderbooks.Range(func(key, value any) bool {
		wg.Add(1)
		go func(book *OrderBook) {
			defer wg.Done()
			if err := book.Shutdown(ctx); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(value.(*OrderBook))
		return true
	})

	wg.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// snapshotResult wraps a snapshot result with potential error
type snapshotResult struct {
	snap *OrderBookSnapshot
	err  error
}

// takeSnapshot orchestrates the snapshot process across all order books.
// It returns a channel that streams snapshot results (including errors).
func (engine *MatchingEngine) takeSnapshot() chan snapshotResult {
	ch := make(chan snapshotResult)

	go func() {
		defer close(ch)
		var wg sync.WaitGroup

		engine.orderbooks.Range(func(key, value any) bool {
			book := value.(*OrderBook)
			wg.Add(1)
			go func(b *OrderBook, instrument string) {
				defer wg.Done()
				snap, err := b.TakeSnapshot()
				if err != nil {
					ch <- snapshotResult{snap: nil, err: errors.New("snapshot failed for instrument " + instrument + ": " + err.Error())}
					return
				}
				if snap != nil {
					ch <- snapshotResult{snap: snap, err: nil}
				}
			}(book, key.(string))
			return true
		})

		wg.Wait()
	}()

	return ch
}

// TakeSnapshot captures a consistent snapshot of all order books and
// writes them to the specified directory: `snapshot.bin` (per-instrument
// JSON segments plus a footer index) and `metadata.json`.
// Returns the metadata object or an error.
func (engine *MatchingEngine) TakeSnapshot(outputDir string) (*SnapshotMetadata, error) {
	// Use a temporary directory for atomic writes
	tmpDir := outputDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, err
	}

	snapChan := engine.takeSnapshot()

	binPath := filepath.Join(tmpDir, "snapshot.bin")
	binFile, err := os.Create(binPath)
	if err != nil {
		return nil, err
	}

	segments := make([]InstrumentSegment, 0)
	currentOffset := int64(0)
	var snapshotErrors []error

	// Stream write
	for result := range snapChan {
		if result.err != nil {
			snapshotErrors = append(snapshotErrors, result.err)
			continue
		}

		snap := result.snap

		data, err := json.Marshal(snap)
		if err != nil {
			binFile.Close()
			return nil, err
		}

		n, err := binFile.Write(data)
		if err != nil {
			binFile.Close()
			return nil, err
		}

		length := int64(n)
		checksum := crc32.ChecksumIEEE(data)

		segments = append(segments, InstrumentSegment{
			Instrument: snap.Instrument,
			Offset:     currentOffset,
			Length:     length,
			Checksum:   checksum,
		})

		currentOffset += length
	}

	if len(snapshotErrors) > 0 {
		binFile.Close()
		return nil, errors.Join(snapshotErrors...)
	}

	// Write footer: [SegmentData...][FooterJSON][FooterLength(4 bytes)]
	footer := SnapshotFileFooter{Instruments: segments}
	footerData, err := json.Marshal(footer)
	if err != nil {
		binFile.Close()
		return nil, err
	}

	if _, err := binFile.Write(footerData); err != nil {
		binFile.Close()
		return nil, err
	}

	if len(footerData) > 4294967295 {
		binFile.Close()
		return nil, errors.New("footer too large")
	}
	//nolint:gosec // Verified length above
	footerLen := uint32(len(footerData))
	if err := binary.Write(binFile, binary.BigEndian, footerLen); err != nil {
		binFile.Close()
		return nil, err
	}

	// Sync so the checksum below reads what is actually on disk
	if err := binFile.Sync(); err != nil {
		binFile.Close()
		return nil, err
	}

	if err := binFile.Close(); err != nil {
		return nil, err
	}

	snapshotChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}

	meta := &SnapshotMetadata{
		SchemaVersion:    SnapshotSchemaVersion,
		SnapshotID:       xid.New().String(),
		Timestamp:        time.Now().UnixNano(),
		EngineVersion:    EngineVersion,
		SnapshotChecksum: snapshotChecksum,
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}

	metaPath := filepath.Join(tmpDir, "metadata.json")
	if err := os.WriteFile(metaPath, metaBytes, 0600); err != nil {
		return nil, err
	}

	// Atomic rename: remove old dir and rename temp to final
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, outputDir); err != nil {
		return nil, err
	}

	return meta, nil
}

// RestoreFromSnapshot restores the entire matching engine state from a
// snapshot in the specified directory. Returns the snapshot metadata.
func (engine *MatchingEngine) RestoreFromSnapshot(inputDir string) (*SnapshotMetadata, error) {
	metaPath := filepath.Join(inputDir, "metadata.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, err
	}

	binPath := filepath.Join(inputDir, "snapshot.bin")
	binFile, err := os.Open(binPath)
	if err != nil {
		return nil, err
	}
	defer binFile.Close()

	// Verify full file checksum before trusting any segment
	fileChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}
	if fileChecksum != meta.SnapshotChecksum {
		return nil, errors.New("snapshot.bin checksum mismatch")
	}

	// Read footer length (last 4 bytes)
	footerLenBytes := make([]byte, 4)
	stat, err := binFile.Stat()
	if err != nil {
		return nil, err
	}
	fileSize := stat.Size()

	if _, err := binFile.ReadAt(footerLenBytes, fileSize-4); err != nil {
		return nil, err
	}
	footerLen := binary.BigEndian.Uint32(footerLenBytes)

	footerOffset := fileSize - 4 - int64(footerLen)
	footerBytes := make([]byte, footerLen)
	if _, err := binFile.ReadAt(footerBytes, footerOffset); err != nil {
		return nil, err
	}

	var footer SnapshotFileFooter
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return nil, err
	}

	for _, segment := range footer.Instruments {
		segmentData := make([]byte, segment.Length)
		if _, err := binFile.ReadAt(segmentData, segment.Offset); err != nil {
			return nil, err
		}

		if crc32.ChecksumIEEE(segmentData) != segment.Checksum {
			return nil, errors.New("checksum mismatch for instrument " + segment.Instrument)
		}

		var snap OrderBookSnapshot
		if err := json.Unmarshal(segmentData, &snap); err != nil {
			return nil, err
		}

		book := NewOrderBook(segment.Instrument, engine.sink, engine.bookOpts...)
		book.Restore(&snap)

		engine.orderbooks.Store(segment.Instrument, book)
		go func(b *OrderBook) {
			_ = b.Start()
		}(book)

		logger.Info("restored order book from snapshot",
			"instrument", segment.Instrument,
			"bids", len(snap.Bids),
			"asks", len(snap.Asks))
	}

	return &meta, nil
}
