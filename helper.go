package match

import (
	"hash/crc32"
	"io"
	"os"
)

// calculateFileCRC32 computes the CRC32 (IEEE) checksum of a whole file.
func calculateFileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}

	return h.Sum32(), nil
}
