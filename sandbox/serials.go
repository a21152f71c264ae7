package sandbox

import (
	"sync"
	"time"

	"roomkit/serial"
)

// serialMint issues strictly increasing serials for one series. The
// counter disambiguates serials minted inside the same millisecond.
type serialMint struct {
	seriesID string

	mu      sync.Mutex
	lastTs  int64
	counter int64
}

func newSerialMint(seriesID string) *serialMint {
	return &serialMint{seriesID: seriesID}
}

func (m *serialMint) next() serial.Serial {
	m.mu.Lock()
	defer m.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts < m.lastTs {
		// Clock went backwards; stay on the last slot so ordering holds.
		ts = m.lastTs
	}
	if ts == m.lastTs {
		m.counter++
	} else {
		m.lastTs = ts
		m.counter = 0
	}
	return serial.Serial{SeriesID: m.seriesID, Timestamp: ts, Counter: m.counter}
}
