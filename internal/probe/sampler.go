package probe

import (
	"errors"
	"io"
	"math"
	"time"
)

const readChunk = 32 << 10

type throughput struct {
	KBps       float64
	JitterKBps float64
	Bytes      int64
}

// sampleThroughput reads r to EOF, recording the rate of every full window.
// The overall rate is measured from the first byte, not from the request.
func sampleThroughput(r io.Reader, window time.Duration, requested time.Time) (throughput, error) {
	buf := make([]byte, readChunk)

	var (
		total       int64
		firstByte   time.Time
		windowStart time.Time
		windowBytes int64
		rates       []float64
	)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			now := time.Now()
			if firstByte.IsZero() {
				firstByte = now
				windowStart = now
			}
			total += int64(n)
			windowBytes += int64(n)

			if elapsed := now.Sub(windowStart); elapsed >= window {
				rates = append(rates, kbps(windowBytes, elapsed))
				windowStart = now
				windowBytes = 0
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return throughput{Bytes: total}, err
		}
	}

	if total == 0 {
		return throughput{}, io.ErrUnexpectedEOF
	}

	elapsed := time.Since(firstByte)
	if elapsed <= 0 {
		elapsed = time.Since(requested)
	}

	return throughput{
		KBps:       kbps(total, elapsed),
		JitterKBps: stddev(rates),
		Bytes:      total,
	}, nil
}

func kbps(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes) / 1024 / elapsed.Seconds()
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}
