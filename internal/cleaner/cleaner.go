package cleaner

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/UltraSive/ttlkv/internal/datastore"
)

// Start sweeps expired records from ds every interval, at most chunkSize per
// pass, until stop is closed. It is optional: reads already drop expired
// records lazily, the sweeper only reclaims memory for keys nobody reads.
func Start(ds datastore.Sweeper, interval time.Duration, chunkSize int, stop <-chan struct{}, log logr.Logger) {
	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if n := runOnce(ds, chunkSize); n > 0 {
					log.V(1).Info("swept expired records", "removed", n)
				}
			case <-stop:
				return
			}
		}
	}()
}

func runOnce(ds datastore.Sweeper, chunkSize int) int {
	return ds.Sweep(chunkSize)
}
