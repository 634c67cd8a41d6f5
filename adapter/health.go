// Package adapter provides adapters for dma-mapcache integration with
// external systems.
package adapter

import (
	"errors"
	"fmt"

	"github.com/heptiolabs/healthcheck"

	"github.com/srediag/dma-mapcache/pkg/mapcache"
)

// NewHealthHandler returns an HTTP health handler wired to a mapper.
// Liveness fails once the mapper is closed; readiness fails when the number
// of live mapping records exceeds maxLiveRecords (a signal that consumers
// are leaking holds). maxLiveRecords <= 0 disables the readiness check.
func NewHealthHandler(m *mapcache.Mapper, maxLiveRecords int) healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("mapper-open", func() error {
		if m.Closed() {
			return errors.New("mapper closed")
		}
		return nil
	})
	if maxLiveRecords > 0 {
		h.AddReadinessCheck("mapping-pressure", func() error {
			if n := m.LiveRecords(); n > maxLiveRecords {
				return fmt.Errorf("%d live mappings exceeds limit %d", n, maxLiveRecords)
			}
			return nil
		})
	}
	return h
}
