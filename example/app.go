package example

import (
	"time"

	"github.com/freekieb7/bytegate/http"
)

// Mount registers the notes, search and metrics controllers on b. The
// returned controller must be attached to the built server to report its
// stats.
func Mount(b *http.Builder, saveDelay time.Duration) *MetricsController {
	metrics := NewMetricsController()

	b.Controller(NewNoteController(NewNoteService(saveDelay))).
		Controller(NewSearchController(NewSearchService())).
		Controller(metrics)

	return metrics
}
