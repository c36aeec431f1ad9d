package handlers

import (
	"fmt"
	"net/http"

	"thumbcache/internal/thumbcache"
)

// maxBatchItems bounds one batch request; a view page is far smaller.
const maxBatchItems = 500

// BatchItem pairs a requested descriptor with its resolution.
type BatchItem struct {
	Media  thumbcache.MediaDescriptor `json:"media"`
	Result thumbcache.Result          `json:"result"`
}

// BatchThumbnails resolves a list of descriptors through a paced Batch and
// answers once every video has been delivered or the client goes away.
// Items still generating at that point are reported by a plain lookup.
func (h *Handlers) BatchThumbnails(w http.ResponseWriter, r *http.Request) {
	var items []thumbcache.MediaDescriptor
	if err := decodeJSON(w, r, &items); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(items) > maxBatchItems {
		writeJSONError(w, fmt.Sprintf("batch exceeds %d items", maxBatchItems), http.StatusBadRequest)
		return
	}
	for i, d := range items {
		if _, ok := thumbcache.ParseKind(d.Kind); !ok {
			writeJSONError(w, fmt.Sprintf("item %d: unknown media kind %q", i, d.Kind), http.StatusBadRequest)
			return
		}
		if d.PrimaryURL == "" && d.AlternateURL == "" && d.ServerThumbnail == "" {
			writeJSONError(w, fmt.Sprintf("item %d: descriptor has no URL", i), http.StatusBadRequest)
			return
		}
	}

	type delivery struct {
		d   thumbcache.MediaDescriptor
		res thumbcache.Result
	}
	deliveries := make(chan delivery, len(items))

	ctx := r.Context()
	batch := h.svc.NewBatch(ctx, func(d thumbcache.MediaDescriptor, res thumbcache.Result) {
		deliveries <- delivery{d, res}
	})
	queued := batch.Request(items...)

	resolved := make(map[thumbcache.MediaDescriptor]thumbcache.Result, queued)
wait:
	for len(resolved) < queued {
		select {
		case got := <-deliveries:
			resolved[got.d] = got.res
		case <-ctx.Done():
			break wait
		}
	}
	batch.Close()

	out := make([]BatchItem, len(items))
	for i, d := range items {
		res, ok := resolved[d]
		if !ok {
			res = h.svc.Lookup(ctx, d)
		}
		out[i] = BatchItem{Media: d, Result: res}
	}
	respondJSON(w, out)
}
