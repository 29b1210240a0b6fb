package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"customer-insights/pkg/models"
)

// DataHash fingerprints the cleaned input tables by content. Two runs over
// identical cleaned data hash identically regardless of where the data came
// from.
func DataHash(orders []models.Order, payments []models.Payment) uint64 {
	h := xxhash.New()
	for _, o := range orders {
		fmt.Fprintf(h, "o|%s|%s|%d|%s\n", o.OrderID, o.CustomerID, o.Timestamp.Unix(), o.Status)
	}
	for _, p := range payments {
		fmt.Fprintf(h, "p|%s|%.6f|%t\n", p.OrderID, p.Value, p.Outlier)
	}
	return h.Sum64()
}

// Key builds the cache key for one engine invocation from the data
// fingerprint, the engine name and its parameter set. Params must be
// JSON-marshalable; marshaling failures produce a key no other invocation
// can collide with.
func Key(dataHash uint64, engine string, params any) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(fmt.Sprintf("unmarshalable-%d", time.Now().UnixNano()))
	}
	return fmt.Sprintf("insights:%s:%016x:%016x", engine, dataHash, xxhash.Sum64(raw))
}
