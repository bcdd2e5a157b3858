package catalogue

import (
	"context"
	"fmt"
	"time"

	c "github.com/patrickmn/go-cache"
)

// QueryCache memoizes object queries per patient. Failed queries are not
// cached; a missing record is.
type QueryCache struct {
	cache *c.Cache
}

type cachedRecord struct {
	record Record
}

func NewQueryCache(ttl time.Duration) *QueryCache {
	return &QueryCache{
		cache: c.New(ttl, 2*ttl),
	}
}

func (qc *QueryCache) Wrap(object string, query QueryFunc) QueryFunc {
	return func(ctx context.Context, patientId string) (Record, error) {
		key := fmt.Sprintf("%s:%s", object, patientId)
		if v, found := qc.cache.Get(key); found {
			return v.(cachedRecord).record, nil
		}
		record, err := query(ctx, patientId)
		if err != nil {
			return nil, err
		}
		qc.cache.Set(key, cachedRecord{record: record}, c.DefaultExpiration)
		return record, nil
	}
}

func (qc *QueryCache) Invalidate(object string, patientId string) {
	qc.cache.Delete(fmt.Sprintf("%s:%s", object, patientId))
}

func (qc *QueryCache) Flush() {
	qc.cache.Flush()
}
