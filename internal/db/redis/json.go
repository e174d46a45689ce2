package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/catalogindex/internal/db"
)

// JSONCreateMulti pipelines JSON.SET key $ doc NX in a single round trip.
// A nil reply means the key already exists; it and any server error reply
// count as a rejection. The first non-server error aborts with a db.Error.
func (s *Store) JSONCreateMulti(ctx context.Context, items []db.JSONSetItem) (db.CreateResult, error) {
	if len(items) == 0 {
		return db.CreateResult{}, nil
	}

	cmds := make(rueidis.Commands, 0, len(items))
	for _, item := range items {
		cmds = append(cmds, s.b().Arbitrary("JSON.SET").Keys(item.Key).Args("$", string(item.Data), "NX").Build())
	}

	var res db.CreateResult
	for i, r := range s.client.DoMulti(ctx, cmds...) {
		err := r.Error()
		switch {
		case err == nil:
			res.Created++
		case rueidis.IsRedisNil(err):
			res.Rejected = append(res.Rejected, db.Rejection{Key: items[i].Key, Reason: "key already exists"})
		default:
			if re, ok := rueidis.IsRedisErr(err); ok {
				res.Rejected = append(res.Rejected, db.Rejection{Key: items[i].Key, Reason: re.Error()})
				continue
			}
			return res, &db.Error{Op: db.OpJSONSet, Err: err}
		}
	}
	return res, nil
}
