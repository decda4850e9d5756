package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/swiglabs/swigboard/internal/docstore"
)

// RunQuery implements docstore.Store. The query walks the ordering index of
// the requested field, resolves each member to its document, and skips rows
// whose document vanished between the index walk and the fetch.
func (s *Store) RunQuery(ctx context.Context, q docstore.Query) (docstore.Snapshot, error) {
	col, err := s.collectionFor(q.Collection)
	if err != nil {
		return docstore.Snapshot{}, err
	}

	key, err := s.queryIndexKey(col, q)
	if err != nil {
		return docstore.Snapshot{}, err
	}

	entries, err := s.walkIndex(ctx, key, q)
	if err != nil {
		return docstore.Snapshot{}, err
	}

	docs := make([]docstore.Document, 0, len(entries))

	for _, entry := range entries {
		doc, err := s.fetch(ctx, q.Collection, entry.Member)
		if err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}

			return docstore.Snapshot{}, err
		}

		doc.Score = entry.Score
		docs = append(docs, doc)
	}

	return docstore.Snapshot{Docs: docs}, nil
}

// queryIndexKey picks the ordering index serving a query and validates that
// the query shape is one the schema can answer.
func (s *Store) queryIndexKey(col Collection, q docstore.Query) (string, error) {
	if !slices.Contains(col.OrderFields, q.OrderBy) {
		return "", fmt.Errorf("collection %q has no ordering index on %q", q.Collection, q.OrderBy)
	}

	switch len(q.Conditions) {
	case 0:
		return indexKey(q.Collection, q.OrderBy), nil
	case 1:
		cond := q.Conditions[0]
		if cond.Field != col.PartitionField {
			return "", fmt.Errorf("collection %q cannot filter on %q", q.Collection, cond.Field)
		}

		return partitionIndexKey(q.Collection, cond.Field, stringValue(cond.Value), q.OrderBy), nil
	default:
		return "", fmt.Errorf("collection %q supports at most one equality condition", q.Collection)
	}
}

// walkIndex reads index entries in query order, honoring the start-after
// cursor and limit. Members tied with the cursor score are fetched separately
// and trimmed to those positioned after the cursor row, so pagination stays
// exact across score ties.
func (s *Store) walkIndex(ctx context.Context, key string, q docstore.Query) ([]rueidis.ZScore, error) {
	desc := q.Direction == docstore.Descending

	if q.StartAfter == nil {
		entries, err := s.rangeByScore(ctx, key, "-inf", "+inf", desc, q.Limit)
		if err != nil {
			return nil, docstore.NewTransportError("query", err)
		}

		return entries, nil
	}

	pivot := strconv.FormatFloat(q.StartAfter.Score, 'f', -1, 64)

	tied, err := s.rangeByScore(ctx, key, pivot, pivot, desc, 0)
	if err != nil {
		return nil, docstore.NewTransportError("query", err)
	}

	entries := filterAfter(tied, q.StartAfter.ID, desc)

	var min, max string
	if desc {
		min, max = "-inf", "("+pivot
	} else {
		min, max = "("+pivot, "+inf"
	}

	rest, err := s.rangeByScore(ctx, key, min, max, desc, q.Limit)
	if err != nil {
		return nil, docstore.NewTransportError("query", err)
	}

	entries = append(entries, rest...)
	if q.Limit > 0 && len(entries) > q.Limit {
		entries = entries[:q.Limit]
	}

	return entries, nil
}

// rangeByScore runs a single score-bounded index read in the given direction.
// A limit of zero reads everything.
func (s *Store) rangeByScore(
	ctx context.Context, key, min, max string, desc bool, limit int,
) ([]rueidis.ZScore, error) {
	count := int64(-1)
	if limit > 0 {
		count = int64(limit)
	}

	if desc {
		return s.client.Do(ctx,
			s.client.B().Zrevrangebyscore().Key(key).Max(max).Min(min).Withscores().Limit(0, count).Build(),
		).AsZScores()
	}

	return s.client.Do(ctx,
		s.client.B().Zrangebyscore().Key(key).Min(min).Max(max).Withscores().Limit(0, count).Build(),
	).AsZScores()
}

// filterAfter keeps the entries positioned after the cursor member within a
// batch of score-tied entries. Redis orders ties lexically by member, so the
// comparison also works when the cursor row itself was deleted.
func filterAfter(entries []rueidis.ZScore, cursorID string, desc bool) []rueidis.ZScore {
	out := make([]rueidis.ZScore, 0, len(entries))

	for _, entry := range entries {
		if desc {
			if entry.Member < cursorID {
				out = append(out, entry)
			}

			continue
		}

		if entry.Member > cursorID {
			out = append(out, entry)
		}
	}

	return out
}
