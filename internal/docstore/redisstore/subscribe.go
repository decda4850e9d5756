package redisstore

import (
	"context"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/docstore"
)

// Subscribe implements docstore.Store. The initial snapshot is delivered
// synchronously before the change stream attaches; a write landing in that
// gap is picked up on the next change notification.
func (s *Store) Subscribe(
	ctx context.Context, q docstore.Query, deliver func(docstore.Snapshot), onError func(error),
) (docstore.Subscription, error) {
	snap, err := s.RunQuery(ctx, q)
	if err != nil {
		return nil, err
	}

	deliver(snap)

	subCtx, cancel := context.WithCancel(ctx)
	go s.watch(subCtx, q, deliver, onError)

	return &subscription{cancel: cancel}, nil
}

// subscription cancels the watch goroutine of one subscriber.
type subscription struct {
	cancel context.CancelFunc
}

func (s *subscription) Cancel() {
	s.cancel()
}

// watch listens on the collection's change channel and re-runs the query on
// every notification. The blocking receive returns once ctx is canceled or
// the connection drops.
func (s *Store) watch(
	ctx context.Context, q docstore.Query, deliver func(docstore.Snapshot), onError func(error),
) {
	channel := channelFor(q.Collection)

	err := s.client.Receive(ctx, s.client.B().Subscribe().Channel(channel).Build(),
		func(msg rueidis.PubSubMessage) {
			// Nested collections share one change channel per pattern, so
			// drop notifications for sibling collections.
			if msg.Message != q.Collection {
				return
			}

			snap, err := s.RunQuery(ctx, q)
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(err)
				}

				return
			}

			deliver(snap)
		})
	if err != nil && ctx.Err() == nil {
		s.logger.Error("Subscription stream ended",
			zap.String("collection", q.Collection),
			zap.Error(err))

		if onError != nil {
			onError(docstore.NewTransportError("subscribe", err))
		}
	}
}
