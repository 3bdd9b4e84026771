// internal/app/store/groups/watch.go
package groupstore

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/giftexchange/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Watch delivers the full, sorted list of userID's groups to onNext. It
// delivers once immediately and again after every change that can affect
// the list. Failures go to onError and the watcher keeps retrying; the
// next successful delivery means the failure has cleared. The returned stop
// function is safe to call more than once.
//
// A change stream is used when the server supports one. Standalone servers
// fall back to polling every poll interval, delivering only when the list
// differs from the last delivery.
func (s *Store) Watch(ctx context.Context, userID string, onNext func([]models.Group), onError func(error)) (stop func()) {
	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{
		store:   s,
		userID:  userID,
		onNext:  onNext,
		onError: onError,
		log:     s.log.With(zap.String("user_id", userID)),
	}
	go w.run(wctx)

	var once sync.Once
	return func() { once.Do(cancel) }
}

type watcher struct {
	store   *Store
	userID  string
	onNext  func([]models.Group)
	onError func(error)
	log     *zap.Logger

	last      []models.Group
	delivered bool
}

func (w *watcher) run(ctx context.Context) {
	for ctx.Err() == nil {
		err := w.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if IsChangeStreamUnsupported(err) {
			w.log.Info("change streams unavailable; polling groups",
				zap.Duration("interval", w.store.pollInterval))
			w.poll(ctx)
			return
		}
		if err != nil {
			w.fail(ctx, err)
		}
		if !sleep(ctx, w.store.pollInterval) {
			return
		}
	}
}

// stream opens a change stream, delivers the current list, then re-reads on
// every matching event. It returns when the stream fails or ctx ends.
func (w *watcher) stream(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"operationType": "delete"},
				bson.M{"fullDocument.member_ids": w.userID},
			},
		}}},
	}
	cs, err := w.store.c.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return err
	}
	defer cs.Close(context.Background())

	// Open first, then read, so no change between the two is missed.
	if err := w.refresh(ctx, true); err != nil {
		return err
	}
	for cs.Next(ctx) {
		if err := w.refresh(ctx, true); err != nil {
			return err
		}
	}
	return cs.Err()
}

func (w *watcher) poll(ctx context.Context) {
	for {
		if err := w.refresh(ctx, false); err != nil && ctx.Err() == nil {
			w.fail(ctx, err)
		}
		if !sleep(ctx, w.store.pollInterval) {
			return
		}
	}
}

// refresh re-reads the list and delivers it. With always=false an unchanged
// list is not delivered again.
func (w *watcher) refresh(ctx context.Context, always bool) error {
	groups, err := w.store.ListByMember(ctx, w.userID)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	if !always && w.delivered && reflect.DeepEqual(groups, w.last) {
		return nil
	}
	w.last, w.delivered = groups, true
	w.onNext(cloneGroups(groups))
	return nil
}

func (w *watcher) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	// Force the next successful read to be delivered so the error clears.
	w.delivered = false
	w.log.Warn("group watch failed", zap.Error(err))
	w.onError(err)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// IsChangeStreamUnsupported reports whether err means the server cannot run
// change streams at all (standalone mongod), as
// opposed to a transient failure worth retrying.
func IsChangeStreamUnsupported(err error) bool {
	if err == nil {
		return false
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 40573, // $changeStream is only supported on replica sets
			115: // CommandNotSupported
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "changestream") || strings.Contains(msg, "change stream") {
		return strings.Contains(msg, "replica set") ||
			strings.Contains(msg, "not supported") ||
			strings.Contains(msg, "only supported")
	}
	return false
}

func cloneGroups(in []models.Group) []models.Group {
	out := make([]models.Group, len(in))
	for i, g := range in {
		out[i] = g.Clone()
	}
	return out
}
