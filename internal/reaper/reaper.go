// Package reaper reclaims stock from orders abandoned before payment.
package reaper

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/orderfood/preorder.git/internal/kafka"
	"github.com/orderfood/preorder.git/internal/orders"
)

const reasonTimeout = "timeout"

// Reaper cancels Pending orders older than Timeout through the lifecycle's
// cancellation path. Because that transition is keyed on the current status,
// a racing payment confirmation or an overlapping tick makes the cancel
// no-op with an invalid-transition result instead of double-releasing stock.
type Reaper struct {
	Engine   *orders.Engine
	Timeout  time.Duration
	Producer *kafkax.Producer // cancelled events; may be nil
	Service  string
	Log      *logrus.Logger
}

func (r *Reaper) log() *logrus.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logrus.StandardLogger()
}

// ReapOnce runs a single pass against the given current time and reports
// how many orders it cancelled. Orders are processed independently: one
// failed cancellation never aborts the rest.
func (r *Reaper) ReapOnce(ctx context.Context, now time.Time) (int, error) {
	deadline := now.Add(-r.Timeout)
	ids, err := r.Engine.Store.ExpiredPending(ctx, deadline)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	r.log().WithField("count", len(ids)).Info("expired pending orders found")

	cancelled := 0
	for _, id := range ids {
		o, err := r.Engine.Cancel(ctx, id, reasonTimeout)
		if err != nil {
			// a payment confirmation got there first, or a previous tick
			// already cancelled it
			r.log().WithError(err).WithField("order_id", id).Warn("skip cancel")
			continue
		}
		cancelled++
		r.log().WithFields(logrus.Fields{"order_id": id, "order_no": o.OrderNo}).
			Info("order cancelled by timeout")
		r.publishCancelled(o)
	}
	return cancelled, nil
}

// Run drives ReapOnce on a fixed ticker until the context ends.
func (r *Reaper) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if _, err := r.ReapOnce(ctx, now); err != nil {
				r.log().WithError(err).Error("reap pass failed")
			}
		}
	}
}

func (r *Reaper) publishCancelled(o *orders.Order) {
	if r.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderCancelledPayload{
			OrderID: o.ID,
			OrderNo: o.OrderNo,
			Reason:  reasonTimeout,
			Items:   orders.EventItems(o.Items),
		}),
	}
	r.Producer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
