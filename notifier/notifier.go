// Package notifier runs the background notification pipeline. Handlers hand
// it notifications and return immediately; a single worker goroutine persists
// fan-out batches and mirrors each notification to the receiver's web push
// subscription when one exists.
package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"snapgram/database"
	"snapgram/models"
)

// Store is the slice of the repository the worker needs.
type Store interface {
	InsertNotifications(ctx context.Context, ns []models.Notification) error
	SubscriptionFor(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, userID primitive.ObjectID) error
}

type job struct {
	notifications []models.Notification
	insert        bool
}

type Notifier struct {
	store   Store
	jobs    chan job
	done    chan struct{}
	options *webpush.Options

	// send is swapped out in tests.
	send func(sub *webpush.Subscription, payload []byte) (int, error)
}

// Config carries the VAPID identity used to sign push messages.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
}

func New(store Store, cfg Config) *Notifier {
	n := &Notifier{
		store: store,
		jobs:  make(chan job, 256),
		done:  make(chan struct{}),
		options: &webpush.Options{
			Subscriber:      cfg.Subscriber,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             60,
		},
	}
	n.send = n.sendWebPush
	return n
}

// Start launches the worker goroutine.
func (n *Notifier) Start() {
	go n.run()
}

// Stop drains pending jobs and waits for the worker to exit.
func (n *Notifier) Stop() {
	close(n.jobs)
	<-n.done
}

// Dispatch queues notifications for persistence plus a push mirror. Used for
// the new-post fan-out where the insert happens off the request path.
func (n *Notifier) Dispatch(ns ...models.Notification) {
	if len(ns) == 0 {
		return
	}
	n.enqueue(job{notifications: ns, insert: true})
}

// Push queues a push mirror for a notification that is already persisted.
func (n *Notifier) Push(notification models.Notification) {
	n.enqueue(job{notifications: []models.Notification{notification}})
}

func (n *Notifier) enqueue(j job) {
	select {
	case n.jobs <- j:
	default:
		// A full queue means pushes are dropped, never blocked on.
		log.Warn().Int("count", len(j.notifications)).Msg("notification queue full, dropping job")
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for j := range n.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n.process(ctx, j)
		cancel()
	}
}

func (n *Notifier) process(ctx context.Context, j job) {
	if j.insert {
		if err := n.store.InsertNotifications(ctx, j.notifications); err != nil {
			log.Error().Err(err).Int("count", len(j.notifications)).Msg("persist notifications")
			return
		}
	}
	for i := range j.notifications {
		n.pushTo(ctx, &j.notifications[i])
	}
}

func (n *Notifier) pushTo(ctx context.Context, notification *models.Notification) {
	sub, err := n.store.SubscriptionFor(ctx, notification.Receiver)
	if err != nil {
		if err != database.ErrNotFound {
			log.Error().Err(err).Str("receiver", notification.Receiver.Hex()).Msg("load push subscription")
		}
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": "Snapgram",
		"body":  notification.Content,
		"type":  notification.Type,
	})
	if err != nil {
		log.Error().Err(err).Msg("encode push payload")
		return
	}

	status, err := n.send(&sub.Sub, payload)
	if err != nil {
		log.Error().Err(err).Str("receiver", notification.Receiver.Hex()).Msg("send push")
		return
	}
	if status == http.StatusGone || status == http.StatusNotFound {
		// The endpoint is dead; forget the subscription.
		if err := n.store.DeleteSubscription(ctx, notification.Receiver); err != nil {
			log.Error().Err(err).Str("receiver", notification.Receiver.Hex()).Msg("drop stale subscription")
		}
	}
}

func (n *Notifier) sendWebPush(sub *webpush.Subscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotification(payload, sub, n.options)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
