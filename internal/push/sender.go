// Package push delivers Web Push notifications to subscribed browsers.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/agora/internal/logger"
	"github.com/agora/internal/model"
	"github.com/agora/internal/storage"
)

// Sender broadcasts a payload to every stored subscription. A nil Sender is
// a no-op, so push stays optional in -dev.
type Sender struct {
	subs    storage.SubscriptionStore
	keys    *VAPIDKeys
	subject string
}

func NewSender(subs storage.SubscriptionStore, keys *VAPIDKeys, subject string) *Sender {
	return &Sender{subs: subs, keys: keys, subject: subject}
}

type payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag,omitempty"`
}

// Broadcast is best-effort fan-out: per-endpoint failures are logged and the
// rest of the endpoints still get their push. Endpoints the push service
// reports as gone (404/410) are dropped from the store.
func (s *Sender) Broadcast(ctx context.Context, title, body, tag string) {
	if s == nil {
		return
	}
	defer logger.DeferLogDuration("push.Broadcast", time.Now())()
	subs, err := s.subs.ListSubscriptions(ctx)
	if err != nil {
		logger.Errorf("push broadcast list: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}
	raw, err := json.Marshal(payload{Title: title, Body: body, Tag: tag})
	if err != nil {
		logger.Errorf("push broadcast marshal: %v", err)
		return
	}
	for _, sub := range subs {
		s.send(ctx, sub, raw)
	}
}

func (s *Sender) send(ctx context.Context, sub model.PushSubscription, raw []byte) {
	resp, err := webpush.SendNotificationWithContext(ctx, raw, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.keys.PublicKey,
		VAPIDPrivateKey: s.keys.PrivateKey,
		TTL:             60,
	})
	if err != nil {
		logger.Errorf("push send %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		if err := s.subs.RemoveSubscription(ctx, sub.Endpoint); err != nil {
			logger.Errorf("push drop gone endpoint %s: %v", sub.Endpoint, err)
		}
		return
	}
	if resp.StatusCode >= 400 {
		logger.Errorf("push send %s: status %d", sub.Endpoint, resp.StatusCode)
	}
}
