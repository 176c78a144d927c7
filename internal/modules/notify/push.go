// README: Firebase Cloud Messaging push to candidate drivers of a new request.
package notify

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/matching"
)

// Sender is the subset of *messaging.Client used for push.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier implements delivery.Dispatcher. Push is advisory: drivers still
// see the request through the event stream or polling.
type PushNotifier struct {
	sender Sender
	limit  int
}

func NewPushNotifier(sender Sender, limit int) *PushNotifier {
	if limit <= 0 {
		limit = 10
	}
	return &PushNotifier{sender: sender, limit: limit}
}

// NotifyNewRequest pushes to the nearest drivers that have a device token.
func (p *PushNotifier) NotifyNewRequest(ctx context.Context, r *delivery.Request, drivers []matching.Ranked) {
	sent := 0
	for _, d := range drivers {
		if sent >= p.limit {
			break
		}
		if d.DeviceToken == "" {
			continue
		}
		if err := p.send(ctx, d, r); err != nil {
			log.Printf("[notify] push to driver %s for request %s failed: %v", d.DriverID, r.ID, err)
			continue
		}
		sent++
	}
}

func (p *PushNotifier) send(ctx context.Context, d matching.Ranked, r *delivery.Request) error {
	fee := float64(r.DeliveryFee.Amount) / 100
	msg := &messaging.Message{
		Token: d.DeviceToken,
		Data: map[string]string{
			"type":         "new_request",
			"request_id":   string(r.ID),
			"shop_lat":     strconv.FormatFloat(r.ShopLocation.Lat, 'f', 6, 64),
			"shop_lng":     strconv.FormatFloat(r.ShopLocation.Lng, 'f', 6, 64),
			"buyer_lat":    strconv.FormatFloat(r.BuyerLocation.Lat, 'f', 6, 64),
			"buyer_lng":    strconv.FormatFloat(r.BuyerLocation.Lng, 'f', 6, 64),
			"distance_km":  strconv.FormatFloat(d.DistanceKm, 'f', 2, 64),
			"delivery_fee": strconv.FormatFloat(fee, 'f', 2, 64),
		},
		Notification: &messaging.Notification{
			Title: "New delivery request",
			Body:  fmt.Sprintf("Pickup %.1f km away, delivery fee %s %.2f", d.DistanceKm, r.DeliveryFee.Currency, fee),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	messageID, err := p.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM: %w", err)
	}
	log.Printf("[notify] FCM sent for request %s to driver %s, message_id=%s", r.ID, d.DriverID, messageID)
	return nil
}
