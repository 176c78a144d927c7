// README: Fan-out tests (event codec, hub delivery, slow subscribers, convergence).
package notify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"

	"kirana/internal/config"
	"kirana/internal/infra"
	"kirana/internal/modules/delivery"
	"kirana/internal/modules/matching"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

func sampleRequest(id types.ID, status delivery.Status) *delivery.Request {
	return &delivery.Request{
		ID:            id,
		BuyerName:     "Asha",
		Status:        status,
		OTP:           "9876",
		BuyerLocation: types.Point{Lat: 12.97, Lng: 77.59},
		DeliveryFee:   types.Money{Amount: 3000, Currency: "INR"},
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func receive(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case data, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscriber channel closed")
		}
		return data
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestEvent_RoundTripAndRedaction(t *testing.T) {
	old := sampleRequest("r1", delivery.StatusPending)
	cur := sampleRequest("r1", delivery.StatusAccepted)
	e, err := RequestEvent(types.ChangeUpdate, cur, old, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := Encode(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if bytes.Contains(data, []byte("9876")) {
		t.Fatalf("otp leaked into event: %s", data)
	}
	if cur.OTP != "9876" {
		t.Fatalf("redaction mutated the caller's record")
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := got.Requests()
	if err != nil {
		t.Fatalf("requests: %v", err)
	}
	if c.Type != types.ChangeUpdate || c.New.Status != delivery.StatusAccepted || c.Old.Status != delivery.StatusPending {
		t.Fatalf("decoded change = %+v", c)
	}
	if _, err := got.Drivers(); !errors.Is(err, ErrBadEvent) {
		t.Fatalf("drivers() on request event: err = %v", err)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown topic": `{"topic":"orders","event_type":"insert","new":{}}`,
		"unknown type":  `{"topic":"drivers","event_type":"upsert","new":{}}`,
		"insert no new": `{"topic":"drivers","event_type":"insert"}`,
		"delete no old": `{"topic":"delivery_requests","event_type":"delete","new":{}}`,
	}
	for name, in := range cases {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrBadEvent) {
			t.Errorf("%s: err = %v, want ErrBadEvent", name, err)
		}
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	h := startHub(t)
	reqSub := h.Subscribe(TopicRequests)
	drvSub := h.Subscribe(TopicDrivers)
	f := NewFanout(h, nil)
	ctx := context.Background()

	f.PublishDriver(ctx, types.ChangeUpdate, &presence.Driver{ID: "d1", Online: true}, nil)
	f.PublishRequest(ctx, types.ChangeInsert, sampleRequest("r1", delivery.StatusPending), nil)

	e, err := Decode(receive(t, reqSub))
	if err != nil || e.Topic != TopicRequests {
		t.Fatalf("request subscriber got %+v (%v)", e, err)
	}
	e, err = Decode(receive(t, drvSub))
	if err != nil || e.Topic != TopicDrivers {
		t.Fatalf("driver subscriber got %+v (%v)", e, err)
	}
	c, err := e.Drivers()
	if err != nil || c.New.ID != "d1" || !c.New.Online {
		t.Fatalf("driver change = %+v (%v)", c, err)
	}
}

func TestHub_DropsSlowSubscriber(t *testing.T) {
	h := startHub(t)
	slow := h.Subscribe(TopicRequests)
	e, _ := RequestEvent(types.ChangeInsert, sampleRequest("r1", delivery.StatusPending), nil, time.Now())
	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(e)
	}

	deadline := time.After(2 * time.Second)
	n := 0
	for {
		select {
		case _, ok := <-slow.Events():
			if !ok {
				if n > subscriberBuffer {
					t.Fatalf("received %d events, buffer is %d", n, subscriberBuffer)
				}
				if h.Len() != 0 {
					t.Fatalf("slow subscriber still registered")
				}
				return
			}
			n++
		case <-deadline:
			t.Fatal("slow subscriber was not dropped")
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := startHub(t)
	sub := h.Subscribe(TopicDrivers)
	h.Unsubscribe(sub)
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("unexpected event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

// TestReconciler_Converges drops part of the event stream and checks that a
// poll brings the view back to the server state.
func TestReconciler_Converges(t *testing.T) {
	ctx := context.Background()
	store := delivery.NewMemoryStore()
	h := startHub(t)
	sub := h.Subscribe(TopicRequests)
	p := types.Point{Lat: 12.9720, Lng: 77.5950}
	finder := matching.NewService(staticSource{{DriverID: "d1", Online: true, Position: &p}}, config.MatchingConfig{RadiusKm: 3})
	svc := delivery.NewService(delivery.Deps{Store: store, Drivers: finder, Publisher: NewFanout(h, nil)},
		delivery.WithOTPGenerator(func() (string, error) { return "1111", nil }))

	view := NewReconciler(func(r delivery.Request) types.ID { return r.ID },
		func(ctx context.Context) ([]delivery.Request, error) {
			rs, err := svc.List(ctx, nil)
			if err != nil {
				return nil, err
			}
			out := make([]delivery.Request, len(rs))
			for i, r := range rs {
				out[i] = *r
			}
			return out, nil
		}, time.Hour)

	changes := RequestChanges(ctx, sub)
	sp, bp := p, p
	cmd := delivery.CreateCommand{BuyerName: "a", BuyerPhone: "b", DeliveryAddress: "c",
		BuyerLocation: &bp, ShopLocation: &sp, TotalAmount: 100}
	first, err := svc.Create(ctx, cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	view.Apply(<-changes)
	if _, ok := view.Get(first.ID); !ok {
		t.Fatalf("insert event not applied")
	}

	// The accept event and a second insert are never applied.
	if _, err := svc.Accept(ctx, delivery.AcceptCommand{RequestID: first.ID, DriverID: "d1"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	second, err := svc.Create(ctx, cmd)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	<-changes
	<-changes
	stale, _ := view.Get(first.ID)
	if stale.Status != delivery.StatusPending || view.Len() != 1 {
		t.Fatalf("view unexpectedly current before poll")
	}

	if err := view.Poll(ctx); err != nil {
		t.Fatalf("poll: %v", err)
	}
	got, _ := view.Get(first.ID)
	if got.Status != delivery.StatusAccepted || view.Len() != 2 {
		t.Fatalf("view did not converge: status=%s len=%d", got.Status, view.Len())
	}
	if _, ok := view.Get(second.ID); !ok {
		t.Fatalf("second request missing after poll")
	}

	if _, err := svc.PurgeStale(ctx, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("purge: %v", err)
	}
	view.Apply(<-changes)
	if _, ok := view.Get(second.ID); ok {
		t.Fatalf("delete event not applied")
	}
	if _, ok := view.Get(first.ID); !ok {
		t.Fatalf("accepted request must survive the purge")
	}
}

type staticSource []matching.Candidate

func (s staticSource) Candidates(context.Context, types.Point, float64) ([]matching.Candidate, error) {
	return s, nil
}

type stubSender struct {
	tokens []string
	err    error
}

func (s *stubSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.tokens = append(s.tokens, m.Token)
	return "msg-" + m.Token, nil
}

func TestPushNotifier(t *testing.T) {
	sender := &stubSender{}
	n := NewPushNotifier(sender, 2)
	ranked := []matching.Ranked{
		{Candidate: matching.Candidate{DriverID: "d1", DeviceToken: "t1"}, DistanceKm: 0.4},
		{Candidate: matching.Candidate{DriverID: "d2"}, DistanceKm: 0.9},
		{Candidate: matching.Candidate{DriverID: "d3", DeviceToken: "t3"}, DistanceKm: 1.2},
		{Candidate: matching.Candidate{DriverID: "d4", DeviceToken: "t4"}, DistanceKm: 2.0},
	}
	n.NotifyNewRequest(context.Background(), sampleRequest("r1", delivery.StatusPending), ranked)
	if len(sender.tokens) != 2 || sender.tokens[0] != "t1" || sender.tokens[1] != "t3" {
		t.Fatalf("pushed to %v, want [t1 t3]", sender.tokens)
	}

	failing := NewPushNotifier(&stubSender{err: errors.New("unavailable")}, 0)
	failing.NotifyNewRequest(context.Background(), sampleRequest("r2", delivery.StatusPending), ranked)
}

func TestRedisFeed_Relay(t *testing.T) {
	addr := os.Getenv("KIRANA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KIRANA_TEST_REDIS_ADDR not set; skipping Redis-backed tests")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := infra.ConnectRedis(ctx, addr)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer client.Close()

	h := startHub(t)
	sub := h.Subscribe(TopicRequests)
	feed := NewRedisFeed(client)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = feed.Relay(ctx, h)
	}()
	<-ready
	time.Sleep(200 * time.Millisecond)

	NewFanout(h, feed).PublishRequest(ctx, types.ChangeInsert, sampleRequest("r-redis", delivery.StatusPending), nil)
	e, err := Decode(receive(t, sub))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	c, err := e.Requests()
	if err != nil || c.New.ID != "r-redis" {
		t.Fatalf("relayed change = %+v (%v)", c, err)
	}
}
