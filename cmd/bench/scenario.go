// README: Multi-step bench scenarios driven through the public API and the event stream.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kirana/internal/modules/delivery"
	"kirana/internal/modules/notify"
	"kirana/internal/modules/presence"
	"kirana/internal/types"
)

type apiClient struct {
	base  string
	httpc *http.Client
}

type createdRequest struct {
	Request delivery.Request `json:"request"`
	OTP     string           `json:"otp"`
}

type verifyResult struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Request *delivery.Request `json:"request"`
}

type statusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s: status=%d body=%s", e.Method, e.Path, e.Code, e.Body)
}

func (r *Runner) api() *apiClient {
	return &apiClient{base: r.cfg.BaseURL, httpc: r.httpc}
}

// do sends body as JSON and decodes a 2xx response into out.
func (a *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (a *apiClient) onlineDriver(ctx context.Context, name string, at types.Point) (*presence.Driver, error) {
	var d presence.Driver
	err := a.do(ctx, http.MethodPost, "/api/drivers", map[string]any{
		"full_name":    name,
		"phone":        "9" + fmt.Sprintf("%09d", time.Now().UnixNano()%1e9),
		"vehicle_type": "bike",
	}, &d)
	if err != nil {
		return nil, err
	}
	if err := a.do(ctx, http.MethodPost, "/api/drivers/"+string(d.ID)+"/online", map[string]any{"online": true}, nil); err != nil {
		return nil, err
	}
	if err := a.do(ctx, http.MethodPut, "/api/drivers/"+string(d.ID)+"/location", map[string]any{"lat": at.Lat, "lng": at.Lng}, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (a *apiClient) createRequest(ctx context.Context, buyerAt *types.Point) (*createdRequest, error) {
	var out createdRequest
	if err := a.do(ctx, http.MethodPost, "/api/requests", createPayload(buyerAt), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) getRequest(ctx context.Context, id types.ID) (*delivery.Request, error) {
	var out delivery.Request
	if err := a.do(ctx, http.MethodGet, "/api/requests/"+string(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *apiClient) listRequests(ctx context.Context) ([]delivery.Request, error) {
	var out struct {
		Requests []delivery.Request `json:"requests"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/requests", nil, &out); err != nil {
		return nil, err
	}
	return out.Requests, nil
}

func (a *apiClient) accept(ctx context.Context, id, driverID types.ID) error {
	return a.do(ctx, http.MethodPost, "/api/requests/"+string(id)+"/accept", map[string]any{"driver_id": driverID}, nil)
}

func (a *apiClient) pickUp(ctx context.Context, id, driverID types.ID) error {
	return a.do(ctx, http.MethodPost, "/api/requests/"+string(id)+"/status", map[string]any{
		"status":    "picked_up",
		"driver_id": driverID,
	}, nil)
}

func (a *apiClient) verify(ctx context.Context, id types.ID, code string) (*verifyResult, error) {
	var out verifyResult
	if err := a.do(ctx, http.MethodPost, "/api/requests/"+string(id)+"/verify-otp", map[string]any{"code": code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func createPayload(buyerAt *types.Point) map[string]any {
	buyer := benchBuyer
	if buyerAt != nil {
		buyer = *buyerAt
	}
	return map[string]any{
		"buyer_name":       "Bench Buyer",
		"buyer_phone":      "9812345678",
		"delivery_address": "4th Cross, Indiranagar",
		"buyer_lat":        buyer.Lat,
		"buyer_lng":        buyer.Lng,
		"shop_lat":         benchShop.Lat,
		"shop_lng":         benchShop.Lng,
		"total_amount":     45000,
	}
}

func fail(err error) Result {
	return Result{Status: "FAIL", Note: err.Error()}
}

func lifecycleScenario(ctx context.Context, r *Runner) Result {
	api := r.api()
	start := time.Now()

	d, err := api.onlineDriver(ctx, "bench-life", benchDriver)
	if err != nil {
		return fail(err)
	}
	created, err := api.createRequest(ctx, nil)
	if err != nil {
		return fail(err)
	}
	id := created.Request.ID
	if created.Request.Status != delivery.StatusPending || len(created.OTP) != 4 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("created status=%s otp=%q", created.Request.Status, created.OTP)}
	}

	if err := api.accept(ctx, id, d.ID); err != nil {
		return fail(err)
	}
	if _, err := api.verify(ctx, id, created.OTP); err == nil {
		return Result{Status: "FAIL", Note: "verify before pick up was accepted"}
	}
	if err := api.pickUp(ctx, id, d.ID); err != nil {
		return fail(err)
	}

	wrong := "0000"
	if created.OTP == wrong {
		wrong = "1111"
	}
	res, err := api.verify(ctx, id, wrong)
	if err != nil {
		return fail(err)
	}
	if res.Success {
		return Result{Status: "FAIL", Note: "wrong OTP completed the delivery"}
	}

	res, err = api.verify(ctx, id, created.OTP)
	if err != nil {
		return fail(err)
	}
	if !res.Success || res.Request == nil || res.Request.Status != delivery.StatusDelivered {
		return Result{Status: "FAIL", Note: fmt.Sprintf("verify result=%+v", res)}
	}

	got, err := api.getRequest(ctx, id)
	if err != nil {
		return fail(err)
	}
	if got.DeliveredAt == nil || got.DriverID == nil || *got.DriverID != d.ID {
		return Result{Status: "FAIL", Note: "delivered record missing driver or timestamp"}
	}
	return Result{Status: "PASS", Latency: time.Since(start)}
}

func noDriverScenario(ctx context.Context, r *Runner) Result {
	api := r.api()
	start := time.Now()
	_, err := api.createRequest(ctx, &benchFar)
	se, ok := err.(*statusError)
	if !ok {
		if err == nil {
			return Result{Status: "FAIL", Note: "request admitted with no driver in radius"}
		}
		return fail(err)
	}
	if se.Code != http.StatusUnprocessableEntity {
		return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", se.Code)}
	}
	return Result{Status: "PASS", Latency: time.Since(start), Note: "status=422"}
}

func offlineScenario(ctx context.Context, r *Runner) Result {
	api := r.api()
	d, err := api.onlineDriver(ctx, "bench-offline", benchDriver)
	if err != nil {
		return fail(err)
	}
	created, err := api.createRequest(ctx, nil)
	if err != nil {
		return fail(err)
	}
	id := created.Request.ID
	if err := api.accept(ctx, id, d.ID); err != nil {
		return fail(err)
	}
	if err := api.do(ctx, http.MethodPost, "/api/drivers/"+string(d.ID)+"/online", map[string]any{"online": false}, nil); err != nil {
		return fail(err)
	}
	got, err := api.getRequest(ctx, id)
	if err != nil {
		return fail(err)
	}
	if got.Status != delivery.StatusAccepted {
		return Result{Status: "FAIL", Note: "status after going offline: " + string(got.Status)}
	}
	if err := api.pickUp(ctx, id, d.ID); err != nil {
		return fail(err)
	}
	return Result{Status: "PASS"}
}

// fanoutConvergence follows the request feed over the websocket while a
// reconciler polls the list endpoint, and checks both agree on the final
// state of a request driven through the lifecycle.
func fanoutConvergence(ctx context.Context, r *Runner) Result {
	api := r.api()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(r.cfg.BaseURL, "http") + "/api/events?topics=" + string(notify.TopicRequests)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return Result{Status: "PENDING", Note: "event stream disabled"}
		}
		return fail(err)
	}
	defer conn.Close()

	var mu sync.Mutex
	seen := make(map[types.ID][]types.ChangeKind)
	changes := make(chan notify.Change[delivery.Request], 64)
	go func() {
		defer close(changes)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			e, err := notify.Decode(data)
			if err != nil {
				continue
			}
			c, err := e.Requests()
			if err != nil {
				continue
			}
			if c.New != nil {
				mu.Lock()
				seen[c.New.ID] = append(seen[c.New.ID], c.Type)
				mu.Unlock()
			}
			select {
			case changes <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	view := notify.NewReconciler(func(req delivery.Request) types.ID { return req.ID }, api.listRequests, time.Second)
	go view.Run(ctx, changes)

	start := time.Now()
	d, err := api.onlineDriver(ctx, "bench-fanout", benchDriver)
	if err != nil {
		return fail(err)
	}
	created, err := api.createRequest(ctx, nil)
	if err != nil {
		return fail(err)
	}
	id := created.Request.ID
	if err := api.accept(ctx, id, d.ID); err != nil {
		return fail(err)
	}
	if err := api.pickUp(ctx, id, d.ID); err != nil {
		return fail(err)
	}

	for {
		if got, ok := view.Get(id); ok && got.Status == delivery.StatusPickedUp {
			break
		}
		select {
		case <-ctx.Done():
			return Result{Status: "FAIL", Note: "view did not converge"}
		case <-time.After(100 * time.Millisecond):
		}
	}
	latency := time.Since(start)

	mu.Lock()
	events := len(seen[id])
	mu.Unlock()
	if err := view.Poll(ctx); err != nil {
		return fail(err)
	}
	if got, ok := view.Get(id); !ok || got.Status != delivery.StatusPickedUp {
		return Result{Status: "FAIL", Note: "poll disagrees with stream"}
	}
	return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("events=%d", events)}
}
