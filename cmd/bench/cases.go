// README: Bench test cases for the dispatch API; includes HTTP, DB, Redis, websocket and performance checks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"kirana/internal/infra"
	"kirana/internal/types"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

// Seed coordinates: a shop in central Bengaluru and drivers parked around it.
var (
	benchShop   = types.Point{Lat: 12.9716, Lng: 77.5946}
	benchBuyer  = types.Point{Lat: 12.9780, Lng: 77.6010}
	benchDriver = types.Point{Lat: 12.9740, Lng: 77.5960}
	// Roughly 8 km north of the shop and of every seeded driver.
	benchFar = types.Point{Lat: 13.0436, Lng: 77.5946}
)

var schemaTables = []string{"schema_migrations", "shops", "buyers", "drivers", "delivery_requests"}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "DB reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "Redis reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "Apply embedded migrations",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				start := time.Now()
				if err := infra.Migrate(ctx, r.db); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "Schema tables present",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				for _, t := range schemaTables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCaseMethod("API: health", http.MethodGet, base+"/health", nil, []int{200}, nil),
		httpCaseMethod("API: client config", http.MethodGet, base+"/api/client-config", nil, []int{200}, []int{404}),

		// Validation
		httpCase("Request: missing fields -> 400", base+"/api/requests", map[string]any{}, []int{400}, []int{404}),
		httpCase("Request: bad coordinates -> 400", base+"/api/requests", map[string]any{
			"buyer_name":       "Asha",
			"buyer_phone":      "9800000000",
			"delivery_address": "12 MG Road",
			"buyer_lat":        123.0,
			"buyer_lng":        456.0,
			"shop_lat":         benchShop.Lat,
			"shop_lng":         benchShop.Lng,
			"total_amount":     45000,
		}, []int{400}, []int{404}),
		httpCaseMethod("Location: invalid coords -> 400", http.MethodPut, base+"/api/drivers/bench-nobody/location", map[string]any{
			"lat": 123.0,
			"lng": 456.0,
		}, []int{400}, nil),
		httpCaseMethod("Request: unknown id -> 404", http.MethodGet, base+"/api/requests/does-not-exist", nil, []int{404}, nil),
		httpCase("Accept: unknown request -> 404", base+"/api/requests/does-not-exist/accept", map[string]any{
			"driver_id": "bench-nobody",
		}, []int{404}, nil),

		// Lifecycle
		{
			Name:  "Scenario: create -> accept -> pick up -> verify OTP",
			Focus: "Full delivery lifecycle",
			Run:   lifecycleScenario,
		},
		{
			Name:  "Scenario: no driver in radius -> 422",
			Focus: "Admission requires a nearby online driver",
			Run:   noDriverScenario,
		},
		{
			Name:  "Scenario: offline driver keeps accepted job",
			Focus: "Going offline does not cascade to requests",
			Run:   offlineScenario,
		},
		manualCase("Retention: stale sweep", "run the API with KIRANA_RETENTION_MAX_AGE=1m and watch delivered rows disappear"),
		manualCase("Push: new request notification", "needs a Firebase project and a registered device token"),

		// Concurrency
		{
			Name:  "Concurrency: multi accept same request",
			Focus: "Exactly one driver wins the claim",
			Run: func(ctx context.Context, r *Runner) Result {
				return concurrentAccept(ctx, r)
			},
		},

		// Fan-out
		{
			Name:  "Fan-out: websocket + poll converge",
			Focus: "Event stream and polling agree on final state",
			Run:   fanoutConvergence,
		},

		// Performance
		{
			Name:  "Perf: location update throughput",
			Focus: "50~100 location updates per second",
			Run: func(ctx context.Context, r *Runner) Result {
				api := r.api()
				d, err := api.onlineDriver(ctx, "bench-perf", benchDriver)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return perfLoad(ctx, r, http.MethodPut, base+"/api/drivers/"+string(d.ID)+"/location", map[string]any{
					"lat": benchDriver.Lat,
					"lng": benchDriver.Lng,
				})
			},
		},
		{
			Name:  "Perf: create request throughput",
			Focus: "10~20 new requests per second",
			Run: func(ctx context.Context, r *Runner) Result {
				api := r.api()
				if _, err := api.onlineDriver(ctx, "bench-perf", benchDriver); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return perfLoad(ctx, r, http.MethodPost, base+"/api/requests", createPayload(nil))
			},
		},
	}
}

func httpCase(name, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return httpCaseMethod(name, http.MethodPost, url, body, okStatuses, pendingStatuses)
}

func httpCaseMethod(name, method, url string, body any, okStatuses, pendingStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			var reader io.Reader
			if body != nil {
				b, _ := json.Marshal(body)
				reader = strings.NewReader(string(b))
			}
			req, _ := http.NewRequestWithContext(ctx, method, url, reader)
			req.Header.Set("Content-Type", "application/json")
			start := time.Now()
			resp, err := r.httpc.Do(req)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			latency := time.Since(start)

			if contains(okStatuses, resp.StatusCode) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			if contains(pendingStatuses, resp.StatusCode) {
				return Result{Status: "PENDING", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", resp.StatusCode)}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

// concurrentAccept registers one driver per worker so every claim is a
// distinct, valid driver, then fires all accepts at the same request.
func concurrentAccept(ctx context.Context, r *Runner) Result {
	api := r.api()
	drivers := make([]types.ID, 0, r.cfg.Concurrency)
	for i := 0; i < r.cfg.Concurrency; i++ {
		d, err := api.onlineDriver(ctx, fmt.Sprintf("bench-race-%d", i), benchDriver)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		drivers = append(drivers, d.ID)
	}
	created, err := api.createRequest(ctx, nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}

	url := r.cfg.BaseURL + "/api/requests/" + string(created.Request.ID) + "/accept"
	wg := sync.WaitGroup{}
	succ, conflict := 0, 0
	mu := sync.Mutex{}
	start := make(chan struct{})

	for _, id := range drivers {
		wg.Add(1)
		go func(driverID types.ID) {
			defer wg.Done()
			b, _ := json.Marshal(map[string]any{"driver_id": driverID})
			<-start
			req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
			req.Header.Set("Content-Type", "application/json")
			resp, err := r.httpc.Do(req)
			if err != nil {
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			mu.Lock()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				succ++
			case resp.StatusCode == http.StatusConflict:
				conflict++
			}
			mu.Unlock()
		}(id)
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("success=%d conflict=%d", succ, conflict)
	if succ == 1 && conflict == len(drivers)-1 {
		return Result{Status: "PASS", Note: note}
	}
	return Result{Status: "FAIL", Note: note}
}

func perfLoad(ctx context.Context, r *Runner, method, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, method, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				if resp.StatusCode >= 300 {
					errCount++
				}
				count++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
