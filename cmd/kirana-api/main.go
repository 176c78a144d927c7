// README: Entry point; loads config, wires services, starts HTTP server, event relay and retention sweeper.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kirana/internal/config"
	httptransport "kirana/internal/http"
	"kirana/internal/infra"
	"kirana/internal/maps"
	"kirana/internal/modules/buyer"
	"kirana/internal/modules/delivery"
	"kirana/internal/modules/matching"
	"kirana/internal/modules/notify"
	"kirana/internal/modules/presence"
	"kirana/internal/modules/pricing"
	"kirana/internal/modules/retention"
	"kirana/internal/modules/shop"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("[kirana] config: %s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		requestStore delivery.Repository
		driverStore  presence.Repository
		shopStore    shop.Repository
		buyerStore   buyer.Repository
	)
	if cfg.DB.DSN != "" {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal(err)
		}
		defer dbPool.Close()
		if err := infra.Migrate(ctx, dbPool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		requestStore = delivery.NewStore(dbPool)
		driverStore = presence.NewStore(dbPool)
		shopStore = shop.NewStore(dbPool)
		buyerStore = buyer.NewStore(dbPool)
	} else {
		log.Printf("[kirana] KIRANA_DB_DSN is empty: using in-memory stores, all data is lost on restart")
		requestStore = delivery.NewMemoryStore()
		driverStore = presence.NewMemoryStore()
		shopStore = shop.NewMemoryStore()
		buyerStore = buyer.NewMemoryStore()
	}

	hub := notify.NewHub()
	go hub.Run(ctx)

	var (
		geo  presence.GeoIndex
		feed *notify.RedisFeed
	)
	if cfg.Redis.Addr != "" {
		redisClient, err := infra.ConnectRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			log.Fatal(err)
		}
		defer redisClient.Close()
		geo = matching.NewGeoIndex(redisClient)
		feed = notify.NewRedisFeed(redisClient)
		go func() {
			if err := feed.Relay(ctx, hub); err != nil {
				log.Printf("[kirana] change feed relay stopped: %v", err)
			}
		}()
	}
	fanout := notify.NewFanout(hub, feed)

	var (
		requestGeocoder delivery.Geocoder
		shopGeocoder    shop.Geocoder
		buyerGeocoder   buyer.Geocoder
	)
	if cfg.Maps.APIKey != "" {
		g, err := maps.NewGeocoder(cfg.Maps.APIKey, "in")
		if err != nil {
			log.Fatal(err)
		}
		requestGeocoder, shopGeocoder, buyerGeocoder = g, g, g
	}

	var dispatcher delivery.Dispatcher
	if cfg.Firebase.ProjectID != "" {
		msgClient, err := infra.NewMessagingClient(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
		dispatcher = notify.NewPushNotifier(msgClient, 10)
	}

	presenceSvc := presence.NewService(driverStore, geo, fanout)
	if n, err := presenceSvc.RebuildIndex(ctx); err != nil {
		log.Printf("[kirana] rebuild driver geo index: %v", err)
	} else if geo != nil {
		log.Printf("[kirana] indexed %d online drivers", n)
	}
	matchingSvc := matching.NewService(presenceSvc, cfg.Matching)
	shopSvc := shop.NewService(shopStore, shopGeocoder)
	buyerSvc := buyer.NewService(buyerStore, buyerGeocoder)
	pricingSvc := pricing.NewService(cfg.Fees)

	requestSvc := delivery.NewService(delivery.Deps{
		Store:      requestStore,
		Drivers:    matchingSvc,
		Fees:       pricingSvc,
		Shops:      shopSvc,
		Geocoder:   requestGeocoder,
		Publisher:  fanout,
		Dispatcher: dispatcher,
	})
	presenceSvc.SetTracker(requestSvc)

	sweeper := retention.NewSweeper(requestSvc, cfg.Retention, retention.SystemClock())
	sweeper.Start(ctx)
	defer sweeper.Stop()

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Requests: requestSvc,
		Drivers:  presenceSvc,
		Shops:    shopSvc,
		Buyers:   buyerSvc,
		Hub:      hub,
		Client: httptransport.ClientSettings{
			RadiusKm:         matchingSvc.RadiusKm(),
			LocationInterval: cfg.Presence.LocationInterval,
			PollInterval:     cfg.Presence.PollInterval,
		},
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[kirana] shutdown: %v", err)
		}
	}()

	log.Printf("[kirana] listening on %s", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
