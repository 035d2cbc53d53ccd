package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendance-checker/internal/attendance"
	"attendance-checker/internal/codec"
	"attendance-checker/internal/members"
	"attendance-checker/internal/platform/auth"
	"attendance-checker/internal/platform/db"
	"attendance-checker/internal/platform/metrics"
	"attendance-checker/internal/scan"
)

func main() {
	// 設定読み込み
	cfgPath := db.DefaultConfigPath
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}
	cfg, err := db.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("[ERROR] config: %v", err)
	}
	log.Printf("[INFO] mode:%s", cfg.Mode)

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("[ERROR] db: %v", err)
	}
	defer conn.Close()
	log.Printf("[INFO] connected to DB (%s)", cfg.DB.Driver)

	ctx := context.Background()
	if err := db.Migrate(ctx, conn, cfg.DB.Driver); err != nil {
		log.Fatalf("[ERROR] migrate: %v", err)
	}

	// ===== ドメイン組み立て =====
	qr, err := codec.New(cfg.Artifacts.Level, cfg.Artifacts.ModulePx)
	if err != nil {
		log.Fatalf("[ERROR] codec: %v", err)
	}

	memberSvc := members.NewService(conn, members.NewArtifacts(cfg.Artifacts.Dir, qr), members.Options{
		PurgePIN:  cfg.Auth.PurgePIN,
		CacheTTL:  cfg.Cache.TTL,
		ExportDir: cfg.Export.Dir,
		Encoding:  cfg.Export.Encoding,
	})

	ledger := attendance.NewLedger()
	attendanceSvc := attendance.NewService(ledger, cfg.Export.Dir, cfg.Export.Encoding)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := scan.NewHub()
	session := scan.NewSession(newCamera(cfg.Capture), qr, memberSvc, ledger, hub,
		scan.WithMetrics(metrics.NewScan(reg)))

	authSvc := auth.NewService(auth.NewStore(conn), []byte(cfg.Auth.JWTSecret))
	if err := authSvc.EnsureAdmin(ctx, cfg.Auth.AdminUser, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	// ===== HTTP =====
	if cfg.Mode == "dev" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	_ = r.SetTrustedProxies(nil)

	if cfg.Mode == "dev" {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:3000"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Location"},
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス
	r.GET("/healthz", func(c *gin.Context) {
		if err := conn.PingContext(c.Request.Context()); err != nil {
			c.String(http.StatusServiceUnavailable, "db unavailable")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// /api/v1
	api := r.Group("/api/v1")
	auth.RegisterLogin(api, authSvc)

	secured := api.Group("", auth.RequireAuth(authSvc.Secret()))
	adminOnly := auth.RequireRole(auth.RoleAdmin)
	auth.RegisterOperators(secured, authSvc, adminOnly)
	members.RegisterRoutes(secured, memberSvc, adminOnly)
	attendance.RegisterRoutes(secured, attendanceSvc)
	scan.RegisterRoutes(secured, session, hub)

	// SSE 接続はシャットダウン時に baseCtx の cancel で切る
	baseCtx, cancelBase := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		var err error
		if cfg.Certificate.Cert != "" && cfg.Certificate.Key != "" {
			certFile := fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Cert)
			keyFile := fmt.Sprintf("config/tls/%s/%s", cfg.Mode, cfg.Certificate.Key)
			log.Printf("[INFO] listening on https://%s", cfg.Server.Addr)
			err = srv.ListenAndServeTLS(certFile, keyFile)
		} else {
			log.Printf("[INFO] listening on http://%s", cfg.Server.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("[INFO] shutting down...")

	// カメラを先に解放する
	session.Stop()
	cancelBase()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] shutdown: %v", err)
	}
}

func newCamera(c db.CaptureConfig) scan.Camera {
	if c.Source == "dir" {
		log.Printf("[INFO] capture: replaying frames from %s", c.Dir)
		return &scan.DirCamera{Dir: c.Dir, Interval: c.Interval}
	}
	log.Printf("[INFO] capture: mjpeg stream %s", c.URL)
	return &scan.MJPEGCamera{URL: c.URL, OpenTimeout: c.OpenTimeout}
}
