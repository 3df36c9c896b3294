package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mess/internal/apperr"
	"mess/internal/attendance"
	"mess/internal/auth"
	"mess/internal/config"
	"mess/internal/digest"
	"mess/internal/httpmiddleware"
	"mess/internal/meal"
	"mess/internal/notify"
	"mess/internal/qrlink"
	"mess/internal/roster"
	"mess/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	resolver := meal.NewResolver()
	attStore := attendance.NewRepository(db.Client)
	dir := roster.NewRepository(db.Client)
	svc := attendance.NewService(attStore, dir, resolver)
	dig := digest.NewService(attStore, dir, resolver)
	settings := notify.NewRedisSettings(redisClient.Client, "")
	transport := newTransport(cfg)
	sched := notify.NewScheduler(dig, settings, transport, nil)
	qr := qrlink.New(cfg.PublicBaseURL, 0)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Subject string `json:"subject" binding:"required"`
			Role    string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleAdmin && req.Role != auth.RoleStudent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "role must be admin or student"})
			return
		}
		token, exp, err := auth.Issue(req.Subject, req.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"access_token": token, "expires_at": exp.Unix()})
	})

	// QR deep link target. The signed token authorises the mark, so no
	// bearer auth here.
	r.GET("/v1/attendance/scan", func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseScanToken(token, cfg.JWTSigningKey, cfg.JWTIssuer)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid scan token"})
			return
		}
		day, err := time.Parse("2006-01-02", claims.Day)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day in token"})
			return
		}
		rec, err := svc.Mark(c.Request.Context(), claims.StudentID, day, attendance.Marks{meal.Meal(claims.Meal): true})
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
	})

	authed := r.Group("/v1", auth.RequireAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	// A student marks themselves for whichever meal window is open now.
	authed.POST("/attendance/checkin", func(c *gin.Context) {
		claims, ok := auth.ClaimsFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
			return
		}
		ncfg, err := settings.Load(c.Request.Context())
		if err != nil {
			writeErr(c, err)
			return
		}
		now := time.Now()
		m, open := ncfg.MealAt(now.Hour())
		if !open {
			writeErr(c, apperr.Validationf("no meal window is open right now"))
			return
		}
		rec, err := svc.Mark(c.Request.Context(), claims.Subject, now, attendance.Marks{m: true})
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"meal": m, "record": rec})
	})

	admin := authed.Group("", auth.RequireRole(auth.RoleAdmin))

	// Manual per-meal toggle: only the meals present in the request are
	// touched.
	admin.POST("/attendance/mark", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Date      string `json:"date"`
			Breakfast *bool  `json:"breakfast"`
			Lunch     *bool  `json:"lunch"`
			Dinner    *bool  `json:"dinner"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		day, err := parseDay(req.Date)
		if err != nil {
			writeErr(c, err)
			return
		}
		rec, err := svc.Mark(c.Request.Context(), req.StudentID, day, marksFrom(req.Breakfast, req.Lunch, req.Dinner))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
	})

	// Edit-all modal: replaces the full day.
	admin.PUT("/attendance/day", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Date      string `json:"date"`
			Breakfast bool   `json:"breakfast"`
			Lunch     bool   `json:"lunch"`
			Dinner    bool   `json:"dinner"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		day, err := parseDay(req.Date)
		if err != nil {
			writeErr(c, err)
			return
		}
		rec, err := svc.EditDay(c.Request.Context(), req.StudentID, day, req.Breakfast, req.Lunch, req.Dinner)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"record": rec})
	})

	admin.POST("/attendance/bulk", func(c *gin.Context) {
		var req struct {
			StudentIDs []string `json:"student_ids" binding:"required"`
			Date       string   `json:"date"`
			Breakfast  *bool    `json:"breakfast"`
			Lunch      *bool    `json:"lunch"`
			Dinner     *bool    `json:"dinner"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		day, err := parseDay(req.Date)
		if err != nil {
			writeErr(c, err)
			return
		}
		res, err := svc.BulkMark(c.Request.Context(), req.StudentIDs, day, marksFrom(req.Breakfast, req.Lunch, req.Dinner))
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"summary": res.Summary(), "result": res})
	})

	admin.DELETE("/attendance/records/:id", func(c *gin.Context) {
		id := c.Param("id")
		var ref *string
		if id != "" {
			ref = &id
		}
		if err := svc.Delete(c.Request.Context(), ref); err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": id})
	})

	admin.GET("/attendance/window", func(c *gin.Context) {
		start, err1 := time.Parse(time.RFC3339, c.Query("start"))
		end, err2 := time.Parse(time.RFC3339, c.Query("end"))
		if err1 != nil || err2 != nil {
			writeErr(c, apperr.Validationf("start and end must be RFC3339 timestamps"))
			return
		}
		sum, err := dig.Aggregate(c.Request.Context(), start, end)
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	admin.GET("/attendance/stats/today", func(c *gin.Context) {
		stats, err := dig.TodayStats(c.Request.Context())
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	admin.GET("/attendance/qr", func(c *gin.Context) {
		studentID := c.Query("student_id")
		m := meal.Meal(c.Query("meal"))
		if studentID == "" || !m.Valid() {
			writeErr(c, apperr.Validationf("student_id and a valid meal are required"))
			return
		}
		day, err := parseDay(c.Query("date"))
		if err != nil {
			writeErr(c, err)
			return
		}
		if _, err := dir.Lookup(c.Request.Context(), studentID); err != nil {
			writeErr(c, err)
			return
		}
		token, err := auth.IssueScanToken(studentID, day, m, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.ScanTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scan token issue failed"})
			return
		}
		png, err := qr.PNG(token)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	admin.GET("/notifications/config", func(c *gin.Context) {
		ncfg, err := settings.Load(c.Request.Context())
		if err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ncfg)
	})

	admin.PUT("/notifications/config", func(c *gin.Context) {
		var ncfg notify.Config
		if err := c.ShouldBindJSON(&ncfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := settings.Save(c.Request.Context(), ncfg); err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ncfg)
	})

	admin.POST("/notifications/enable", func(c *gin.Context) {
		if err := sched.Enable(c.Request.Context()); err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": true})
	})

	admin.POST("/notifications/disable", func(c *gin.Context) {
		if err := sched.Disable(c.Request.Context()); err != nil {
			writeErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"enabled": false})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func newTransport(cfg config.App) notify.Transport {
	if cfg.NotifyTransport == "sns" && cfg.SNSTopicARN != "" {
		t, err := notify.NewSNSTransport(context.Background(), cfg.AWSRegion, cfg.SNSTopicARN)
		if err == nil {
			log.Printf("SNS transport configured: %s", cfg.SNSTopicARN)
			return t
		}
		log.Printf("SNS transport unavailable, falling back to console: %v", err)
	}
	return notify.NewConsoleTransport()
}

func marksFrom(breakfast, lunch, dinner *bool) attendance.Marks {
	marks := attendance.Marks{}
	if breakfast != nil {
		marks[meal.Breakfast] = *breakfast
	}
	if lunch != nil {
		marks[meal.Lunch] = *lunch
	}
	if dinner != nil {
		marks[meal.Dinner] = *dinner
	}
	return marks
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	day, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, apperr.Validationf("date must be YYYY-MM-DD")
	}
	return day, nil
}

func writeErr(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error()})
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
