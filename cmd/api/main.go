package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studentdesk/internal/archive"
	"studentdesk/internal/auth"
	"studentdesk/internal/config"
	"studentdesk/internal/httpmiddleware"
	"studentdesk/internal/ledger"
	"studentdesk/internal/metrics"
	"studentdesk/internal/queue"
	"studentdesk/internal/registry"
	"studentdesk/internal/session"
	"studentdesk/internal/store"
)

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
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
		return err
	}
	defer db.Close()

	if err := db.Init(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "studentdesk:summaries")
	}

	reg := registry.NewService(registry.NewRepository(db.Client))
	led := ledger.NewService(ledger.NewRepository(db.Client), redisClient.Client, q)
	arch := archive.NewService(archive.NewRepository(db.Client))

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RequestID())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
			return
		}

		identity, err := auth.Login(c.Request.Context(), reg, req.Username, req.Password)
		if err != nil {
			metrics.LoginAttempts.WithLabelValues("failed").Inc()
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidCredentials.Error()})
				return
			}
			log.Printf("login failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login unavailable"})
			return
		}
		metrics.LoginAttempts.WithLabelValues(string(identity.Role)).Inc()

		tokens, err := auth.Issue(identity.Username, identity.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
			"role":          identity.Role,
			"full_name":     identity.FullName,
		})
	})

	authGroup := r.Group("/v1", auth.Middleware(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/logout", func(c *gin.Context) {
		// Tokens are stateless; the transition back to anonymous happens
		// when the client discards them.
		_ = auth.FromContext(c).Logout()
		c.Status(http.StatusNoContent)
	})

	authGroup.GET("/notes/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid note id"})
			return
		}
		note, err := arch.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		if !auth.FromContext(c).CanViewStudent(note.Username) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+note.FileName+`"`)
		c.Data(http.StatusOK, note.MimeType, note.Data)
	})

	adminGroup := authGroup.Group("", auth.RequireRole(session.RoleAdmin))

	adminGroup.GET("/students", func(c *gin.Context) {
		students, err := reg.List(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students})
	})

	adminGroup.POST("/students", func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			FullName string `json:"full_name"`
			Email    string `json:"email"`
			Program  string `json:"program"`
			Phone    string `json:"phone"`
			Notes    string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := reg.Create(c.Request.Context(), registry.Student{
			Username: req.Username,
			Password: req.Password,
			FullName: req.FullName,
			Email:    req.Email,
			Program:  req.Program,
			Phone:    req.Phone,
			Notes:    req.Notes,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"username": strings.TrimSpace(req.Username)})
	})

	adminGroup.GET("/students/:username", func(c *gin.Context) {
		student, err := reg.Get(c.Request.Context(), c.Param("username"))
		if err != nil {
			writeError(c, err)
			return
		}
		if student == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		c.JSON(http.StatusOK, student)
	})

	adminGroup.PATCH("/students/:username", func(c *gin.Context) {
		var req struct {
			Password *string `json:"password"`
			FullName *string `json:"full_name"`
			Email    *string `json:"email"`
			Program  *string `json:"program"`
			Phone    *string `json:"phone"`
			Notes    *string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		err := reg.Update(c.Request.Context(), c.Param("username"), registry.Patch{
			Password: req.Password,
			FullName: req.FullName,
			Email:    req.Email,
			Program:  req.Program,
			Phone:    req.Phone,
			Notes:    req.Notes,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": c.Param("username")})
	})

	adminGroup.DELETE("/students/:username", func(c *gin.Context) {
		if err := reg.Delete(c.Request.Context(), c.Param("username")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	adminGroup.GET("/students/:username/notes", func(c *gin.Context) {
		notes, err := arch.ListFor(c.Request.Context(), c.Param("username"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notes": notes})
	})

	adminGroup.GET("/students/:username/attendance", func(c *gin.Context) {
		entries, err := led.History(c.Request.Context(), c.Param("username"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	adminGroup.GET("/students/:username/attendance/summary", func(c *gin.Context) {
		sum, err := led.Summary(c.Request.Context(), c.Param("username"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	adminGroup.POST("/notes", func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, int64(cfg.MaxUploadBytes)+1))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}
		if len(data) > cfg.MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		title := c.PostForm("title")
		mimeType := header.Header.Get("Content-Type")

		if c.PostForm("all") == "true" {
			students, err := reg.List(c.Request.Context())
			if err != nil {
				writeError(c, err)
				return
			}
			usernames := make([]string, 0, len(students))
			for _, s := range students {
				usernames = append(usernames, s.Username)
			}
			broadcast(c, arch, usernames, title, header.Filename, mimeType, data)
			return
		}
		if list := c.PostForm("usernames"); list != "" {
			broadcast(c, arch, splitUsernames(list), title, header.Filename, mimeType, data)
			return
		}

		username := c.PostForm("username")
		id, err := arch.Add(c.Request.Context(), username, title, header.Filename, mimeType, data)
		if err != nil {
			writeError(c, err)
			return
		}
		metrics.NoteUploads.Inc()
		c.JSON(http.StatusCreated, gin.H{"id": id})
	})

	adminGroup.DELETE("/notes/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid note id"})
			return
		}
		if err := arch.Delete(c.Request.Context(), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	studentGroup := authGroup.Group("/me", auth.RequireRole(session.RoleStudent))

	studentGroup.GET("", func(c *gin.Context) {
		sess := auth.FromContext(c)
		student, err := reg.Get(c.Request.Context(), sess.User)
		if err != nil {
			writeError(c, err)
			return
		}
		if student == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student record not found"})
			return
		}
		c.JSON(http.StatusOK, student)
	})

	studentGroup.PATCH("/contact", func(c *gin.Context) {
		sess := auth.FromContext(c)
		if !sess.CanEditContact(sess.User) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		var req struct {
			Email *string `json:"email"`
			Phone *string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := reg.UpdateContact(c.Request.Context(), sess.User, req.Email, req.Phone); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"username": sess.User})
	})

	studentGroup.POST("/attendance", func(c *gin.Context) {
		sess := auth.FromContext(c)
		if !sess.CanMarkAttendance(sess.User) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		var req struct {
			Date   string `json:"date" binding:"required"`
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := led.Mark(c.Request.Context(), sess.User, req.Date, ledger.Status(req.Status)); err != nil {
			writeError(c, err)
			return
		}
		metrics.AttendanceMarks.Inc()
		c.JSON(http.StatusOK, gin.H{"date": req.Date, "status": req.Status})
	})

	studentGroup.GET("/attendance", func(c *gin.Context) {
		entries, err := led.History(c.Request.Context(), auth.FromContext(c).User)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	studentGroup.GET("/attendance/today", func(c *gin.Context) {
		today := time.Now().UTC().Format("2006-01-02")
		status, marked, err := led.StatusOn(c.Request.Context(), auth.FromContext(c).User, today)
		if err != nil {
			writeError(c, err)
			return
		}
		resp := gin.H{"date": today, "marked": marked}
		if marked {
			resp["status"] = status
		}
		c.JSON(http.StatusOK, resp)
	})

	studentGroup.GET("/attendance/month", func(c *gin.Context) {
		now := time.Now().UTC()
		year, month := now.Year(), int(now.Month())
		if v := c.Query("year"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				year = parsed
			}
		}
		if v := c.Query("month"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				month = parsed
			}
		}
		view, err := led.MonthView(c.Request.Context(), auth.FromContext(c).User, year, month)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})

	studentGroup.GET("/attendance/summary", func(c *gin.Context) {
		sum, err := led.Summary(c.Request.Context(), auth.FromContext(c).User)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	studentGroup.GET("/notes", func(c *gin.Context) {
		notes, err := arch.ListFor(c.Request.Context(), auth.FromContext(c).User)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notes": notes})
	})

	// Graceful shutdown
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

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func broadcast(c *gin.Context, arch *archive.Service, usernames []string, title, fileName, mimeType string, data []byte) {
	res := arch.AddBroadcast(c.Request.Context(), usernames, title, fileName, mimeType, data)
	metrics.NoteUploads.Add(float64(res.Succeeded))
	metrics.BroadcastFailures.Add(float64(res.Failed()))

	failures := make([]gin.H, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, gin.H{"username": f.Username, "reason": f.Reason()})
	}
	c.JSON(http.StatusOK, gin.H{
		"succeeded": res.Succeeded,
		"failed":    res.Failed(),
		"failures":  failures,
	})
}

func splitUsernames(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrValidation),
		errors.Is(err, ledger.ErrValidation),
		errors.Is(err, archive.ErrValidation),
		errors.Is(err, archive.ErrEmptyPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrDuplicateKey):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		log.Printf("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
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

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
