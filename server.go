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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warepulse/stockwatch_backend/config"
	"github.com/warepulse/stockwatch_backend/guard"
	"github.com/warepulse/stockwatch_backend/marketsync"
	"github.com/warepulse/stockwatch_backend/middlewares"
	"github.com/warepulse/stockwatch_backend/models"
	"github.com/warepulse/stockwatch_backend/notify"
	"github.com/warepulse/stockwatch_backend/utils"
	"github.com/warepulse/stockwatch_backend/workflow"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("stockwatch-backend")

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type etlRunRequest struct {
	ReportType string   `json:"report_type"`
	Warehouses []string `json:"warehouses"`
	Skus       []string `json:"skus"`
}

type alertActionRequest struct {
	Notes string `json:"notes"`
}

type grantAccessRequest struct {
	UserId      string             `json:"user_id" binding:"required"`
	AccessLevel models.AccessLevel `json:"access_level" binding:"required"`
}

// requireAccess runs the guard for the operation and writes the HTTP error
// when denied. Returns the user id and whether the handler may proceed.
func requireAccess(c *gin.Context, operation string) (string, bool) {
	ctx := c.Request.Context()
	userId, _ := utils.GetUserIdFromContext(ctx)

	decision := guard.CheckAccess(ctx, userId, operation)
	if decision.Allowed {
		return userId, true
	}
	switch decision.Outcome {
	case models.AccessOutcomeLimited:
		c.JSON(http.StatusTooManyRequests, gin.H{"error": decision.Reason})
	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
	return userId, false
}

func runETLHandler(notifier *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := requireAccess(c, guard.OpRunETL)
		if !ok {
			return
		}

		var req etlRunRequest
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		cid, _ := utils.GetCorrelationIdFromContext(ctx)
		payload := marketsync.ETLRunPayload{
			RunId: uuid.New().String(),
			Params: marketsync.ReportParams{
				ReportType: req.ReportType,
				Warehouses: req.Warehouses,
				Skus:       req.Skus,
			},
			TriggeredBy:   userId,
			CorrelationId: cid,
		}

		// Async by default: publish and let the push subscription do the work.
		// Falls back to an inline run when pubsub is not configured.
		if err := marketsync.PublishETLRun(ctx, payload); err != nil {
			logger := config.GetLogger()
			config.LogError(logger, "server", "runETLHandler", "publish; running inline", payload.RunId, err)

			client := mustMarketClient(c)
			if client == nil {
				return
			}
			result, runErr := workflow.ExecuteETL(ctx, client, notifier, payload.Params, payload.RunId, userId)
			if runErr != nil {
				c.JSON(http.StatusBadGateway, gin.H{"run_id": payload.RunId, "error": runErr.Error()})
				return
			}
			c.JSON(http.StatusOK, result)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"run_id": payload.RunId})
	}
}

func etlPushHandler(notifier *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		payload, err := marketsync.DecodeETLRunPush(body)
		if err != nil {
			// Malformed messages are acked, not retried forever.
			c.Status(http.StatusOK)
			return
		}

		ctx := c.Request.Context()
		if payload.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, payload.CorrelationId)
		}
		ctx, span := tracer.Start(ctx, "etl.run")
		defer span.End()

		client := mustMarketClient(c)
		if client == nil {
			return
		}
		result, err := workflow.ExecuteETL(ctx, client, notifier, payload.Params, payload.RunId, payload.TriggeredBy)
		if err != nil {
			// Non-2xx makes pubsub redeliver; the run log already recorded the failure.
			c.JSON(http.StatusInternalServerError, gin.H{"run_id": payload.RunId, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func mustMarketClient(c *gin.Context) marketsync.Client {
	client, err := marketsync.NewClient()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "marketplace client not configured"})
		c.Abort()
		return nil
	}
	return client
}

func listAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAccess(c, guard.OpListAlerts); !ok {
			return
		}

		alerts, err := models.GetActiveAlerts(c.Request.Context(), c.Query("warehouse"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

func alertActionHandler(operation string, action func(ctx context.Context, id int, user string, notes string) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := requireAccess(c, operation)
		if !ok {
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
			return
		}
		var req alertActionRequest
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		changed, err := action(c.Request.Context(), id, userId, req.Notes)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "changed": changed})
	}
}

func exportAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAccess(c, guard.OpExportAlerts); !ok {
			return
		}

		f, err := workflow.ExportActiveAlertsXLSX(c.Request.Context(), c.Query("warehouse"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename := "stock-alerts_" + utils.GenerateUniqueFilename() + ".xlsx"
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server", "exportAlertsHandler", "stream xlsx", filename, err)
		}
	}
}

func grantAccessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := requireAccess(c, guard.OpGrantAccess)
		if !ok {
			return
		}

		var req grantAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		grant, err := guard.GrantAccess(c.Request.Context(), req.UserId, req.AccessLevel, userId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, grant)
	}
}

func processNotificationsHandler(notifier *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAccess(c, guard.OpSweepEscalations); !ok {
			return
		}

		delivered, err := notifier.ProcessPendingNotifications(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"delivered": delivered})
	}
}

func sweepEscalationsHandler(notifier *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAccess(c, guard.OpSweepEscalations); !ok {
			return
		}

		escalated, err := notifier.ProcessEscalations(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		delivered, err := notifier.ProcessPendingNotifications(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"escalated": escalated, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"escalated": escalated, "delivered": delivered})
	}
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes. Until the DB is
	// ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Deny all when not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	notifier := notify.NewEngine(notify.NewSenderRegistry(), notify.DefaultEngineConfig())

	r.POST("/etl/run", runETLHandler(notifier))
	r.POST("/pubsub/etl", etlPushHandler(notifier))
	r.GET("/alerts", listAlertsHandler())
	r.POST("/alerts/:id/acknowledge", alertActionHandler(guard.OpAcknowledgeAlert, models.AcknowledgeAlert))
	r.POST("/alerts/:id/resolve", alertActionHandler(guard.OpResolveAlert, models.ResolveAlert))
	r.POST("/alerts/:id/ignore", alertActionHandler(guard.OpResolveAlert, models.IgnoreAlert))
	r.GET("/alerts/export", exportAlertsHandler())
	r.POST("/access/grant", grantAccessHandler())
	r.POST("/escalations/sweep", sweepEscalationsHandler(notifier))
	r.POST("/notifications/process", processNotificationsHandler(notifier))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
