package ttms

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"kyri56xcaesar/ttms-proj/internal/authmw"
	"kyri56xcaesar/ttms-proj/internal/logging"
	"kyri56xcaesar/ttms-proj/internal/utils"
)

const templatesPath = "./internal/ttms/web/templates"

var (
	config Config
	engine *gin.Engine
	store  Store
)

func initStore() {
	if strings.ToLower(config.DBDriver) == "memory" {
		logging.Logger.Warn("running on the in-memory store, nothing will survive a restart")
		store = newMemStore()

		return
	}

	pool, err := pgxpool.New(
		context.Background(),
		fmt.Sprintf(
			"postgres://%s:%s@%s/%s",
			config.DBUser,
			config.DBPassword,
			config.DBAddress,
			config.DBName,
		),
	)
	if err != nil {
		logging.Logger.Fatalf("could not connect to the database: %v", err)
	}

	if err = pool.Ping(context.Background()); err != nil {
		logging.Logger.Fatalf("failed to ping the db: %v", err)
	}

	b, err := os.ReadFile(config.InitSQLPath)
	if err != nil {
		logging.Logger.Fatalf("failed to open and read the init sql file: %v", err)
	}
	// apply init sql script
	if _, err = pool.Exec(context.Background(), string(b)); err != nil {
		logging.Logger.Fatalf("failed to execute init sql: %v", err)
	}

	store = newPgStore(pool)
}

func setCors() {
	corsconfig := cors.DefaultConfig()
	corsconfig.AllowOrigins = config.AllowedOrigins
	corsconfig.AllowMethods = config.AllowedMethods
	corsconfig.AllowHeaders = config.AllowedHeaders
	engine.Use(cors.New(corsconfig))
}

func setTemplateEngine() {
	funcMap := template.FuncMap{
		"add": func(a, b any) float64 {
			return utils.ToFloat64(a) + utils.ToFloat64(b)
		},
		"sub": func(a, b any) float64 {
			return utils.ToFloat64(a) - utils.ToFloat64(b)
		},
		"div": func(a, b any) float64 {
			if utils.ToFloat64(b) == 0 {
				return 0
			}

			return utils.ToFloat64(a) / utils.ToFloat64(b)
		},
		"lower":         strings.ToLower,
		"ago":           utils.Ago,
		"statusDisplay": StatusDisplay,
	}
	engine.SetHTMLTemplate(template.Must(template.New("").Funcs(funcMap).ParseGlob(templatesPath + "/*.html")))
}

func setRoutes() {
	root := engine.Group("/")
	{
		root.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "alive"})
		})
		root.POST("/logout", handleLogout)
	}

	dashboard := engine.Group("/dashboard")
	if config.AuthEnabled {
		auth, err := authmw.NewTokenAuth(config.JwksURL, config.Issuer, config.Audience, config.ClientID)
		if err != nil {
			logging.Logger.Fatalf("failed to instantiate the auth middleware: %v", err)
		}
		dashboard.Use(auth.RequireRoles(config.AdminRoles...))
	}
	{
		dashboard.GET("/", handleDashboard)

		dashboard.GET("/users/", handleUsersPage)
		dashboard.POST("/users/add/", handleUserAdd)
		dashboard.POST("/users/edit/:id/", handleUserEdit)
		dashboard.POST("/users/delete/:id/", handleUserDelete)
		dashboard.GET("/users/get/:id/", handleUserGet)

		dashboard.GET("/tasks/", handleTasksPage)
		dashboard.POST("/tasks/add/", handleTaskAdd)
		dashboard.POST("/tasks/edit/:id/", handleTaskEdit)
		dashboard.POST("/tasks/delete/:id/", handleTaskDelete)
		dashboard.GET("/tasks/get/:id/", handleTaskGet)

		dashboard.GET("/assign/", handleAssignPage)
		dashboard.POST("/assign/add/", handleAssignAdd)
		dashboard.POST("/assign/edit/:id/", handleAssignEdit)
		dashboard.POST("/assign/delete/:id/", handleAssignDelete)
		dashboard.POST("/assign/complete/:id/", handleAssignComplete)
		dashboard.POST("/assign/recompute/:id/", handleAssignRecompute)
		dashboard.POST("/assign/bulk-update/", handleAssignBulkUpdate)

		dashboard.GET("/api/assign/:id/", handleAssignSnapshot)
		dashboard.POST("/api/assign/:id/status/", handleAssignStatusOverride)
		dashboard.GET("/api/assign/:id/overrides/", handleAssignOverridesList)

		dashboard.GET("/alerts/", handleAlertsPage)
		dashboard.POST("/alerts/add/", handleAlertAdd)
		dashboard.POST("/alerts/delete/:id/", handleAlertDelete)

		dashboard.GET("/metrics/", handleMetricsPage)
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "bad path"})
	})
}

func InitAndServe(confPath string) {
	config = loadConfig(confPath)
	logging.InitLogger("ttms-back", config.LogPath)

	engine = gin.Default()
	setGinMode(config.ApiGinMode)

	setCors()
	setTemplateEngine()
	setRoutes()

	initStore()

	// serve http
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port),
		Handler:           engine,
		ReadHeaderTimeout: time.Second * 5,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Fatalf("listen: %s", err)
		}
	}()

	<-ctx.Done()

	stop()
	logging.Logger.Info("shutting down gracefully, press Ctrl+C again to force")

	store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logging.Logger.Info("Server exiting")
}

func setGinMode(mode string) {
	switch strings.ToLower(mode) {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "envgin":
		gin.SetMode(gin.EnvGinMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
}

func respondInFormat(c *gin.Context, data any, templateName string) {
	format := c.DefaultQuery("format", "html")

	switch strings.ToLower(format) {
	case "json":
		c.JSON(http.StatusOK, data)

	case "xml":
		c.XML(http.StatusOK, data)

	case "html":
		if templateName == "" {
			c.JSON(http.StatusNotAcceptable, gin.H{"error": "HTML format not supported for this endpoint"})
			return
		}
		c.HTML(http.StatusOK, templateName, data)

	default:
		c.JSON(http.StatusOK, data)
	}
}
