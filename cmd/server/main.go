package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/quizhive/api/auth"
	"github.com/quizhive/api/crypto"
	"github.com/quizhive/api/game"
	"github.com/quizhive/api/migrations"
	"github.com/quizhive/api/queue"
	"github.com/quizhive/api/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {

	// .env is optional, real deployments inject the environment
	godotenv.Load()

	// logger setup
	if os.Getenv("ENV") == "development" {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug})))
	} else {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	}

	// ENVs
	ALLOWED_ORIGINS, exists := os.LookupEnv("ALLOWED_ORIGINS")
	if !exists {
		log.Fatal("Missing allowed origins")
	}
	allowedOrigins := strings.Split(ALLOWED_ORIGINS, ",")

	POSTGRES_URL, exists := os.LookupEnv("POSTGRES_URL")
	if !exists {
		log.Fatal("Missing postgres url")
	}

	JWT_KEY, exists := os.LookupEnv("JWT_KEY")
	if !exists {
		log.Fatal("Missing jwt signing key")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	// run migrations
	migrations.Migrate(POSTGRES_URL)

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(context.Background(), POSTGRES_URL)
	if err != nil {
		log.Fatal(err)
	}
	defer pgRepo.Close()

	tokenAge := time.Hour * 24 * 7 // 7 days
	passwordHasher := crypto.NewArgon2idHasher(3, 1024*64, 32, 16, 1)
	tokenManager := crypto.NewJWTManager(JWT_KEY, tokenAge)

	authService := auth.NewService(pgRepo, passwordHasher, tokenManager)
	authHandler := auth.NewAuthHandler(authService, tokenAge)

	// optional out-of-process publishers
	var snapshotSink game.SnapshotSink
	var kickPublisher game.KickPublisher
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisPublisher := storage.NewRedisPublisher(redisAddr)
		defer redisPublisher.Close()
		snapshotSink = redisPublisher
		kickPublisher = redisPublisher
	}

	var badgeIssuer game.BadgeIssuer = pgRepo
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		badgePublisher, err := queue.NewBadgePublisher(amqpURL)
		if err != nil {
			log.Fatal("Failed to connect to AMQP broker:", err)
		}
		defer badgePublisher.Close()
		badgeIssuer = badgePublisher
	}

	cfg := game.DefaultConfig()
	idGen := game.NewIdGen()
	tickerGen := game.NewTickerGen()
	registry := game.NewRegistry(cfg, &idGen)
	presence := game.NewPresenceGuard(cfg.SessionTTL)

	lobby := game.NewLobbyActor(cfg, registry, presence, &idGen, &tickerGen,
		pgRepo, pgRepo, badgeIssuer, snapshotSink, kickPublisher)
	lobby.Seed()
	go lobby.Run()

	gameHandler := game.NewGameHandler(lobby, presence, pgRepo)

	r := CreateServer(allowedOrigins)

	{
		authGroup := r.Group("/auth")
		authGroup.POST("/signup", authHandler.SignupHandler)
		authGroup.POST("/login", authHandler.LoginHandler)
		authGroup.POST("/logout", authHandler.LogoutHandler)
		authGroup.GET("/refresh", authHandler.RefreshSessionHandler)
	}

	{
		gameGroup := r.Group("/game")
		gameGroup.Use(authHandler.RequireAuthMiddleware(time.Second * 2))

		gameGroup.GET("/play", gameHandler.PlayHandler)
		gameGroup.GET("/rooms", gameHandler.RoomsHandler)
		gameGroup.GET("/leaderboard", func(ctx *gin.Context) {
			period := ctx.DefaultQuery("period", time.Now().UTC().Format("2006-01-02"))
			standings, err := pgRepo.TopStandings(ctx.Request.Context(), period, 50)
			if err != nil {
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"period": period, "standings": standings})
		})
	}

	go r.Run(":" + port)
	slog.Info("server started", "port", port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh

	slog.Info("shutdown signal received, stopping lobby")
	lobby.Stop()
	slog.Info("shutting down now")
}
