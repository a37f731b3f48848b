package main

import (
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/user/tradevault/backend/internal/config"
	"github.com/user/tradevault/backend/internal/database"
	"github.com/user/tradevault/backend/internal/escrow"
	"github.com/user/tradevault/backend/internal/handlers"
	"github.com/user/tradevault/backend/internal/middleware"
	"github.com/user/tradevault/backend/internal/notify"
	"github.com/user/tradevault/backend/internal/ratelimit"
	internalws "github.com/user/tradevault/backend/internal/websocket"
)

func main() {
	cfg := config.Load()

	// Initialize Database
	database.InitDB(cfg.DatabaseURL)
	defer database.CloseDB() // Ensure DB connection is closed on exit

	// Initialize WebSocket Hub
	internalws.InitializeGlobalHub()

	// Initialize the outbound event dispatcher (WebSocket hub + optional
	// Redis stream). Notifications are best effort and never block the
	// operations that emit them.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb = notify.MustRedis(cfg.RedisURL)
	}
	dispatcher := notify.NewDispatcher(internalws.GlobalHub, rdb)
	dispatcher.Start()

	// Initialize the coordination engine on the Postgres-backed store
	engine := escrow.NewEngine(database.Store{}, dispatcher)
	handlers.SetEngine(engine)
	handlers.SetNotifier(dispatcher)
	handlers.SetPaymentWebhookSecret(cfg.PaymentWebhookSecret)

	app := fiber.New()

	// --- WebSocket Routes ---
	// Needs to be defined before the /api group so it doesn't inherit middleware
	wsGroup := app.Group("/ws")
	wsGroup.Use("/", func(c *fiber.Ctx) error {
		// Middleware to check for upgrade request
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	// Trade event feed for on-call middlemen
	wsGroup.Get("/events", websocket.New(handlers.EventsWSEndpoint))

	// --- API Routes ---
	api := app.Group("/api")

	// Health check (Public)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("TradeVault API is healthy!")
	})

	// Payment gateway callback (authenticated by shared secret header,
	// not by user JWT)
	api.Post("/payments/webhook", handlers.PaymentWebhook)

	// Auth routes (Public)
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", handlers.Signup)
	authGroup.Post("/login", handlers.Login)

	// --- Protected Routes ---
	api.Use(middleware.Protected())

	api.Get("/me", func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uuid.UUID)
		if !ok {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to get user info from context"})
		}

		user, err := database.GetUserByID(c.Context(), userID)
		if err != nil {
			log.Printf("Error fetching user %s: %v", userID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve user"})
		}
		if user == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		user.Password = ""

		return c.JSON(user)
	})

	// Claim and join attempts are throttled per identity; exclusivity
	// itself comes from the store's conditional update, not the limiter.
	joinLimiter := ratelimit.NewRateLimiter(30, time.Minute)
	claimLimiter := ratelimit.NewRateLimiter(30, time.Minute)

	// Trade Routes (Protected)
	tradesGroup := api.Group("/trades")
	tradesGroup.Post("/", handlers.CreateTrade)
	tradesGroup.Get("/:id", handlers.GetTrade)
	tradesGroup.Post("/:id/join", ratelimit.Middleware(joinLimiter), handlers.JoinTrade)
	tradesGroup.Post("/:id/cancel", handlers.CancelTrade)
	tradesGroup.Post("/:id/messages", handlers.PostMessage)
	tradesGroup.Get("/:id/messages", handlers.GetMessages)

	// Middleman enrollment and credential check (user JWT required)
	middlemanGroup := api.Group("/middleman")
	middlemanGroup.Post("/register", handlers.RegisterMiddleman)
	middlemanGroup.Post("/login", handlers.MiddlemanLogin)

	// Middleman-only routes (middleman JWT required)
	middlemanGroup.Use(middleware.MiddlemanOnly())
	middlemanGroup.Get("/queue", handlers.GetQueue)
	middlemanGroup.Get("/trades", handlers.GetSupervisedTrades)
	middlemanGroup.Post("/trades/:id/claim", ratelimit.Middleware(claimLimiter), handlers.ClaimTrade)
	middlemanGroup.Post("/trades/:id/resolve", handlers.ResolveTrade)
	middlemanGroup.Patch("/availability", handlers.SetAvailability)

	log.Println("Starting server on :" + cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
