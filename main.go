package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	"pantryPalAPI/handlers"
	"pantryPalAPI/internal/notification"
	"pantryPalAPI/middleware"
	"pantryPalAPI/services"

	_ "net/http/pprof"
)

const defaultEntitlementID = "premium"

var (
	firestoreClient *firestore.Client
	userService     *services.UserService
	familyService   *services.FamilyService
	fridgeService   *services.FridgeService
	basketService   *services.BasketService
	recipeService   *services.RecipeService
	mealPlanService *services.MealPlanService
	premiumService  *services.PremiumService
	notifier        *services.NotificationDispatcher
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	revenueCatKey := os.Getenv("REVENUECAT_SECRET_KEY")
	if revenueCatKey == "" {
		log.Fatal("REVENUECAT_SECRET_KEY environment variable is not set")
	}

	entitlementID := os.Getenv("REVENUECAT_ENTITLEMENT_ID")
	if entitlementID == "" {
		entitlementID = defaultEntitlementID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app, err := newFirebaseApp(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Firebase:", err)
	}

	firestoreClient, err = app.Firestore(ctx)
	if err != nil {
		log.Fatal("Failed to create Firestore client:", err)
	}
	log.Println("Successfully connected to Firestore")

	store := services.NewFirestoreStore(firestoreClient)

	userService = services.NewUserService(firestoreClient)
	familyService = services.NewFamilyService(firestoreClient, store)
	fridgeService = services.NewFridgeService(firestoreClient, store)
	basketService = services.NewBasketService(firestoreClient, store)
	recipeService = services.NewRecipeService(firestoreClient, store)
	mealPlanService = services.NewMealPlanService(firestoreClient, store, recipeService)

	revenueCat := services.NewRevenueCatService(revenueCatKey)
	premiumService = services.NewPremiumService(store, revenueCat, entitlementID)

	notifier = services.NewNotificationDispatcher(store)
	fcmService, err := notification.NewFCMService(app)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notifier.SetPushProvider(fcmService)
		basketService.SetNotifier(notifier)
		premiumService.SetNotifier(notifier)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
}

// newFirebaseApp prefers Base64 credentials from the environment and falls
// back to a local service account key file.
func newFirebaseApp(ctx context.Context) (*firebase.App, error) {
	var opt option.ClientOption

	if encodedCreds := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, err
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Println("Firebase: Initializing from FIREBASE_SERVICE_ACCOUNT_JSON environment variable.")
	} else {
		opt = option.WithCredentialsFile("./serviceAccountKey.json")
		log.Println("Firebase: Initializing from local file ./serviceAccountKey.json.")
	}

	return firebase.NewApp(ctx, nil, opt)
}

func main() {
	defer func() {
		log.Println("Closing Firestore client...")
		firestoreClient.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	familyHandler := handlers.NewFamilyHandler(familyService)
	fridgeHandler := handlers.NewFridgeHandler(fridgeService)
	basketHandler := handlers.NewBasketHandler(basketService)
	recipeHandler := handlers.NewRecipeHandler(recipeService)
	mealPlanHandler := handlers.NewMealPlanHandler(mealPlanService)
	premiumHandler := handlers.NewPremiumHandler(premiumService)
	revenueCatHandler := handlers.NewRevenueCatHandler(premiumService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go middleware.CleanupVisitors(cleanupCtx)

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		_, err := firestoreClient.Collection("users").Limit(1).Documents(ctx).GetAll()
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "firestore connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "pantryPal-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// Billing webhook does its own method validation so non-POST gets the
	// 405 + Allow header the provider contract expects.
	r.HandleFunc("/webhooks/revenuecat", revenueCatHandler.HandleWebhook)

	api := r.PathPrefix("/api/v1").Subrouter()

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/register-device", userHandler.RegisterDevice).Methods("POST")

	protected.HandleFunc("/family", familyHandler.GetFamily).Methods("GET")
	protected.HandleFunc("/family", familyHandler.CreateFamily).Methods("POST")
	protected.HandleFunc("/family/join", familyHandler.JoinFamily).Methods("POST")
	protected.HandleFunc("/family/leave", familyHandler.LeaveFamily).Methods("POST")

	protected.HandleFunc("/fridge", fridgeHandler.ListItems).Methods("GET")
	protected.HandleFunc("/fridge", fridgeHandler.AddItem).Methods("POST")
	protected.HandleFunc("/fridge/{itemID}", fridgeHandler.UpdateQuantity).Methods("PUT")
	protected.HandleFunc("/fridge/{itemID}", fridgeHandler.RemoveItem).Methods("DELETE")

	protected.HandleFunc("/basket", basketHandler.ListItems).Methods("GET")
	protected.HandleFunc("/basket", basketHandler.AddItem).Methods("POST")
	protected.HandleFunc("/basket/{itemID}/tick", basketHandler.TickItem).Methods("POST")
	protected.HandleFunc("/basket/{itemID}", basketHandler.RemoveItem).Methods("DELETE")
	protected.HandleFunc("/basket/clear-ticked", basketHandler.ClearTicked).Methods("POST")

	protected.HandleFunc("/recipes", recipeHandler.ListRecipes).Methods("GET")
	protected.HandleFunc("/recipes", recipeHandler.CreateRecipe).Methods("POST")
	protected.HandleFunc("/recipes/{recipeID}", recipeHandler.UpdateRecipe).Methods("PUT")
	protected.HandleFunc("/recipes/{recipeID}", recipeHandler.DeleteRecipe).Methods("DELETE")

	protected.HandleFunc("/meal-plan", mealPlanHandler.GetWeek).Methods("GET")
	protected.HandleFunc("/meal-plan/assign", mealPlanHandler.AssignMeal).Methods("POST")
	protected.HandleFunc("/meal-plan/clear", mealPlanHandler.ClearSlot).Methods("POST")

	protected.HandleFunc("/premium/sync", premiumHandler.SyncPremium).Methods("POST")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	cleanupCancel()
	notifier.Stop()

	log.Println("Server shutdown complete")
}
