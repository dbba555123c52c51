package main

import (
	"log"
	"net/http"

	"pathpal-api/internal/config"
	"pathpal-api/internal/database"
	"pathpal-api/internal/handlers"
	"pathpal-api/internal/otp"
	"pathpal-api/internal/services"
	"pathpal-api/internal/session"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

func main() {
	cfg := config.LoadConfig()

	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	sessionStore := session.NewStore(cfg.SessionTTL)
	ledger := otp.NewLedger(db.DB, cfg.OTPTTL)
	emailService := services.NewEmailService(cfg)

	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Auth routes
	authRouter := router.PathPrefix("/api/auth").Subrouter()
	{
		authRouter.HandleFunc("/register", handlers.Register(db.DB)).Methods("POST")
		authRouter.HandleFunc("/login", handlers.Login(db.DB, sessionStore)).Methods("POST")
		authRouter.HandleFunc("/forgot-password", handlers.ForgotPassword(db.DB, ledger, emailService)).Methods("POST")
		authRouter.HandleFunc("/verify-otp", handlers.VerifyOTP(db.DB, ledger)).Methods("POST")
		authRouter.HandleFunc("/reset-password", handlers.ResetPassword(db.DB, ledger)).Methods("POST")
	}

	logoutRouter := router.PathPrefix("/api/auth/logout").Subrouter()
	logoutRouter.Use(handlers.RequireAuth(sessionStore))
	logoutRouter.HandleFunc("", handlers.Logout(sessionStore)).Methods("POST")

	// Authenticated user routes
	userRouter := router.PathPrefix("/api/user").Subrouter()
	userRouter.Use(handlers.RequireAuth(sessionStore))
	{
		userRouter.HandleFunc("/profile", handlers.GetProfile(db.DB)).Methods("GET")
		userRouter.HandleFunc("/profile", handlers.UpdateProfile(db.DB, sessionStore)).Methods("PUT")
		userRouter.HandleFunc("/verify-password", handlers.VerifyPassword(db.DB)).Methods("POST")
		userRouter.HandleFunc("/change-password", handlers.ChangePassword(db.DB)).Methods("POST")
		userRouter.HandleFunc("/devices", handlers.GetLinkedDevices(db.DB)).Methods("GET")
		userRouter.HandleFunc("/device/status", handlers.GetDeviceStatus(db.DB)).Methods("GET")
		userRouter.HandleFunc("/notifications", handlers.GetUserNotifications(db.DB)).Methods("GET")
	}

	// Device linking routes
	deviceRouter := router.PathPrefix("/api/devices").Subrouter()
	deviceRouter.Use(handlers.RequireAuth(sessionStore))
	{
		deviceRouter.HandleFunc("/check-link/{serialNumber}", handlers.CheckDeviceLink(db.DB)).Methods("GET")
		deviceRouter.HandleFunc("", handlers.GetLinkedDevices(db.DB)).Methods("GET")
		deviceRouter.HandleFunc("", handlers.LinkDevice(db.DB)).Methods("POST")
		deviceRouter.HandleFunc("/{deviceId:[0-9]+}", handlers.UnlinkDevice(db.DB)).Methods("DELETE")
	}

	// Admin routes
	adminRouter := router.PathPrefix("/api/admin").Subrouter()
	adminRouter.Use(handlers.RequireAdmin(sessionStore))
	{
		adminRouter.HandleFunc("/users", handlers.GetUsers(db.DB)).Methods("GET")
		adminRouter.HandleFunc("/devices", handlers.GetAdminDevices(db.DB)).Methods("GET")
		adminRouter.HandleFunc("/devices/count", handlers.GetDeviceCount(db.DB)).Methods("GET")
		adminRouter.HandleFunc("/devices/{deviceId:[0-9]+}", handlers.UpdateDeviceStatus(db.DB)).Methods("PUT")
		adminRouter.HandleFunc("/add-device", handlers.AddDevice(db.DB)).Methods("POST")
		adminRouter.HandleFunc("/notifications", handlers.GetAdminNotifications(db.DB)).Methods("GET")
	}

	corsHandler := newCORSHandler()

	log.Printf("Server running on port %s", cfg.AppPort)
	log.Fatal(http.ListenAndServe(":"+cfg.AppPort, corsHandler.Handler(router)))
}

// newCORSHandler allows any origin but must echo it back rather than send a
// literal wildcard: browsers refuse credentialed (cookie) requests when
// Access-Control-Allow-Origin is "*".
func newCORSHandler() *cors.Cors {
	return cors.New(cors.Options{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})
}
