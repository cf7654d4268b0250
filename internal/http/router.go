package http

import (
	"net/http"

	"companion-backend/internal/config"
	"companion-backend/internal/handlers"
	"companion-backend/internal/middleware"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Auth     *handlers.AuthHandler
	Profile  *handlers.ProfileHandler
	Activity *handlers.ActivityHandler
	Chatbot  *handlers.ChatbotHandler
	Health   *handlers.HealthHandler
}

func NewRouter(hs Handlers, cfg *config.Config, logger *zap.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	api := r.Methods(http.MethodPost).Subrouter()

	// Accounts
	api.HandleFunc("/login", hs.Auth.Login)
	api.HandleFunc("/nok_register", hs.Auth.RegisterCaregiver)
	api.HandleFunc("/user_register", hs.Auth.RegisterDependent)
	api.HandleFunc("/check_id_duplicate", hs.Auth.CheckIDDuplicate)

	// Profiles
	api.HandleFunc("/get_user_info", hs.Profile.GetDependentInfo)
	api.HandleFunc("/get_user_info_all", hs.Profile.GetDependentProfile)
	api.HandleFunc("/get_main_nok_info", hs.Profile.GetCaregiverProfile)
	api.HandleFunc("/modify_nok_info", hs.Profile.ModifyCaregiver)
	api.HandleFunc("/modify_user_info", hs.Profile.ModifyDependent)
	api.HandleFunc("/user_delete", hs.Profile.DeleteAccount)
	api.HandleFunc("/check_user_first", hs.Profile.CheckFirst)
	api.HandleFunc("/check_user_exercise_first", hs.Profile.CheckExerciseFirst)

	// Logs and exercise
	api.HandleFunc("/get_user_chat_log", hs.Activity.ChatLog)
	api.HandleFunc("/get_user_test_result", hs.Activity.MemoryResults)
	api.HandleFunc("/save_level_test", hs.Activity.SaveLevelTest)
	api.HandleFunc("/get_level_test", hs.Activity.GetLevelTest)
	api.HandleFunc("/save_exercise_log", hs.Activity.SaveExerciseLog)
	api.HandleFunc("/get_exercise_log", hs.Activity.ExerciseLogs)

	// Chatbot
	api.HandleFunc("/chatbot_chat", hs.Chatbot.Chat)
	api.HandleFunc("/chatbot_quiz", hs.Chatbot.Quiz)

	// Operations
	r.HandleFunc("/health", hs.Health.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	var handler http.Handler = r
	handler = middleware.GzipCompression(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = c.Handler(handler)
	handler = middleware.HTTPSRedirect(cfg.Server.ForceHTTPS)(handler)
	handler = middleware.NewRequestLogger(logger).Handler(handler)
	return handler
}
