package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todo-api/app/config"
	"todo-api/app/controllers"
	"todo-api/app/logging"
	"todo-api/app/routes"
	"todo-api/app/services"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

func main() {
	args := os.Args[1:]
	run := serve
	if len(args) > 0 && args[0] == "import" {
		run, args = runImport, args[1:]
	}
	if err := run(args); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func serve(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Back up the data file, then open the store and prepare its schema.
	st, err := prepareStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// Initialize the auth layer
	creds, err := services.NewStaticCredentials(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	authService := services.NewAuthService(creds, services.NewSession(), cfg.Auth.SecretKey)
	logger.Warn("token expiry is not enforced; tokens stay valid until restart",
		"access_token_expire_minutes", cfg.Auth.AccessTokenExpireMinutes)

	// Initialize the controller layer
	router := mux.NewRouter()
	router.Use(logging.Requests(logger))
	routes.RegisterRoutes(router, routes.Controllers{
		Auth: controllers.NewAuthController(authService, logger),
		Todo: controllers.NewTodoController(st.todos, logger),
		Log:  controllers.NewLogController(st.logs, logger),
	}, controllers.RequireAuth(authService), controllers.RateLimiter(rate.Limit(cfg.LogRateLimit), cfg.LogRateBurst))

	handler := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Accept", "Origin", "X-Requested-With"}),
	)(router)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})),
		handlers.PrintRecoveryStack(true),
	)(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server is running", "addr", cfg.Addr, "store", cfg.Store)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
