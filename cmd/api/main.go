package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/suraj0258/ecommerce-backend/handlers"
	"github.com/suraj0258/ecommerce-backend/internal/auth"
	"github.com/suraj0258/ecommerce-backend/internal/categories"
	"github.com/suraj0258/ecommerce-backend/internal/consul"
	"github.com/suraj0258/ecommerce-backend/internal/orders"
	"github.com/suraj0258/ecommerce-backend/internal/products"
	"github.com/suraj0258/ecommerce-backend/internal/stores/kafka"
	"github.com/suraj0258/ecommerce-backend/internal/stores/postgres"
	"github.com/suraj0258/ecommerce-backend/internal/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	if err := startApp(); err != nil {
		log.Fatalf("init: %v", err)
	}
}

func startApp() error {
	slog.Info("migrating tables")
	db, err := postgres.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations(db); err != nil {
		return err
	}

	keys, err := loadAuthKeys()
	if err != nil {
		return err
	}

	u, err := users.NewConf(db)
	if err != nil {
		return err
	}
	p, err := products.NewConf(db)
	if err != nil {
		return err
	}
	cat, err := categories.NewConf(db)
	if err != nil {
		return err
	}

	orderStore, err := orders.NewPostgresStore(db)
	if err != nil {
		return err
	}
	catalog, err := orders.NewPostgresCatalog(db)
	if err != nil {
		return err
	}
	o, err := orders.NewConf(orderStore, catalog)
	if err != nil {
		return err
	}

	// Kafka is optional; checkout works without event production.
	var k *kafka.Conf
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		k, err = kafka.NewConf(strings.Split(brokers, ","))
		if err != nil {
			return err
		}
		defer k.Close()
	}

	h := handlers.NewHandler(u, p, cat, o, k, keys)
	api := handlers.API(h)

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	if err := registerWithConsul(port); err != nil {
		slog.Error("consul registration failed", slog.String("Error", err.Error()))
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      api,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("port", port))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-shutdown:
		slog.Info("shutting down", slog.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			server.Close()
			return err
		}
	}
	return nil
}

func loadAuthKeys() (*auth.Keys, error) {
	privatePEM, err := os.ReadFile(os.Getenv("JWT_PRIVATE_KEY_PATH"))
	if err != nil {
		return nil, err
	}
	publicPEM, err := os.ReadFile(os.Getenv("JWT_PUBLIC_KEY_PATH"))
	if err != nil {
		return nil, err
	}
	return auth.NewKeysFromPEM(privatePEM, publicPEM)
}

// registerWithConsul is a no-op when CONSUL_HTTP_ADDR is not set.
func registerWithConsul(port string) error {
	address := os.Getenv("CONSUL_HTTP_ADDR")
	if address == "" {
		return nil
	}

	serviceName := os.Getenv("SERVICE_NAME")
	if serviceName == "" {
		serviceName = "ecommerce-backend"
	}
	serviceHost := os.Getenv("SERVICE_HOST")
	if serviceHost == "" {
		serviceHost = "localhost"
	}

	client, err := consul.NewClient(address)
	if err != nil {
		return err
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return err
	}
	return consul.RegisterService(client, serviceName, serviceName+"-"+uuid.NewString(), serviceHost, portNum)
}
