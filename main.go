package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"gigchat/handlers/api/chats"
	"gigchat/handlers/api/notifications"
	"gigchat/handlers/auth"
	authMiddleware "gigchat/middleware"
	"gigchat/messaging"
	"gigchat/stores"
	"gigchat/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(service *messaging.Service, store stores.Store, gateway *ws.Gateway) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", chats.HandleCreateChat(service))
			r.Get("/", chats.HandleListChats(service))
			r.Route("/{chatID}", func(r chi.Router) {
				r.Get("/", chats.HandleGetChat(service))
				r.Get("/messages", chats.HandleListMessages(service))
				r.Post("/messages", chats.HandleSendMessage(service))
				r.Put("/messages/{messageID}", chats.HandleUpdateMessage(service))
				r.Delete("/messages/{messageID}", chats.HandleDeleteMessage(service))
				r.Post("/read", chats.HandleMarkRead(service))
				r.Get("/unread-count", chats.HandleUnreadCount(service))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifications.HandleList(store))
			r.Post("/", notifications.HandleNotify(service))
			r.Post("/{notificationID}/read", notifications.HandleMarkRead(store))
			r.Post("/read-all", notifications.HandleMarkAllRead(store))
		})
	})

	r.Mount("/socket.io/", gateway.ServeHandler())

	return r
}

func waitForShutdown(gateway *ws.Gateway) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	gateway.Close()
	logrus.Info("Shutting down...")
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()

	registry := ws.NewRegistry()
	presence := ws.NewTracker()
	gateway := ws.NewGateway(store, registry, presence)
	service := messaging.NewService(store, gateway)
	gateway.Bind(service)

	r := setupRouter(service, store, gateway)

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	waitForShutdown(gateway)
}
