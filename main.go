package main

import (
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"mug-studio/core"
	"mug-studio/discovery"
	"mug-studio/generate"
	"mug-studio/handlers/api/exports"
	"mug-studio/handlers/api/sessions"
	"mug-studio/handlers/auth"
	"mug-studio/handlers/websocket"
	authMiddleware "mug-studio/middleware"
	"mug-studio/raster"
	"mug-studio/session"
	"mug-studio/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/hashicorp/mdns"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

func setupRouter(reg *session.Registry, store core.ExportStore, surface core.Surface, fonts *raster.FontBook) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/catalog", sessions.HandleCatalog(surface, fonts))
		r.Get("/viewers", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, websocket.GetActiveViewers())
		})

		r.Get("/sessions", sessions.HandleListSessions(reg))
		r.Post("/sessions", sessions.HandleCreateSession(reg))
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", sessions.HandleGetSession(reg))
			r.Delete("/", sessions.HandleDeleteSession(reg))

			r.Post("/layers/text", sessions.HandleAddText(reg))
			r.Post("/layers/image", sessions.HandleAddImage(reg))
			r.Route("/layers/{layerId}", func(r chi.Router) {
				r.Patch("/", sessions.HandlePatchLayer(reg))
				r.Delete("/", sessions.HandleDeleteLayer(reg))
				r.Post("/drag-end", sessions.HandleDragEnd(reg))
				r.Post("/transform-end", sessions.HandleTransformEnd(reg))
			})

			r.Put("/selection", sessions.HandlePutSelection(reg))
			r.Delete("/selection", sessions.HandleDeleteSelection(reg))
			r.Post("/pointer", sessions.HandlePointer(reg))

			r.Get("/preview.png", sessions.HandlePreview(reg))
			r.Get("/mug", sessions.HandleMug(reg))
			r.Get("/exports", exports.HandleList(store))

			// Token required when JWT_SECRET is set.
			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.OptionalAuthJWT)
				r.Post("/generate", sessions.HandleGenerate(reg))
				r.Post("/exports", exports.HandleCreate(reg, store))
			})
		})

		r.Route("/exports/{exportId}", func(r chi.Router) {
			r.Get("/", exports.HandleGet(store))
			r.Get("/preview.png", exports.HandleGetPreview(store))
			r.Get("/print.pdf", exports.HandleGetPrint(store))
			r.With(authMiddleware.OptionalAuthJWT).Delete("/", exports.HandleDelete(store))
		})
	})

	return r
}

func waitForShutdown(ioo *socketio.Server, reg *session.Registry, closers ...io.Closer) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	reg.CloseAll()
	ioo.Close(nil)
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close resource")
		}
	}
	os.Exit(0)
}

// mdnsCloser adapts the mDNS server to io.Closer.
type mdnsCloser struct{ *mdns.Server }

func (m mdnsCloser) Close() error { return m.Shutdown() }

// listStudios prints the studios found on the network, one per line, and
// returns the process exit code.
func listStudios(timeout time.Duration) int {
	studios, err := discovery.Browse(timeout)
	if err != nil {
		logrus.WithError(err).Error("Discovery failed")
		return 1
	}
	for _, s := range studios {
		fmt.Printf("%s\t%s\n", s.Addr, s.Instance)
	}
	logrus.WithField("studios", len(studios)).Info("Discovery finished")
	return 0
}

func listenPort(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(port)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3002", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	pixelRatio := flag.Float64("pixel-ratio", raster.DefaultPixelRatio, "Pixels per design unit in the rendered texture.")
	debounce := flag.Duration("debounce", raster.DefaultDebounce, "Quiet period before the design is re-rendered.")
	advertise := flag.Bool("mdns", false, "Advertise the studio on the local network.")
	discover := flag.Duration("discover", 0, "List the studios on the local network for this long, then exit.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if *discover > 0 {
		os.Exit(listStudios(*discover))
	}

	auth.InitAuth()
	store := stores.GetStore()

	fonts, err := raster.NewFontBook()
	if err != nil {
		logrus.Fatalf("Failed to load fonts: %v", err)
	}
	if dir := os.Getenv("FONT_DIR"); dir != "" {
		if _, err := fonts.LoadDir(dir); err != nil {
			logrus.WithError(err).WithField("dir", dir).Warn("Failed to load font directory")
		}
	}

	surface := core.DefaultSurface()
	reg := session.NewRegistry(session.Options{
		Surface:    surface,
		Fonts:      fonts,
		PixelRatio: *pixelRatio,
		Debounce:   *debounce,
		Generator:  generate.NewFromEnv(),
	})

	r := setupRouter(reg, store, surface, fonts)

	ioo := websocket.SetupSocketIO(reg)
	reg.OnEvent(websocket.Notify(ioo))
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}
	if *advertise {
		port, err := listenPort(*listenAddress)
		if err != nil {
			logrus.WithError(err).Warn("Cannot advertise: bad listen address")
		} else if server, err := discovery.Advertise("", port); err != nil {
			logrus.WithError(err).Warn("Failed to advertise studio")
		} else {
			closers = append(closers, mdnsCloser{server})
		}
	}

	logrus.WithFields(logrus.Fields{
		"addr":        *listenAddress,
		"pixel_ratio": *pixelRatio,
		"debounce":    debounce.String(),
	}).Info("starting server")
	go func() {
		srv := &http.Server{
			Addr:              *listenAddress,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo, reg, closers...)
}
