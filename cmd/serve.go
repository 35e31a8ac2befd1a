package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/reliefscope/needscan/internal/apperr"
	"github.com/reliefscope/needscan/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the API routes around an initialized pipeline.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/analyze", func(w http.ResponseWriter, req *http.Request) {
		var body analyzeRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		result, err := env.Pipeline.Run(req.Context(), body.options())
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case apperr.IsKind(err, apperr.KindConfiguration),
				apperr.IsKind(err, apperr.KindData),
				apperr.IsKind(err, apperr.KindFormat):
				status = http.StatusBadRequest
			case apperr.IsKind(err, apperr.KindNotFound):
				status = http.StatusNotFound
			case apperr.IsKind(err, apperr.KindNetwork):
				status = http.StatusBadGateway
			}
			zap.L().Error("analysis request failed", zap.Error(err))
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, result)
	})

	return r
}

// analyzeRequest mirrors the analyze command flags for the HTTP API. Paths
// are resolved on the server host; this API is for trusted operators, not
// the open internet.
type analyzeRequest struct {
	Dataset      string             `json:"dataset"`
	Country      string             `json:"country"`
	BoundaryFile string             `json:"boundary_file"`
	AdminLevel   string             `json:"admin_level"`
	AdminColumn  string             `json:"admin_column"`
	Sheet        string             `json:"sheet"`
	Orientation  map[string]float64 `json:"orientation"`
	ForceRefresh bool               `json:"force_refresh"`
}

func (r analyzeRequest) options() pipeline.Options {
	return pipeline.Options{
		DatasetPath:  r.Dataset,
		SheetName:    r.Sheet,
		AdminColumn:  r.AdminColumn,
		CountryName:  r.Country,
		BoundaryPath: r.BoundaryFile,
		AdminLevel:   r.AdminLevel,
		Orientation:  r.Orientation,
		ForceRefresh: r.ForceRefresh,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
