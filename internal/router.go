package router

import (
	"net/http"

	"golang.org/x/time/rate"

	"PMRender/internal/controllers"
	"PMRender/internal/services"
	"PMRender/pkg/config"
)

// StartRoutes wires the service graph and registers every HTTP route.
func StartRoutes(cfg *config.Config) (*http.ServeMux, error) {
	renderService, err := services.BuildRenderService(cfg)
	if err != nil {
		return nil, err
	}

	renderController, err := controllers.StartRenderController(renderService, cfg.AuthToken)
	if err != nil {
		return nil, err
	}

	jobController, err := controllers.StartJobController(renderService, cfg.AuthToken)
	if err != nil {
		return nil, err
	}

	healthController, err := controllers.StartHealthController(renderService)
	if err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	mux := http.NewServeMux()
	mux.Handle("POST /render", rateLimit(limiter, http.HandlerFunc(renderController.HandleRender)))
	mux.Handle("POST /job", rateLimit(limiter, http.HandlerFunc(jobController.HandleJob)))
	mux.HandleFunc("GET /healthz", healthController.HandleHealth)

	return mux, nil
}

// rateLimit sheds load before any multipart parsing or slot acquisition.
func rateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
