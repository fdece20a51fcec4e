package http

import (
	"net/http"
	"time"

	"github.com/rpampin-cresteo/chatbot-widget/internal/config"
	"github.com/rpampin-cresteo/chatbot-widget/internal/feedback"
	"github.com/rpampin-cresteo/chatbot-widget/internal/logging"
	"github.com/rpampin-cresteo/chatbot-widget/internal/memory"
	"github.com/rpampin-cresteo/chatbot-widget/internal/observability"
	"github.com/rpampin-cresteo/chatbot-widget/internal/ratelimit"
	"github.com/rpampin-cresteo/chatbot-widget/internal/session"
	"github.com/rpampin-cresteo/chatbot-widget/internal/upstream"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Config     *config.Config
	Sessions   *session.Manager
	Limiter    *ratelimit.Limiter
	Dispatcher *upstream.Dispatcher
	Gateway    memory.Gateway
	Feedback   *feedback.Store
	Metrics    *observability.Metrics
	Logger     logging.Logger
}

// NewRouter builds the full handler chain: recovery, request logging, origin
// policy, then per-route handlers with metrics labels.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewComponentLogger("HTTP")
	}

	deps.Sessions.OnMint(deps.Metrics.SessionsMinted.Inc)

	chatHandler := NewChatHandler(
		deps.Sessions,
		deps.Limiter,
		deps.Dispatcher,
		deps.Gateway,
		deps.Metrics,
		deps.Config.StreamTimeout,
		deps.Config.ServerMemoryEnabled,
		deps.Config.LogPII,
		logger,
	)
	sessionHandler := NewSessionHandler(deps.Sessions, logger)
	feedbackHandler := NewFeedbackHandler(deps.Sessions, deps.Feedback, deps.Config.LogPII, logger)

	route := func(name string, h http.Handler) http.Handler {
		return MetricsMiddleware(deps.Metrics, name)(h)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/chat", route("chat", http.HandlerFunc(chatHandler.HandleChat)))
	mux.Handle("/api/session", route("session", http.HandlerFunc(sessionHandler.HandleSession)))
	mux.Handle("/api/feedback", route("feedback", http.HandlerFunc(feedbackHandler.HandleFeedback)))
	mux.Handle("/healthz", route("healthz", http.HandlerFunc(handleHealth)))
	mux.Handle("/metrics", deps.Metrics.Handler())

	policy := NewOriginPolicy(deps.Config.AllowedOrigins, deps.Config.WidgetBaseURL)

	var handler http.Handler = mux
	handler = CORSMiddleware(policy)(handler)
	handler = LoggingMiddleware(logger)(handler)
	handler = RecoveryMiddleware(logger)(handler)
	return handler
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","time":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
}
