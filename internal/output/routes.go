package output

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"costsim/internal/api/middleware"
	"costsim/internal/simulator"
	"costsim/internal/websocket"
)

// Dependencies bundles everything SetupRoutes needs to wire handlers,
// mirroring the teacher's api.Dependencies but scoped to this
// module's single Simulator and Hub.
type Dependencies struct {
	Simulator *simulator.Simulator
	Hub       *websocket.Hub
}

// SetupRoutes builds the full route table: the control-surface API
// under /api/v1, the WebSocket push endpoint, Prometheus /metrics,
// and pprof, in the same layout as the teacher's api.SetupRoutes.
func SetupRoutes(deps Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	handler := NewHandler(deps.Simulator)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/parameters", handler.GetParameters).Methods("GET")
	api.HandleFunc("/parameters", handler.PatchParameters).Methods("PATCH")
	api.HandleFunc("/result", handler.GetResult).Methods("GET")
	api.HandleFunc("/performance", handler.GetPerformance).Methods("GET")

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.Handle("/heap", pprof.Handler("heap"))
	debug.Handle("/goroutine", pprof.Handler("goroutine"))
	debug.Handle("/block", pprof.Handler("block"))
	debug.Handle("/threadcreate", pprof.Handler("threadcreate"))
	debug.Handle("/mutex", pprof.Handler("mutex"))
	debug.Handle("/allocs", pprof.Handler("allocs"))

	return router
}
