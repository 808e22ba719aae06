package webui

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/config"
	"github.com/L1nMay/porty/internal/envdetect"
	"github.com/L1nMay/porty/internal/logger"
	"github.com/L1nMay/porty/internal/ports"
	"github.com/L1nMay/porty/internal/scan"
)

type Server struct {
	runner  *scan.Runner
	cfg     *config.Config
	catalog catalog.Source

	// LocalNetworks, when non-nil, is used instead of the host interfaces to
	// decide which non-private targets are local.
	LocalNetworks []*net.IPNet
}

// ScanRequest omits start/end to scan the catalog; start alone scans one port.
type ScanRequest struct {
	Target          string `json:"target"`
	Start           *int   `json:"start,omitempty"`
	End             *int   `json:"end,omitempty"`
	Concurrency     int    `json:"concurrency,omitempty"`
	GroupByProtocol *bool  `json:"group_by_protocol,omitempty"`
	ICMP            *bool  `json:"icmp,omitempty"`
}

func NewServer(cfg *config.Config, src catalog.Source, runner *scan.Runner) *Server {
	return &Server{
		cfg:     cfg,
		catalog: src,
		runner:  runner,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"ok":      true,
			"ts":      time.Now().UTC(),
			"running": s.runner.IsRunning(),
		})
	})

	mux.HandleFunc("/api/catalog", func(w http.ResponseWriter, r *http.Request) {
		specs, err := s.catalog.Load(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, 200, catalog.Document{Ports: specs})
	})

	// ---------- Network info ----------
	mux.HandleFunc("/api/networks", func(w http.ResponseWriter, r *http.Request) {
		nets, err := envdetect.DetectLocalNetworks(false)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, 200, nets)
	})

	// ---------- Scan (SYNC, report in response) ----------
	mux.HandleFunc("/api/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", 405)
			return
		}

		var req ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}

		plan, err := s.planFor(req)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}

		rep, err := s.runner.Run(r.Context(), plan)
		switch {
		case err == nil:
			writeJSON(w, 200, rep)
		case errors.Is(err, scan.ErrScanRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, scan.ErrInvalidTarget):
			http.Error(w, err.Error(), 403)
		case errors.Is(err, ports.ErrInvalidArgument), errors.Is(err, ports.ErrInvalidRange):
			http.Error(w, err.Error(), 400)
		default:
			logger.Errorf("webui scan %s: %v", plan.Target, err)
			http.Error(w, err.Error(), 500)
		}
	})

	// ---------- Scan progress (SSE) ----------
	mux.HandleFunc("/api/scan/stream", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "stream unsupported", 500)
			return
		}

		ch := s.runner.HubSubscribe()
		defer s.runner.HubUnsubscribe(ch)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(200)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case p := <-ch:
				b, _ := json.Marshal(p)
				_, _ = w.Write([]byte("data: "))
				_, _ = w.Write(b)
				_, _ = w.Write([]byte("\n\n"))
				flusher.Flush()
			}
		}
	})

	// ---------- Cancel scan ----------
	mux.HandleFunc("/api/scan/cancel", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", 405)
			return
		}
		ok := s.runner.CancelRunning()
		writeJSON(w, 200, map[string]any{"cancelled": ok})
	})

	return withCORS(withLogging(mux))
}

func (s *Server) planFor(req ScanRequest) (*scan.Plan, error) {
	args := []string{req.Target}
	if req.Target == "" {
		args[0] = s.cfg.Target
	}
	if req.Start != nil {
		args = append(args, strconv.Itoa(*req.Start))
		if req.End != nil {
			args = append(args, strconv.Itoa(*req.End))
		}
	} else if req.End != nil {
		return nil, errors.New("end given without start")
	}

	parsed, err := ports.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	plan := scan.NewPlan(s.cfg, parsed, s.catalog, true)
	plan.AllowPublic = s.cfg.WebUI.AllowPublic
	plan.LocalNetworks = s.LocalNetworks
	if req.Concurrency > 0 {
		plan.Concurrency = req.Concurrency
	}
	if req.GroupByProtocol != nil {
		plan.GroupByProtocol = *req.GroupByProtocol
	}
	if req.ICMP != nil {
		plan.ICMP = *req.ICMP
	}
	return plan, nil
}

// ---------- Middleware ----------
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Infof("webui %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
