package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/speters/mdcd/link"
	"github.com/speters/mdcd/mdc"
	"golang.org/x/time/rate"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	errThrottled     = errors.New("command rate exceeded")
	errSessionBroken = errors.New("display link out of sync, restart mdcd")
)

func serveCommand() *cobra.Command {
	configFile := ""
	cfg := defaultServeConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an HTTP API for the displays on one link",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			flagged := cfg
			cfg = defaultServeConfig()
			if configFile != "" {
				if err := loadServeConfig(configFile, &cfg); err != nil {
					return err
				}
			}
			overrideFromFlags(cmd, &cfg, flagged)
			if err := cfg.validate(); err != nil {
				return err
			}
			ctx, stop := listenStop()
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", configFile, "TOML configuration `file`")
	cmd.Flags().StringVarP(&cfg.Listen, "listen", "s", cfg.Listen, "start http server at [bindtohost][:]port")
	cmd.Flags().Float64Var(&cfg.Rate, "rate", cfg.Rate, "commands per second sent to the display bus")
	cmd.Flags().IntVar(&cfg.Burst, "burst", cfg.Burst, "commands allowed in a burst")
	return cmd
}

// overrideFromFlags applies explicitly set flags on top of the file configuration
func overrideFromFlags(cmd *cobra.Command, cfg *serveConfig, flagged serveConfig) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	if changed("listen") {
		cfg.Listen = flagged.Listen
	}
	if changed("rate") {
		cfg.Rate = flagged.Rate
	}
	if changed("burst") {
		cfg.Burst = flagged.Burst
	}
	if changed("connect") || cfg.Link == "" {
		cfg.Link = connTo
	}
	if changed("read-timeout") {
		cfg.ReadTimeout = readTimeout
	}
	if changed("dial-timeout") {
		cfg.DialTimeout = dialTimeout
	}
	if changed("baud") {
		cfg.Baud = baud
	}

	// accept :[portnum] as well as [portnum]
	if i, err := strconv.Atoi(cfg.Listen); err == nil {
		cfg.Listen = fmt.Sprintf(":%d", i)
	}
}

func serve(ctx context.Context, cfg serveConfig) error {
	conn, err := link.Dial(ctx, cfg.Link,
		link.WithDialTimeout(cfg.DialTimeout),
		link.WithReadTimeout(cfg.ReadTimeout),
		link.WithBaud(cfg.Baud))
	if err != nil {
		return fmt.Errorf("connecting to %v: %w", cfg.Link, err)
	}
	defer conn.Close()
	log.Infof("Connected to %v, %d displays configured", conn.Addr(), len(cfg.Displays))

	reg := newRegistry()
	b := newBridge(mdc.NewSession(conn), cfg, reg)

	h := &http.Server{Addr: cfg.Listen, Handler: b.router(reg)}
	errCh := make(chan error, 1)
	go func() { errCh <- h.ListenAndServe() }()
	log.Infof("Serving HTTP on %v", cfg.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return h.Shutdown(shutdownCtx)
}

// bridge exposes the displays reachable over one session. The session is not
// safe for concurrent use, so every command holds mu.
type bridge struct {
	mu       sync.Mutex
	session  *mdc.Session
	displays map[string]mdc.DisplayID
	limiter  *rate.Limiter
	metrics  *bridgeMetrics
	broken   error // first error that left the stream out of sync
}

func newBridge(s *mdc.Session, cfg serveConfig, reg *prometheus.Registry) *bridge {
	b := &bridge{
		session:  s,
		displays: make(map[string]mdc.DisplayID, len(cfg.Displays)),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		metrics:  newBridgeMetrics(reg),
	}
	for _, d := range cfg.Displays {
		b.displays[d.Name] = mdc.DisplayID(d.ID)
	}
	return b
}

func (b *bridge) router(reg *prometheus.Registry) *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/version", versionInfo).Methods("GET")
	router.HandleFunc("/displays", b.listDisplays).Methods("GET")
	router.HandleFunc("/displays/{name}/{kind:power|panel}", b.getStatus).Methods("GET")
	router.HandleFunc("/displays/{name}/{kind:power|panel}", b.setState).Methods("PUT")
	router.HandleFunc("/broadcast/{kind:power|panel}", b.setBroadcast).Methods("PUT")
	router.Handle("/metrics", metricsHandler(reg)).Methods("GET")
	return router
}

// do runs fn with exclusive use of the session, paced by the rate limiter
func (b *bridge) do(ctx context.Context, op string, fn func(*mdc.Session) error) error {
	if err := b.limiter.Wait(ctx); err != nil {
		b.metrics.Throttle.Inc()
		return fmt.Errorf("%w: %v", errThrottled, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken != nil {
		b.metrics.Commands.WithLabelValues(op, "broken").Inc()
		return fmt.Errorf("%w: %v", errSessionBroken, b.broken)
	}

	start := time.Now()
	err := fn(b.session)
	b.metrics.Latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	b.metrics.Commands.WithLabelValues(op, resultLabel(err)).Inc()

	if breaksSession(err) {
		// a late reply may still be in flight and would answer the next command
		b.broken = err
		log.WithError(err).Errorf("Display link out of sync after %v, refusing further commands", op)
	}
	return err
}

// breaksSession reports whether err may leave unread reply bytes on the stream
func breaksSession(err error) bool {
	var nack *mdc.NackError
	var unexpected *mdc.UnexpectedResponseError
	switch {
	case err == nil,
		errors.As(err, &nack),
		errors.As(err, &unexpected),
		errors.Is(err, mdc.ErrInvalidStatus),
		errors.Is(err, mdc.ErrShortReply):
		return false
	}
	return true
}

// lookup resolves a configured display name or a numeric display id
func (b *bridge) lookup(name string) (mdc.DisplayID, string, bool) {
	if id, ok := b.displays[name]; ok {
		return id, name, true
	}
	if i, err := strconv.Atoi(name); err == nil {
		if id, err := checkDisplayID(i); err == nil {
			return id, name, true
		}
	}
	return 0, "", false
}

type displayEntry struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

type stateBody struct {
	On bool `json:"on"`
}

type statusResponse struct {
	Display string `json:"display"`
	ID      int    `json:"id"`
	Kind    string `json:"kind"`
	On      bool   `json:"on"`
	State   string `json:"state"`
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	v := struct {
		Version   string `json:"version"`
		BuildDate string `json:"build_date"`
	}{Version: buildVersion, BuildDate: buildDate}
	writeJSON(w, http.StatusOK, v)
}

func (b *bridge) listDisplays(w http.ResponseWriter, r *http.Request) {
	list := make([]displayEntry, 0, len(b.displays))
	for name, id := range b.displays {
		list = append(list, displayEntry{Name: name, ID: int(id)})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, list)
}

func (b *bridge) getStatus(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	id, name, ok := b.lookup(params["name"])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such display %v", params["name"]))
		return
	}

	kind := params["kind"]
	var on bool
	var state fmt.Stringer
	err := b.do(r.Context(), "get_"+kind, func(s *mdc.Session) error {
		d := s.Display(id)
		if kind == "power" {
			st, err := d.PowerStatus()
			on, state = st.IsOn(), st
			return err
		}
		st, err := d.PanelStatus()
		on, state = st.IsOn(), st
		return err
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Display: name, ID: int(id), Kind: kind, On: on, State: state.String()})
}

func (b *bridge) setState(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	id, _, ok := b.lookup(params["name"])
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("no such display %v", params["name"]))
		return
	}
	b.apply(w, r, "set_"+params["kind"], func(s *mdc.Session) mdc.DisplayControl {
		return s.Display(id)
	})
}

func (b *bridge) setBroadcast(w http.ResponseWriter, r *http.Request) {
	b.apply(w, r, "broadcast_"+mux.Vars(r)["kind"], func(s *mdc.Session) mdc.DisplayControl {
		return s.AllDisplays()
	})
}

func (b *bridge) apply(w http.ResponseWriter, r *http.Request, op string, target func(*mdc.Session) mdc.DisplayControl) {
	var body stateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	kind := mux.Vars(r)["kind"]
	err := b.do(r.Context(), op, func(s *mdc.Session) error {
		c := target(s)
		switch {
		case kind == "power" && body.On:
			return c.SetPowerOn()
		case kind == "power":
			return c.SetPowerOff()
		case body.On:
			return c.SetPanelOn()
		default:
			return c.SetPanelOff()
		}
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, "OK")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(code)
	e := json.NewEncoder(w)
	e.SetIndent("", "    ")
	e.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, struct {
		Error string `json:"error"`
	}{Error: err.Error()})
}

// statusFor maps MDC errors onto HTTP status codes
func statusFor(err error) int {
	var nack *mdc.NackError
	var unexpected *mdc.UnexpectedResponseError
	switch {
	case errors.Is(err, errThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, errSessionBroken):
		return http.StatusServiceUnavailable
	case errors.As(err, &nack):
		return http.StatusConflict
	case errors.As(err, &unexpected),
		mdc.IsFramingError(err),
		errors.Is(err, mdc.ErrInvalidStatus),
		errors.Is(err, mdc.ErrShortReply):
		return http.StatusBadGateway
	}
	return http.StatusServiceUnavailable
}

func resultLabel(err error) string {
	var nack *mdc.NackError
	var unexpected *mdc.UnexpectedResponseError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &nack):
		return "nack"
	case errors.As(err, &unexpected):
		return "unexpected"
	case mdc.IsFramingError(err):
		return "framing"
	case errors.Is(err, mdc.ErrInvalidStatus), errors.Is(err, mdc.ErrShortReply):
		return "status"
	case errors.Is(err, mdc.ErrStreamEnded):
		return "ended"
	}
	return "io"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next.ServeHTTP(rec, r)

		entry := log.WithFields(log.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"took":       time.Since(start),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request served")
	})
}
