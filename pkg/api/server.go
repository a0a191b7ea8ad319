package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/vjranagit/gaitmetrics/pkg/dashboard"
	"github.com/vjranagit/gaitmetrics/pkg/series"
	"github.com/vjranagit/gaitmetrics/pkg/service"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

const (
	maxBodyBytes = 10 << 20

	// DateLayout formats record timestamps in listings
	DateLayout = "2006-01-02 15:04:05"
)

// Server implements the HTTP API server
type Server struct {
	svc      *service.Service
	gatherer prometheus.Gatherer
	defaults dashboard.Options
	validate *validator.Validate
	router   chi.Router
	addr     string
	timeout  time.Duration
	server   *http.Server
}

// NewServer creates a new API server. defaults supplies the window used when
// a request does not name one.
func NewServer(addr string, svc *service.Service, gatherer prometheus.Gatherer, defaults dashboard.Options, timeout time.Duration) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Server{
		svc:      svc,
		gatherer: gatherer,
		defaults: defaults,
		validate: validator.New(),
		addr:     addr,
		timeout:  timeout,
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", s.handleCatalog)
		r.Get("/subjects", s.handleSubjects)

		r.Route("/subjects/{subject}", func(r chi.Router) {
			r.Get("/records", s.handleListRecords)
			r.Post("/records", s.handleIngestJSON)
			r.Post("/records/csv", s.handleIngestCSV)
			r.Delete("/records/{id}", s.handleDeleteRecord)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/metrics/{metric}", s.handleMetric)
		})
	})

	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  s.timeout,
		WriteTimeout: s.timeout,
	}

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// viewQuery holds the chart parameters accepted by view endpoints
type viewQuery struct {
	Window int    `validate:"min=0,max=500"`
	Canvas string `validate:"oneof=sparkline detail"`
}

func (s *Server) viewOptions(r *http.Request) (dashboard.Options, error) {
	q := r.URL.Query()
	opts := s.defaults

	vq := viewQuery{Window: opts.Window, Canvas: "sparkline"}
	if opts.Canvas == types.DetailCanvas() {
		vq.Canvas = "detail"
	}

	if raw := q.Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, series.NewValidationError("window", "must be an integer")
		}
		vq.Window = n
	}
	if raw := q.Get("canvas"); raw != "" {
		vq.Canvas = raw
	}
	if raw := q.Get("area"); raw != "" {
		area, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, series.NewValidationError("area", "must be a boolean")
		}
		opts.WithArea = area
	}

	if err := s.validate.Struct(vq); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return opts, series.NewValidationError(verrs[0].Field(), "failed "+verrs[0].Tag()+" check")
		}
		return opts, series.NewValidationError("query", err.Error())
	}

	opts.Window = vq.Window
	opts.Canvas = types.SparklineCanvas()
	if vq.Canvas == "detail" {
		opts.Canvas = types.DetailCanvas()
	}
	return opts, nil
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"cache":  s.svc.CacheStats(),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := s.svc.Catalog()
	infos := make([]dashboard.MetricInfo, 0, len(catalog.Names()))
	for _, name := range catalog.Names() {
		info, _ := catalog.Lookup(name)
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.svc.Subjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

// recordView is a record as listed in a subject's history
type recordView struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Date        string         `json:"date"`
	SourceRef   string         `json:"sourceRef"`
	Metrics     map[string]any `json:"metrics"`
	FallWarning string         `json:"fallWarning,omitempty"`
}

func newRecordView(rec types.MetricRecord) recordView {
	return recordView{
		ID:          rec.ID,
		Timestamp:   rec.Timestamp,
		Date:        rec.Timestamp.Format(DateLayout),
		SourceRef:   rec.SourceRef,
		Metrics:     rec.Metrics,
		FallWarning: rec.FallWarning,
	}
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	subject := urlParam(r, "subject")

	records, err := s.svc.Records(r.Context(), subject)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views := make([]recordView, 0, len(records))
	for _, rec := range records {
		views = append(views, newRecordView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject": subject,
		"records": views,
	})
}

func (s *Server) handleIngestJSON(w http.ResponseWriter, r *http.Request) {
	subject := urlParam(r, "subject")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, series.NewValidationError("body", err.Error()))
		return
	}

	rec, err := s.svc.IngestJSON(r.Context(), subject, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecordView(rec))
}

// handleIngestCSV accepts an analysis CSV either as the raw body or as the
// "file" part of a multipart form.
func (s *Server) handleIngestCSV(w http.ResponseWriter, r *http.Request) {
	subject := urlParam(r, "subject")
	sourceRef := r.URL.Query().Get("source_ref")
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body io.Reader = r.Body
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, r, series.NewValidationError("file", err.Error()))
			return
		}
		defer file.Close()

		body = file
		if sourceRef == "" {
			sourceRef = header.Filename
		}
	}

	rec, err := s.svc.IngestCSV(r.Context(), subject, sourceRef, body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecordView(rec))
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	subject := urlParam(r, "subject")
	id := urlParam(r, "id")

	affected, err := s.svc.Delete(r.Context(), subject, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if affected == nil {
		affected = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":              id,
		"affectedMetrics": affected,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	subject := urlParam(r, "subject")

	opts, err := s.viewOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	views, err := s.svc.Dashboard(r.Context(), subject, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	names, err := s.svc.MetricNames(r.Context(), subject)
	if err != nil {
		writeError(w, r, err)
		return
	}
	uncatalogued := s.svc.Catalog().Unknown(names)
	if uncatalogued == nil {
		uncatalogued = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"subject":      subject,
		"metrics":      views,
		"uncatalogued": uncatalogued,
	})
}

func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request) {
	subject := urlParam(r, "subject")
	name := urlParam(r, "metric")

	opts, err := s.viewOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.svc.Metric(r.Context(), subject, name, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// urlParam returns a decoded path parameter. chi matches against RawPath when
// it is set, leaving parameters escaped; otherwise they are already decoded.
func urlParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return raw
	}
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case series.IsValidation(err):
		status = http.StatusBadRequest
	case series.IsNotFound(err), errors.Is(err, service.ErrUnknownMetric):
		status = http.StatusNotFound
	default:
		log.Error().
			Stack().
			Err(err).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
	}

	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
