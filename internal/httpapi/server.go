// Package httpapi exposes the ingestion endpoint and a small operational API
// over echo.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"horse.fit/archivist/internal/db"
	"horse.fit/archivist/internal/globaltime"
	"horse.fit/archivist/internal/pipeline"
	eventschema "horse.fit/archivist/schema"
)

// maxEventBodyBytes bounds the inbound notification payload, not the files
// themselves — those are fetched from the object store.
const maxEventBodyBytes = 1 << 20

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	ingest  *pipeline.Service
	records *db.RecordStore
	logger  zerolog.Logger
	opts    Options
}

// recordOutcome is the per-record slice of the batch response.
type recordOutcome struct {
	Key          string `json:"key"`
	Status       string `json:"status"`
	DocumentID   string `json:"documentId,omitempty"`
	AssertionCID string `json:"assertionCid,omitempty"`
	FileCID      string `json:"fileCid,omitempty"`
	ErrorKind    string `json:"errorKind,omitempty"`
	Error        string `json:"error,omitempty"`
	IndexError   string `json:"indexError,omitempty"`
}

const (
	outcomeSucceeded      = "succeeded"
	outcomeAlreadyExisted = "already_existed"
	outcomeFailed         = "failed"
)

func NewServer(ingest *pipeline.Service, records *db.RecordStore, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8080
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		// Ingestion waits on fetch and extraction; give batches room.
		writeTimeout = 300 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		ingest:  ingest,
		records: records,
		logger:  logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.ingest == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("archivist server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("archivist server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%d", maxEventBodyBytes)))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Info()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	e.POST("/new", s.handleNew)

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

// handleNew accepts an upload event batch, ingests every record, and reports
// per-record outcomes. Full success returns 200; any record failure returns
// 500 with the failures detailed.
func (s *Server) handleNew(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxEventBodyBytes))
	if err != nil {
		return fail(c, http.StatusBadRequest, "unreadable request body", nil)
	}

	event, err := eventschema.ValidateUploadEvent(json.RawMessage(body))
	if err != nil {
		return fail(c, http.StatusBadRequest, err.Error(), nil)
	}

	events := make([]pipeline.Event, 0, len(event.Records))
	for i, record := range event.Records {
		organizationID, fileID, err := eventschema.DecodeKey(record.S3.Object.Key)
		if err != nil {
			return fail(c, http.StatusBadRequest, fmt.Sprintf("records[%d]: %v", i, err), nil)
		}
		eventTime, err := record.Time()
		if err != nil {
			return fail(c, http.StatusBadRequest, fmt.Sprintf("records[%d]: %v", i, err), nil)
		}
		events = append(events, pipeline.Event{
			EventTime:      eventTime,
			Bucket:         record.S3.Bucket.Name,
			Key:            record.S3.Object.Key,
			Size:           record.S3.Object.Size,
			OrganizationID: organizationID,
			FileID:         fileID,
		})
	}

	results := s.ingest.ProcessBatch(c.Request().Context(), events)

	outcomes := make([]recordOutcome, len(results))
	anyFailed := false
	for i, result := range results {
		outcomes[i] = outcomeFor(result)
		if result.Failed() {
			anyFailed = true
		}
	}

	payload := map[string]any{"records": outcomes}
	if anyFailed {
		return errorWithData(c, "one or more records failed", payload)
	}
	return success(c, payload)
}

func outcomeFor(result pipeline.RecordResult) recordOutcome {
	outcome := recordOutcome{Key: result.Event.Key}
	if result.Err != nil {
		outcome.Status = outcomeFailed
		outcome.Error = result.Err.Error()
		var ingestErr *pipeline.Error
		if errors.As(result.Err, &ingestErr) {
			outcome.ErrorKind = string(ingestErr.Kind)
		}
		return outcome
	}

	outcome.Status = outcomeSucceeded
	if result.Result.Deduplicated {
		outcome.Status = outcomeAlreadyExisted
	}
	outcome.DocumentID = result.Result.DocumentID
	outcome.AssertionCID = result.Result.AssertionCID
	outcome.FileCID = result.Result.FileCID
	if result.Result.IndexErr != nil {
		outcome.IndexError = result.Result.IndexErr.Error()
	}
	return outcome
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "archivist",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	documents, assertions, organizations, err := s.records.CountRecords(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, map[string]any{
		"documents":     documents,
		"assertions":    assertions,
		"organizations": organizations,
	})
}
