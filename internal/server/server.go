// Package server exposes a trained network over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/fcnet/internal/checkpoint"
	"github.com/born-ml/fcnet/internal/nn"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 32 << 20

// Options configures a Server.
type Options struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	MaxBatch       int      // maximum rows per predict request, default 256
	Classes        []string // optional label names
}

// Server answers prediction requests for one network.
type Server struct {
	net     *nn.Network
	meta    checkpoint.Meta
	norm    *checkpoint.Normalization
	opts    Options
	handler http.Handler
}

// Response is the envelope for every JSON reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PredictRequest is the body of POST /v1/predict.
type PredictRequest struct {
	Inputs [][]float64 `json:"inputs"`
}

// Prediction is one row of a predict response.
type Prediction struct {
	Label         int       `json:"label"`
	Class         string    `json:"class,omitempty"`
	Probabilities []float64 `json:"probabilities"`
}

// ModelInfo is returned by GET /v1/model.
type ModelInfo struct {
	Architecture  nn.Descriptor `json:"architecture"`
	NumParameters int           `json:"num_parameters"`
	RunID         string        `json:"run_id,omitempty"`
	Epoch         int           `json:"epoch"`
	Accuracy      float64       `json:"accuracy"`
	Classes       []string      `json:"classes,omitempty"`
}

// New builds a server around ckpt.
//
// When ckpt records an input normalization, request rows are normalized the
// same way before the forward pass.
func New(ckpt *checkpoint.Checkpoint, opts Options) (*Server, error) {
	net, err := checkpoint.Rebuild(ckpt)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = 256
	}
	if opts.Classes != nil && len(opts.Classes) != ckpt.Descriptor.OutputSize {
		return nil, fmt.Errorf("got %d class names for %d outputs", len(opts.Classes), ckpt.Descriptor.OutputSize)
	}

	s := &Server{net: net, meta: ckpt.Meta, opts: opts}
	norm, ok, err := ckpt.Meta.Normalization()
	if err != nil {
		return nil, err
	}
	if ok {
		s.norm = &norm
		opts.Logger.Debug("normalizing inputs", zap.Float64("mean", norm.Mean), zap.Float64("std", norm.Std))
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/v1/model", s.model).Methods(http.MethodGet)
	router.HandleFunc("/v1/predict", s.predict).Methods(http.MethodPost)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}).Handler(router)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("serving predictions", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.send(w, http.StatusOK, Response{Success: true, Data: map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}})
}

func (s *Server) model(w http.ResponseWriter, _ *http.Request) {
	desc := s.net.Descriptor()
	s.send(w, http.StatusOK, Response{Success: true, Data: ModelInfo{
		Architecture:  desc,
		NumParameters: desc.NumParameters(),
		RunID:         s.meta.RunID,
		Epoch:         s.meta.Epoch,
		Accuracy:      s.meta.Accuracy,
		Classes:       s.opts.Classes,
	}})
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	x, err := s.matrix(req.Inputs)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	probs := s.net.Probabilities(x)
	labels := nn.Argmax(probs)
	out := make([]Prediction, len(labels))
	for i, label := range labels {
		out[i] = Prediction{
			Label:         label,
			Probabilities: mat.Row(nil, i, probs),
		}
		if s.opts.Classes != nil {
			out[i].Class = s.opts.Classes[label]
		}
	}
	s.opts.Logger.Debug("predict", zap.Int("rows", len(out)))
	s.send(w, http.StatusOK, Response{Success: true, Data: out})
}

// matrix validates request rows and packs them into a batch.
func (s *Server) matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.New("inputs must contain at least one row")
	}
	if len(rows) > s.opts.MaxBatch {
		return nil, fmt.Errorf("batch of %d rows exceeds limit %d", len(rows), s.opts.MaxBatch)
	}
	width := s.net.Descriptor().InputSize
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d contains a non-finite value", i)
			}
		}
		data = append(data, row...)
	}
	if s.norm != nil {
		s.norm.Apply(data)
	}
	return mat.NewDense(len(rows), width, data), nil
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.send(w, status, Response{Success: false, Error: msg})
}

func (s *Server) send(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.opts.Logger.Error("failed to encode response", zap.Error(err))
	}
}
