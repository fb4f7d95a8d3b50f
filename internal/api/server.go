package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"go-teethagent/pkg/agenterrors"
	"go-teethagent/pkg/logger"
	"go-teethagent/pkg/models"
	"golang.org/x/sync/errgroup"
	"io"
	"net/http"
	"time"
)

const (
	shutdownTimeout = 15 * time.Second
	maxBodyBytes    = 1 << 20

	// statusClientClosedRequest is recorded when the caller leaves before a waited-on
	// command finishes.
	statusClientClosedRequest = 499
)

// Operations is what the agent exposes over HTTP.
type Operations interface {
	GetStatus() models.AgentStatus
	ListCommandResults() []models.CommandResult
	GetCommandResult(id string) (models.CommandResult, error)
	ExecuteCommand(name string, params map[string]any) (models.CommandResult, error)
}

type command struct {
	Name   *string        `json:"name"`
	Params map[string]any `json:"params"`
}

type listResults struct {
	Commands []models.CommandResultView `json:"commands"`
}

type Server struct {
	server *http.Server
}

func New(ops Operations, addr string) *Server {
	r := chi.NewRouter()
	r.Use(logMiddleware())

	r.Route("/v1.0", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, ops.GetStatus())
		})

		r.Get("/commands", func(w http.ResponseWriter, r *http.Request) {
			results := ops.ListCommandResults()
			views := make([]models.CommandResultView, 0, len(results))
			for _, res := range results {
				views = append(views, models.NewCommandResultView(res))
			}
			render.JSON(w, r, listResults{Commands: views})
		})

		r.Get("/commands/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			res, err := ops.GetCommandResult(id)
			if err != nil {
				writeError(w, r, err)
				return
			}

			if r.URL.Query().Get("wait") == "true" {
				if async, ok := res.(interface{ Done() <-chan struct{} }); ok {
					select {
					case <-async.Done():
					case <-r.Context().Done():
						hlog.FromRequest(r).Debug().Str(logger.ResultIDField, id).Msg("client went away while waiting")
						w.WriteHeader(statusClientClosedRequest)
						return
					}
				}
			}
			render.JSON(w, r, models.NewCommandResultView(res))
		})

		r.Post("/commands", func(w http.ResponseWriter, r *http.Request) {
			cmd := command{}
			if err := unmarshalRequestBody(w, r, &cmd); err != nil {
				log.Debug().Err(err).Msg("cannot parse body")
				writeError(w, r, agenterrors.NewInvalidContent("unable to parse body: "+err.Error()))
				return
			}
			if cmd.Name == nil || *cmd.Name == "" {
				writeError(w, r, agenterrors.NewInvalidContent("missing or invalid name in request body"))
				return
			}
			if cmd.Params == nil {
				cmd.Params = map[string]any{}
			}

			res, err := ops.ExecuteCommand(*cmd.Name, cmd.Params)
			if err != nil {
				writeError(w, r, err)
				return
			}
			render.JSON(w, r, models.NewCommandResultView(res))
		})
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: r,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	err := s.server.ListenAndServe()
	if err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	return nil
}

// Serve runs the server until ctx is done, then shuts it down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(s.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	})
	return g.Wait()
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rest agenterrors.RESTError
	if !errors.As(err, &rest) {
		hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, models.Error{Type: "InternalServerError", Code: http.StatusInternalServerError, Message: "Internal server error"})
		return
	}
	render.Status(r, rest.StatusCode())
	render.JSON(w, r, models.NewError(rest))
}

func logMiddleware() func(http.Handler) http.Handler {
	c := alice.New()
	c = c.Append(hlog.NewHandler(logger.Component("api")))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("agent"))
	c = c.Append(hlog.RefererHandler("referer"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("verb", r.Method).
			Stringer("url", r.URL).
			Int("size", size).
			Int("status", status).
			Int64("duration", duration.Milliseconds()).
			Msg("request")
	}))

	return c.Then
}

func unmarshalRequestBody(w http.ResponseWriter, req *http.Request, output interface{}) error {
	if req.Body == nil {
		return errors.New("invalid body in request")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if err = req.Body.Close(); err != nil {
		return err
	}
	if err = json.Unmarshal(body, &output); err != nil {
		return err
	}

	return nil
}
