package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	skimerrs "github.com/jdholdren/skimmer/internal/errors"
	"github.com/jdholdren/skimmer/internal/skimmer"
)

// Core is the slice of the coordinator the handlers need.
type Core interface {
	ListFeeds(ctx context.Context) ([]skimmer.Feed, error)
	AddFeed(ctx context.Context, url string) (skimmer.Feed, error)
	GetFeed(ctx context.Context, id string) (skimmer.Feed, error)
	ListEntries(ctx context.Context, feedID string) ([]skimmer.Entry, error)
	SyncAll(ctx context.Context) error
}

// Server handles requests to read feeds or add new ones for tracking.
type Server struct {
	*http.Server

	core Core
}

func New(port int, core Core) *Server {
	r := ErrRouter{mux.NewRouter()}
	r.Use(AccessLogMiddleware)

	srvr := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			Handler:      r,
		},
		core: core,
	}

	r.HandleFuncE("/v1/feeds", srvr.handleListFeeds).Methods(http.MethodGet)
	r.HandleFuncE("/v1/feeds", srvr.handleCreateFeed).Methods(http.MethodPost)
	r.HandleFuncE("/v1/feeds/{id}", srvr.handleGetFeed).Methods(http.MethodGet)
	r.HandleFuncE("/v1/feeds/{id}/entries", srvr.handleListEntries).Methods(http.MethodGet)
	r.HandleFuncE("/v1/sync", srvr.handleSyncAll).Methods(http.MethodPost)

	return srvr
}

type CreateFeedRequest struct {
	URL string `json:"url"`
}

func (r CreateFeedRequest) Validate() error {
	if r.URL == "" {
		return errors.New("url is required")
	}
	if _, err := url.ParseRequestURI(r.URL); err != nil {
		return fmt.Errorf("url is invalid: %s", err)
	}

	return nil
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) error {
	feeds, err := s.core.ListFeeds(r.Context())
	if err != nil {
		return coerce(err)
	}

	return WriteJSON(w, http.StatusOK, feeds)
}

func (s *Server) handleCreateFeed(w http.ResponseWriter, r *http.Request) error {
	body, err := DecodeValid[CreateFeedRequest](r.Body)
	if err != nil {
		return skimerrs.E(http.StatusBadRequest, err)
	}

	feed, err := s.core.AddFeed(r.Context(), body.URL)
	if err != nil {
		return coerce(err)
	}

	return WriteJSON(w, http.StatusCreated, feed)
}

func (s *Server) handleGetFeed(w http.ResponseWriter, r *http.Request) error {
	feed, err := s.core.GetFeed(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return coerce(err)
	}

	return WriteJSON(w, http.StatusOK, feed)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) error {
	entries, err := s.core.ListEntries(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return coerce(err)
	}

	return WriteJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) error {
	if err := s.core.SyncAll(r.Context()); err != nil {
		// A per-feed miss here means a remote went away mid-run, not
		// that this endpoint's resource is missing, so everything
		// upstream-shaped answers as a bad gateway.
		if errors.Is(err, skimmer.ErrNotFound) || errors.Is(err, skimmer.ErrRemote) {
			return skimerrs.E(http.StatusBadGateway, err)
		}

		return skimerrs.E(err)
	}

	return WriteJSON(w, http.StatusOK, struct{}{})
}

// coerce translates the domain sentinels into statused errors.
func coerce(err error) *skimerrs.Error {
	switch {
	case errors.Is(err, skimmer.ErrNotFound):
		return skimerrs.E(http.StatusNotFound, err)
	case errors.Is(err, skimmer.ErrConflict):
		return skimerrs.E(http.StatusConflict, err)
	case errors.Is(err, skimmer.ErrRemote):
		return skimerrs.E(http.StatusBadGateway, err)
	}

	return skimerrs.E(err)
}
