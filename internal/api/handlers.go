package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/ingest"
	"github.com/labstack/echo/v4"
)

func (s *Server) health(c echo.Context) error {
	return c.String(http.StatusOK, healthMessage)
}

func forceRefresh(c echo.Context) bool {
	force, _ := strconv.ParseBool(c.QueryParam("refresh"))
	return force
}

// searchAll answers with the whole snapshot, filtered by ?town= when given.
func (s *Server) searchAll(c echo.Context) error {
	ctx := c.Request().Context()
	force := forceRefresh(c)
	towns := c.QueryParams()["town"]
	showings := s.search.Showings(ctx, force, towns...)
	movies := s.search.Movies(ctx, false)
	if len(towns) > 0 {
		listed := make(map[string]bool, len(showings))
		for _, e := range showings {
			listed[e.OriginalTitle] = true
		}
		filtered := make(map[string]any, len(listed))
		for title, detail := range movies {
			if listed[title] {
				filtered[title] = detail
			}
		}
		return c.JSON(http.StatusOK, map[string]any{"movies": filtered, "showings": showings})
	}
	return c.JSON(http.StatusOK, map[string]any{"movies": movies, "showings": showings})
}

func (s *Server) movies(c echo.Context) error {
	return c.JSON(http.StatusOK, s.search.Movies(c.Request().Context(), forceRefresh(c)))
}

func (s *Server) showings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.search.Showings(c.Request().Context(), forceRefresh(c), c.QueryParams()["town"]...))
}

func (s *Server) listCinemas(c echo.Context) error {
	cinemas, err := s.store.Cinemas(c.Request().Context())
	if err != nil {
		return err
	}
	if cinemas == nil {
		cinemas = []internal.Cinema{}
	}
	return c.JSON(http.StatusOK, cinemas)
}

// cinemaRequest is the add-cinema body; gps is a [lat, lon] pair.
type cinemaRequest struct {
	ID      string    `json:"cinema_id"`
	Name    string    `json:"name"`
	Address string    `json:"address"`
	Info    string    `json:"info"`
	GPS     []float64 `json:"gps"`
	Town    string    `json:"town"`
}

func (r cinemaRequest) cinema() (internal.Cinema, error) {
	coord, err := internal.CoordinateFromPair(r.GPS)
	if err != nil {
		return internal.Cinema{}, err
	}
	c := internal.Cinema{
		ID:      strings.TrimSpace(r.ID),
		Name:    strings.TrimSpace(r.Name),
		Address: strings.TrimSpace(r.Address),
		Info:    strings.TrimSpace(r.Info),
		Coord:   coord,
		Town:    strings.TrimSpace(r.Town),
	}
	return c, c.Validate()
}

func (s *Server) addCinema(c echo.Context) error {
	var body cinemaRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	cinema, err := body.cinema()
	if err != nil {
		return err
	}
	if err := s.store.AddCinema(c.Request().Context(), cinema); err != nil {
		return err
	}
	slog.Info("api: cinema added", "cinema_id", cinema.ID, "by", c.Get("admin"))
	return c.JSON(http.StatusCreated, cinema)
}

func (s *Server) deleteCinema(c echo.Context) error {
	id := c.Param("id")
	if err := s.store.DeleteCinema(c.Request().Context(), id); err != nil {
		return err
	}
	slog.Info("api: cinema deleted", "cinema_id", id, "by", c.Get("admin"))
	return c.NoContent(http.StatusNoContent)
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", internal.ErrInvalidWindow, name)
	}
	return n, nil
}

// run executes one ingestion synchronously and answers with its report.
func (s *Server) run(c echo.Context) error {
	var window internal.DayWindow
	var err error
	if window.Start, err = queryInt(c, "start", 0); err != nil {
		return err
	}
	if window.End, err = queryInt(c, "end", 14); err != nil {
		return err
	}
	if err := window.Validate(); err != nil {
		return err
	}

	opts := append([]ingest.Option{ingest.WithInvalidator(s.search)}, s.ingestOpts...)
	if save, _ := strconv.ParseBool(c.QueryParam("save_raw")); save {
		opts = append(opts, ingest.WithSaveRaw(s.rawDataDir))
	}
	if replay := c.QueryParam("replay"); replay != "" {
		// Only captures inside the raw data directory can be replayed.
		name := filepath.Base(replay)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid replay file name")
		}
		opts = append(opts, ingest.WithReplay(filepath.Join(s.rawDataDir, name)))
	}
	coordinator, err := ingest.New(s.store, opts...)
	if err != nil {
		return err
	}
	// A run completes even if the admin client goes away.
	report, err := coordinator.Run(context.WithoutCancel(c.Request().Context()), window)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) pingDB(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		slog.Error("api: database ping failed", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) buildDB(c echo.Context) error {
	if s.bootstrapper == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "schema management is not available for this store")
	}
	tables, seeded, err := s.bootstrapper.Bootstrap(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"tables": tables, "seeded_cinemas": seeded})
}
