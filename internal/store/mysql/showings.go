package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/normalize"
)

var showingColumns = []string{"movie_id", "cinema_id", "start_time", "hash_id"}

func (s *Store) ShowingFingerprints(ctx context.Context) ([]string, error) {
	fps, err := s.queryStrings(ctx, "SELECT hash_id FROM showtimes")
	if err != nil {
		return nil, fmt.Errorf("mysql: list showing fingerprints: %w", err)
	}
	return fps, nil
}

// showingArgs recomputes the fingerprint from the other columns so the stored
// hash can never drift from them.
func showingArgs(sh internal.Showing) []any {
	return []any{sh.MovieID, sh.CinemaID, internal.WallClock(sh.StartTime).Truncate(time.Minute), sh.Fingerprint()}
}

func (s *Store) InsertShowings(ctx context.Context, showings []internal.Showing) (int64, error) {
	n, err := insertChunks(ctx, s, "showtimes", showingColumns, showings, showingArgs)
	if err != nil {
		return n, fmt.Errorf("mysql: insert showings: %w", err)
	}
	return n, nil
}

const futureShowingsQuery = `SELECT s.start_time, m.movie_id, m.original_title, m.french_title, m.runtime,
	m.synopsis, m.cast, m.languages, m.genres, m.release_date, m.imdb_url, m.origin_country,
	m.poster_hi_res, m.poster_lo_res, m.tagline, m.tmdb_id, m.rating_imdb, m.rating_rt, m.rating_meta,
	c.name, c.town
	FROM showtimes s
	JOIN movies m ON s.movie_id = m.movie_id
	JOIN cinemas c ON s.cinema_id = c.cinema_id
	WHERE s.start_time > ?
	ORDER BY s.start_time, c.name, m.original_title`

func (s *Store) FutureShowings(ctx context.Context, after time.Time) ([]internal.ShowingRow, error) {
	var out []internal.ShowingRow
	err := s.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, futureShowingsQuery, internal.WallClock(after))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			row, err := scanShowingRow(rows)
			if err != nil {
				return err
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: future showings: %w", err)
	}
	return out, nil
}

func scanShowingRow(rows *sql.Rows) (internal.ShowingRow, error) {
	var (
		row                                   internal.ShowingRow
		localized, synopsis, imdbURL, tagline sql.NullString
		cast, languages, genres, countries    sql.NullString
		posterHi, posterLo                    sql.NullString
		cinemaName, cinemaTown                sql.NullString
		runtime, tmdbID                       sql.NullInt64
		ratingIMDb, ratingRT, ratingMeta      sql.NullInt64
		release                               sql.NullTime
	)
	m := &row.Movie
	err := rows.Scan(&row.StartTime, &m.ID, &m.OriginalTitle, &localized, &runtime,
		&synopsis, &cast, &languages, &genres, &release, &imdbURL, &countries,
		&posterHi, &posterLo, &tagline, &tmdbID, &ratingIMDb, &ratingRT, &ratingMeta,
		&cinemaName, &cinemaTown)
	if err != nil {
		return row, err
	}
	m.LocalizedTitle = localized.String
	m.Runtime = int(runtime.Int64)
	m.Synopsis = synopsis.String
	m.Cast = normalize.DecodeList(cast.String)
	m.Languages = normalize.DecodeList(languages.String)
	m.Genres = normalize.DecodeList(genres.String)
	if release.Valid {
		d := release.Time
		m.ReleaseDate = &d
	}
	m.IMDbURL = imdbURL.String
	m.OriginCountries = normalize.DecodeList(countries.String)
	m.PosterHiRes = posterHi.String
	m.PosterLoRes = posterLo.String
	m.Tagline = tagline.String
	m.TMDBID = tmdbID.Int64
	m.Ratings = internal.Ratings{
		IMDb:           intPtr(ratingIMDb),
		RottenTomatoes: intPtr(ratingRT),
		Metacritic:     intPtr(ratingMeta),
	}
	row.CinemaName = cinemaName.String
	row.CinemaTown = cinemaTown.String
	return row, nil
}
