package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/normalize"
)

var movieColumns = []string{
	"movie_id", "original_title", "french_title", "runtime", "synopsis", "cast",
	"languages", "genres", "release_date", "imdb_url", "origin_country",
	"poster_hi_res", "poster_lo_res", "tagline", "tmdb_id",
	"rating_imdb", "rating_rt", "rating_meta",
}

func (s *Store) MovieIDs(ctx context.Context) ([]string, error) {
	ids, err := s.queryStrings(ctx, "SELECT movie_id FROM movies")
	if err != nil {
		return nil, fmt.Errorf("mysql: list movie ids: %w", err)
	}
	return ids, nil
}

// listValue encodes a list column. A list that does not encode is stored as
// NULL with a warning, the same rule normalize.CheckedList applies.
func listValue(movieID, field string, values []string) any {
	encoded, err := normalize.EncodeList(values)
	if err != nil {
		slog.Warn("mysql: rejecting list field", "movie_id", movieID, "field", field, "error", err)
		return nil
	}
	return nullString(encoded)
}

func movieArgs(m internal.Movie) []any {
	var release any
	if m.ReleaseDate != nil {
		release = m.ReleaseDate.Format("2006-01-02")
	}
	return []any{
		m.ID,
		m.OriginalTitle,
		nullString(m.LocalizedTitle),
		nullInt(int64(m.Runtime)),
		nullString(m.Synopsis),
		listValue(m.ID, "cast", m.Cast),
		listValue(m.ID, "languages", m.Languages),
		listValue(m.ID, "genres", m.Genres),
		release,
		nullString(m.IMDbURL),
		listValue(m.ID, "origin_country", m.OriginCountries),
		nullString(m.PosterHiRes),
		nullString(m.PosterLoRes),
		nullString(m.Tagline),
		nullInt(m.TMDBID),
		nullIntPtr(m.Ratings.IMDb),
		nullIntPtr(m.Ratings.RottenTomatoes),
		nullIntPtr(m.Ratings.Metacritic),
	}
}

// insertIgnore builds one multi-row INSERT IGNORE statement.
func insertIgnore(table string, columns []string, rows int) string {
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	var b strings.Builder
	b.WriteString("INSERT IGNORE INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")
	for i := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
	}
	return b.String()
}

// insertChunks writes rows in statements of at most chunkSize rows, on one
// connection, and sums the affected rows. Duplicate keys are skipped by the
// database.
func insertChunks[T any](ctx context.Context, s *Store, table string, columns []string, records []T, argsOf func(T) []any) (int64, error) {
	var total int64
	err := s.WithConn(ctx, func(conn *sql.Conn) error {
		for start := 0; start < len(records); start += s.chunkSize {
			chunk := records[start:min(start+s.chunkSize, len(records))]
			args := make([]any, 0, len(chunk)*len(columns))
			for _, r := range chunk {
				args = append(args, argsOf(r)...)
			}
			res, err := conn.ExecContext(ctx, insertIgnore(table, columns, len(chunk)), args...)
			if err != nil {
				return fmt.Errorf("rows %d..%d: %w", start, start+len(chunk)-1, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	return total, err
}

func (s *Store) InsertMovies(ctx context.Context, movies []internal.Movie) (int64, error) {
	n, err := insertChunks(ctx, s, "movies", movieColumns, movies, movieArgs)
	if err != nil {
		return n, fmt.Errorf("mysql: insert movies: %w", err)
	}
	return n, nil
}

// updateRatingsSQL keeps a stored rating when the source no longer reports it.
const updateRatingsSQL = "UPDATE movies SET rating_imdb = COALESCE(?, rating_imdb), " +
	"rating_rt = COALESCE(?, rating_rt), rating_meta = COALESCE(?, rating_meta) WHERE movie_id = ?"

// UpdateRatings writes the three rating columns in one transaction with one
// prepared statement. Absent ratings leave the column unchanged.
func (s *Store) UpdateRatings(ctx context.Context, updates []internal.RatingUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, updateRatingsSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, u := range updates {
			res, err := stmt.ExecContext(ctx,
				nullIntPtr(u.Ratings.IMDb), nullIntPtr(u.Ratings.RottenTomatoes), nullIntPtr(u.Ratings.Metacritic), u.MovieID)
			if err != nil {
				return fmt.Errorf("movie %s: %w", u.MovieID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mysql: update ratings: %w", err)
	}
	return total, nil
}
