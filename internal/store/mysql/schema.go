package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/drewfead/vo-watcher/internal"
)

// tables in creation order; showtimes references the other two.
var tables = []struct {
	name string
	ddl  string
}{
	{"movies", `CREATE TABLE movies (
		movie_id VARCHAR(191) PRIMARY KEY,
		original_title VARCHAR(191),
		french_title VARCHAR(191),
		runtime SMALLINT UNSIGNED,
		synopsis VARCHAR(1000),
		cast VARCHAR(191),
		languages VARCHAR(191),
		genres VARCHAR(191),
		release_date DATE,
		imdb_url VARCHAR(255),
		origin_country VARCHAR(191),
		poster_hi_res VARCHAR(255),
		poster_lo_res VARCHAR(255),
		tagline VARCHAR(255),
		tmdb_id INT UNSIGNED,
		rating_imdb TINYINT UNSIGNED,
		rating_rt TINYINT UNSIGNED,
		rating_meta TINYINT UNSIGNED,
		date_added TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`},
	{"cinemas", "CREATE TABLE cinemas (" +
		"cinema_id CHAR(5) PRIMARY KEY," +
		"`name` VARCHAR(191)," +
		"`address` VARCHAR(255)," +
		"info VARCHAR(255)," +
		"gps POINT SRID 4326," +
		"town VARCHAR(191))"},
	{"showtimes", `CREATE TABLE showtimes (
		showtime_id INT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		movie_id VARCHAR(191),
		cinema_id CHAR(5),
		start_time DATETIME,
		hash_id CHAR(64),
		CONSTRAINT fk_movie_id FOREIGN KEY (movie_id) REFERENCES movies(movie_id),
		CONSTRAINT fk_cinema_id FOREIGN KEY (cinema_id) REFERENCES cinemas(cinema_id),
		CONSTRAINT unique_hash_id UNIQUE (hash_id)
	)`},
}

// BuildSchema creates the tables that do not exist yet and returns every
// table name present afterwards.
func (s *Store) BuildSchema(ctx context.Context) ([]string, error) {
	var present []string
	err := s.WithConn(ctx, func(conn *sql.Conn) error {
		existing := make(map[string]bool)
		rows, err := conn.QueryContext(ctx, "SHOW TABLES")
		if err != nil {
			return fmt.Errorf("mysql: list tables: %w", err)
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				return err
			}
			existing[name] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, t := range tables {
			if existing[t.name] {
				slog.Info("mysql: table already exists", "table", t.name)
			} else {
				if _, err := conn.ExecContext(ctx, t.ddl); err != nil {
					return fmt.Errorf("mysql: create table %s: %w", t.name, err)
				}
				slog.Info("mysql: table created", "table", t.name)
			}
			present = append(present, t.name)
		}
		return nil
	})
	return present, err
}

//go:embed seed/cinemas.json
var seedCinemas []byte

// SeedCinemas is the reference list of cinemas shipped with the binary.
func SeedCinemas() ([]internal.Cinema, error) {
	var cinemas []internal.Cinema
	if err := json.Unmarshal(seedCinemas, &cinemas); err != nil {
		return nil, fmt.Errorf("mysql: decode seed cinemas: %w", err)
	}
	return cinemas, nil
}

// Seed adds every reference cinema that is not already stored and returns how
// many were added.
func Seed(ctx context.Context, store internal.CinemaStore) (int, error) {
	cinemas, err := SeedCinemas()
	if err != nil {
		return 0, err
	}
	ids, err := store.CinemaIDs(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	added := 0
	for _, c := range cinemas {
		if known[c.ID] {
			continue
		}
		if err := c.Validate(); err != nil {
			return added, err
		}
		if err := store.AddCinema(ctx, c); err != nil {
			return added, err
		}
		added++
	}
	slog.Info("mysql: seeded cinemas", "added", added, "reference", len(cinemas))
	return added, nil
}

// Bootstrap builds the schema, then seeds the reference cinemas.
func (s *Store) Bootstrap(ctx context.Context) (tables []string, seeded int, err error) {
	if tables, err = s.BuildSchema(ctx); err != nil {
		return tables, 0, err
	}
	seeded, err = Seed(ctx, s)
	return tables, seeded, err
}
