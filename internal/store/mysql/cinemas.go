package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/drewfead/vo-watcher/internal"
)

func (s *Store) CinemaIDs(ctx context.Context) ([]string, error) {
	ids, err := s.queryStrings(ctx, "SELECT cinema_id FROM cinemas ORDER BY cinema_id")
	if err != nil {
		return nil, fmt.Errorf("mysql: list cinema ids: %w", err)
	}
	return ids, nil
}

func (s *Store) Cinemas(ctx context.Context) ([]internal.Cinema, error) {
	const q = "SELECT cinema_id, `name`, `address`, info, ST_Latitude(gps), ST_Longitude(gps), town FROM cinemas ORDER BY cinema_id"
	var out []internal.Cinema
	err := s.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, q)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				c                   internal.Cinema
				name, address, info sql.NullString
				town                sql.NullString
				lat, lon            sql.NullFloat64
			)
			if err := rows.Scan(&c.ID, &name, &address, &info, &lat, &lon, &town); err != nil {
				return err
			}
			c.Name, c.Address, c.Info, c.Town = name.String, address.String, info.String, town.String
			if lat.Valid && lon.Valid {
				c.Coord = &internal.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("mysql: list cinemas: %w", err)
	}
	return out, nil
}

// pointWKT renders a coordinate for ST_GeomFromText with SRID 4326, whose axis
// order is latitude first.
func pointWKT(c *internal.Coordinate) any {
	if c == nil {
		return nil
	}
	return "POINT(" + strconv.FormatFloat(c.Lat, 'f', -1, 64) + " " + strconv.FormatFloat(c.Lon, 'f', -1, 64) + ")"
}

func (s *Store) AddCinema(ctx context.Context, cinema internal.Cinema) error {
	const q = "INSERT INTO cinemas (cinema_id, `name`, `address`, info, gps, town) VALUES (?, ?, ?, ?, ST_GeomFromText(?, 4326), ?)"
	err := s.WithConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, q,
			cinema.ID, cinema.Name, nullString(cinema.Address), nullString(cinema.Info), pointWKT(cinema.Coord), cinema.Town)
		return err
	})
	if isDuplicate(err) {
		return fmt.Errorf("%w: %s", internal.ErrCinemaExists, cinema.ID)
	}
	if err != nil {
		return fmt.Errorf("mysql: add cinema %s: %w", cinema.ID, err)
	}
	return nil
}

func (s *Store) DeleteCinema(ctx context.Context, id string) error {
	var affected int64
	err := s.WithConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, "DELETE FROM cinemas WHERE cinema_id = ?", id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("mysql: delete cinema %s: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", internal.ErrCinemaNotFound, id)
	}
	return nil
}
