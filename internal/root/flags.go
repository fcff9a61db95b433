package root

import (
	"time"

	"github.com/drewfead/vo-watcher/internal/cache"
	"github.com/drewfead/vo-watcher/internal/fetch"
	"github.com/drewfead/vo-watcher/internal/ingest"
	"github.com/drewfead/vo-watcher/internal/ratings"
	"github.com/drewfead/vo-watcher/internal/scraper"
	"github.com/urfave/cli/v3"
)

const envPrefix = "VO_WATCHER_"

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

const (
	categoryDatabase = "Database"
	categoryUpstream = "Upstream"
	categoryProxy    = "Proxy"
	categoryProvider = "Providers"
	categoryHTTP     = "HTTP"
)

// globalFlags are shared by every subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", Sources: env("LOG_LEVEL")},
		&cli.StringFlag{Name: "log-format", Value: "text", Usage: "text or json", Sources: env("LOG_FORMAT")},

		&cli.StringFlag{Name: "db-host", Value: "localhost", Category: categoryDatabase, Sources: env("DB_HOST")},
		&cli.StringFlag{Name: "db-port", Value: "3306", Category: categoryDatabase, Sources: env("DB_PORT")},
		&cli.StringFlag{Name: "db-user", Value: "root", Category: categoryDatabase, Sources: env("DB_USER")},
		&cli.StringFlag{Name: "db-password", Category: categoryDatabase, Sources: env("DB_PASSWORD")},
		&cli.StringFlag{Name: "db-name", Value: "showtimes", Category: categoryDatabase, Sources: env("DB_NAME")},

		&cli.StringFlag{Name: "base-url", Value: scraper.DefaultBaseURL, Usage: "listing URL prefix; the cinema id and day are appended", Category: categoryUpstream, Sources: env("BASE_URL")},
		&cli.DurationFlag{Name: "request-timeout", Value: 30 * time.Second, Category: categoryUpstream, Sources: env("REQUEST_TIMEOUT")},
		&cli.DurationFlag{Name: "min-delay", Value: 500 * time.Millisecond, Usage: "shortest pause between direct requests", Category: categoryUpstream, Sources: env("MIN_DELAY")},
		&cli.DurationFlag{Name: "max-delay", Value: 2 * time.Second, Usage: "longest pause between direct requests", Category: categoryUpstream, Sources: env("MAX_DELAY")},
		&cli.StringFlag{Name: "primary-strategy", Value: fetch.DirectName, Usage: "fetch strategy tried first for every page", Category: categoryUpstream, Sources: env("PRIMARY_STRATEGY")},
		&cli.StringFlag{Name: "fallback-strategy", Value: fetch.ScrapingAntName, Usage: "fetch strategy retried once for pages the primary pass missed", Category: categoryUpstream, Sources: env("FALLBACK_STRATEGY")},
		&cli.IntFlag{Name: "workers", Value: ingest.DefaultWorkers, Usage: "cinemas scraped concurrently", Category: categoryUpstream, Sources: env("WORKERS")},

		&cli.StringFlag{Name: "scrapingant-key", Category: categoryProxy, Sources: env("SCRAPINGANT_KEY")},
		&cli.StringFlag{Name: "scrapingant-url", Value: fetch.DefaultScrapingAntURL, Category: categoryProxy, Sources: env("SCRAPINGANT_URL")},
		&cli.StringFlag{Name: "proxy-country", Value: "FR", Category: categoryProxy, Sources: env("PROXY_COUNTRY")},
		&cli.StringFlag{Name: "scrapingant-payload", Value: "{}", Usage: "JSON body posted with every proxied request", Category: categoryProxy, Sources: env("SCRAPINGANT_PAYLOAD")},
		&cli.FloatFlag{Name: "scrapingant-rate", Value: 1, Usage: "proxied requests per second, 0 for unlimited", Category: categoryProxy, Sources: env("SCRAPINGANT_RATE")},

		&cli.StringFlag{Name: "tmdb-token", Usage: "TMDB v4 read access token; enrichment is skipped without it", Category: categoryProvider, Sources: env("TMDB_TOKEN")},
		&cli.StringFlag{Name: "omdb-url", Value: ratings.DefaultOMDbURL, Category: categoryProvider, Sources: env("OMDB_URL")},
		&cli.StringFlag{Name: "omdb-key", Usage: "OMDb API key; ratings are not refreshed without it", Category: categoryProvider, Sources: env("OMDB_KEY")},

		&cli.StringFlag{Name: "http-addr", Value: ":8080", Category: categoryHTTP, Sources: env("HTTP_ADDR")},
		&cli.StringSliceFlag{Name: "allowed-origins", Usage: "CORS allow-list", Category: categoryHTTP, Sources: env("ALLOWED_ORIGINS")},
		&cli.StringFlag{Name: "admin-secret", Usage: "HS256 key for admin tokens", Category: categoryHTTP, Sources: env("ADMIN_SECRET")},
		&cli.FloatFlag{Name: "rate-limit", Value: 2, Usage: "requests per second per client, 0 disables limiting", Category: categoryHTTP, Sources: env("RATE_LIMIT")},
		&cli.IntFlag{Name: "rate-burst", Value: 20, Category: categoryHTTP, Sources: env("RATE_BURST")},
		&cli.DurationFlag{Name: "cache-max-age", Value: cache.DefaultMaxAge, Usage: "how long search results are served before a rebuild", Category: categoryHTTP, Sources: env("CACHE_MAX_AGE")},
		&cli.DurationFlag{Name: "cache-rebuild-timeout", Value: cache.DefaultRebuildTimeout, Usage: "how long one search rebuild may query the database", Category: categoryHTTP, Sources: env("CACHE_REBUILD_TIMEOUT")},

		&cli.StringFlag{Name: "timezone", Value: "Europe/Paris", Usage: "IANA zone whose midnight starts the search window", Sources: env("TIMEZONE")},
		&cli.StringFlag{Name: "raw-data-dir", Value: "raw_data", Usage: "where raw captures are saved and replayed from", Sources: env("RAW_DATA_DIR")},
	}
}
