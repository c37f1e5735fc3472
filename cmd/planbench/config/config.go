// Package config provides configuration structures for the planbench CLI.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/report"
)

// Config represents the CLI configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo" json:"mongo"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`

	QueryTimeout time.Duration `yaml:"query_timeout" json:"query_timeout"`
	LogLevel     string        `yaml:"log_level" json:"log_level"`
	LogFormat    string        `yaml:"log_format" json:"log_format"` // auto, console, json
}

// PostgresConfig represents the relational engine connection.
type PostgresConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	User           string        `yaml:"user" json:"user"`
	Password       string        `yaml:"password" json:"password"`
	Database       string        `yaml:"database" json:"database"`
	MaxConns       int32         `yaml:"max_conns" json:"max_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// MongoConfig represents the document engine connection.
type MongoConfig struct {
	Host           string        `yaml:"host" json:"host"`
	Port           int           `yaml:"port" json:"port"`
	User           string        `yaml:"user" json:"user"`
	Password       string        `yaml:"password" json:"password"`
	Database       string        `yaml:"database" json:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// OutputConfig represents where and how results are written.
type OutputConfig struct {
	ResultsDir     string `yaml:"results_dir" json:"results_dir"`
	RelationalFile string `yaml:"relational_file" json:"relational_file"`
	DocumentFile   string `yaml:"document_file" json:"document_file"`
	Timestamped    bool   `yaml:"timestamped" json:"timestamped"`
	Format         string `yaml:"format" json:"format"`
}

// HistoryConfig represents the DuckDB comparison history.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// MetricsConfig represents Prometheus textfile export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Textfile string `yaml:"textfile" json:"textfile"`
}

// DSN builds a postgres connection URL.
func (c PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	return u.String()
}

// URI builds a mongodb connection URI. Credentials are omitted when no user is set.
func (c MongoConfig) URI() string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/",
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// Validate validates the configuration and fills defaults.
func (c *Config) Validate() error {
	def := DefaultConfig()

	if c.Postgres.Host == "" {
		c.Postgres.Host = def.Postgres.Host
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = def.Postgres.Port
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = def.Postgres.Database
	}
	if c.Postgres.ConnectTimeout <= 0 {
		c.Postgres.ConnectTimeout = def.Postgres.ConnectTimeout
	}
	if err := validPort("postgres", c.Postgres.Port); err != nil {
		return err
	}

	if c.Mongo.Host == "" {
		c.Mongo.Host = def.Mongo.Host
	}
	if c.Mongo.Port == 0 {
		c.Mongo.Port = def.Mongo.Port
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = def.Mongo.Database
	}
	if c.Mongo.ConnectTimeout <= 0 {
		c.Mongo.ConnectTimeout = def.Mongo.ConnectTimeout
	}
	if err := validPort("mongo", c.Mongo.Port); err != nil {
		return err
	}

	if c.Output.ResultsDir == "" {
		c.Output.ResultsDir = def.Output.ResultsDir
	}
	if c.Output.RelationalFile == "" {
		c.Output.RelationalFile = def.Output.RelationalFile
	}
	if c.Output.DocumentFile == "" {
		c.Output.DocumentFile = def.Output.DocumentFile
	}
	if c.Output.Format == "" {
		c.Output.Format = def.Output.Format
	}
	c.Output.Format = strings.ToLower(c.Output.Format)
	if !contains(report.Formats, c.Output.Format) {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("unsupported output format %q (want one of %s)", c.Output.Format, strings.Join(report.Formats, ", ")))
	}

	if c.History.Enabled && c.History.Path == "" {
		c.History.Path = def.History.Path
	}
	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return errors.New(errors.CodeInvalidConfig, "metrics export requires a textfile path")
	}

	if c.QueryTimeout < 0 {
		return errors.New(errors.CodeInvalidConfig, "query timeout must not be negative")
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = def.QueryTimeout
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = def.LogFormat
	case "auto", "console", "json":
	default:
		return errors.New(errors.CodeInvalidConfig, fmt.Sprintf("unsupported log format %q", c.LogFormat))
	}

	return nil
}

// DefaultConfig returns a default configuration matching the docker-compose
// setup the Yelp dataset is loaded into.
func DefaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Host:           "postgres",
			Port:           5432,
			User:           "postgres",
			Password:       "postgres",
			Database:       "yelp_db",
			MaxConns:       4,
			ConnectTimeout: 10 * time.Second,
		},
		Mongo: MongoConfig{
			Host:           "mongodb",
			Port:           27017,
			User:           "mongodb",
			Password:       "mongodb",
			Database:       "yelp_db",
			ConnectTimeout: 10 * time.Second,
		},
		Output: OutputConfig{
			ResultsDir:     report.DefaultResultsDir,
			RelationalFile: report.DefaultRelationalFile,
			DocumentFile:   report.DefaultDocumentFile,
			Timestamped:    true,
			Format:         report.FormatTable,
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    "results/history.duckdb",
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
		QueryTimeout: 5 * time.Minute,
		LogLevel:     "info",
		LogFormat:    "auto",
	}
}

func validPort(engine string, port int) error {
	if port < 1 || port > 65535 {
		return errors.New(errors.CodeInvalidConfig, fmt.Sprintf("%s port %d out of range", engine, port))
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
