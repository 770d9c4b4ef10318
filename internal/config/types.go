package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了路由系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Venues   []VenueConfig  `mapstructure:"venues"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// VenueConfig 描述单个交易场所的接入参数。
type VenueConfig struct {
	ID         string  `mapstructure:"id"`
	TakerFee   float64 `mapstructure:"taker_fee"`
	MinLotSize float64 `mapstructure:"min_lot_size"`
	BookFile   string  `mapstructure:"book_file"`
}

// RoutingConfig 控制路由引擎行为。
type RoutingConfig struct {
	DefaultAlgorithm string `mapstructure:"default_algorithm"`
	HistoryLimit     int    `mapstructure:"history_limit"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if len(c.Venues) == 0 {
		err = multierr.Append(err, errors.New("venues 至少需要配置一个交易场所"))
	}

	seen := make(map[string]struct{}, len(c.Venues))
	for i, venue := range c.Venues {
		if venue.ID == "" {
			err = multierr.Append(err, fmt.Errorf("venues[%d].id 不能为空", i))
			continue
		}
		if _, ok := seen[venue.ID]; ok {
			err = multierr.Append(err, fmt.Errorf("venues[%d].id %q 重复", i, venue.ID))
		}
		seen[venue.ID] = struct{}{}

		if venue.TakerFee < 0 || venue.TakerFee >= 1 {
			err = multierr.Append(err, fmt.Errorf("venues[%d].taker_fee 必须位于[0,1)", i))
		}
		if venue.MinLotSize <= 0 {
			err = multierr.Append(err, fmt.Errorf("venues[%d].min_lot_size 必须大于0", i))
		}
		if venue.BookFile == "" {
			err = multierr.Append(err, fmt.Errorf("venues[%d].book_file 不能为空", i))
		}
	}

	switch c.Routing.DefaultAlgorithm {
	case "greedy", "hybrid":
	default:
		err = multierr.Append(err, errors.New("routing.default_algorithm 仅支持 greedy 或 hybrid"))
	}
	if c.Routing.HistoryLimit <= 0 {
		err = multierr.Append(err, errors.New("routing.history_limit 必须大于0"))
	}

	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}

	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
