package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/envsync/config"
	"github.com/BaSui01/envsync/internal/migration"
)

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// errUsage 参数错误，帮助信息已输出
var errUsage = errors.New("invalid usage")

// runMigrate 解析公共参数后把子命令交给 migration.CLI
func runMigrate(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 || isHelp(args[0]) {
		printMigrateUsage(out)
		if len(args) < 1 {
			return errUsage
		}
		return nil
	}

	subcommand := args[0]
	if !knownMigrateCommand(subcommand) {
		printMigrateUsage(out)
		return fmt.Errorf("%w: %s", migration.ErrUnknownCommand, subcommand)
	}

	fs := flag.NewFlagSet("migrate "+subcommand, flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")

	// 位置参数在前，可以是负数（steps -1），选项一律使用 -- 前缀
	rest := args[1:]
	var positional []string
	for len(rest) > 0 && !strings.HasPrefix(rest[0], "--") {
		positional = append(positional, rest[0])
		rest = rest[1:]
	}
	if err := fs.Parse(rest); err != nil {
		return err
	}
	positional = append(positional, fs.Args()...)

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migration.NewCLI(migrator, out).Run(ctx, subcommand, positional)
}

func knownMigrateCommand(name string) bool {
	for _, c := range migration.Commands {
		if c.Name == name {
			return true
		}
	}
	return false
}

// createMigrator --db-type 与 --db-url 同时给出时直接使用，否则读取配置文件与环境变量
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL, zap.NewNop())
	}

	// 迁移只需要数据库配置，不做完整校验
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}

	logger := initLogger(cfg.Log)
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}

func printMigrateUsage(out io.Writer) {
	var b strings.Builder
	b.WriteString("Database Migration Commands\n\nUsage:\n  envsync migrate <subcommand> [options] [args]\n\nSubcommands:\n")
	for _, c := range migration.Commands {
		name := c.Name
		if c.Args != "" {
			name += " " + c.Args
		}
		fmt.Fprintf(&b, "  %-16s %s\n", name, c.Help)
	}
	b.WriteString(`
Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  envsync migrate up
  envsync migrate up --config /etc/envsync/config.yaml
  envsync migrate status --db-type sqlite --db-url "file:envsync.db?mode=rwc"
  envsync migrate steps -1
  envsync migrate force 1
`)
	fmt.Fprint(out, b.String())
}
