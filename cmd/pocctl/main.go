// pocctl — CLI управления PoC-записями. Использует ту же страницу списка,
// что и веб-консоль; токен хранится в ~/.config/pocctl/token (PA_TOKEN_FILE).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/cli"
	"github.com/bigkaa/poc-admin/internal/config"
	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/page"
	"github.com/bigkaa/poc-admin/internal/pocclient"
	"github.com/bigkaa/poc-admin/internal/table"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	// Логи CLI — в stderr, stdout занят выводом команд.
	// Без PA_LOG_LEVEL выводятся только предупреждения.
	level := cfg.LogLevel
	if os.Getenv("PA_LOG_LEVEL") == "" {
		level = slog.LevelWarn
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	tokenPath := os.Getenv("PA_TOKEN_FILE")
	if tokenPath == "" {
		if tokenPath, err = auth.DefaultTokenPath(); err != nil {
			return err
		}
	}
	tokens := auth.NewFileStore(tokenPath)

	codec, err := cfg.SeverityCodec()
	if err != nil {
		return err
	}
	client, err := pocclient.New(pocclient.Options{
		BaseURL:         cfg.PocAPIURL,
		CACertPath:      cfg.PocAPICACertPath,
		Timeout:         cfg.PocAPITimeout,
		SuccessCode:     cfg.SuccessCode,
		AuthExpiredCode: cfg.AuthExpiredCode,
		Codec:           codec,
	}, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(&cli.Env{
		API:    client.WithTokenProvider(tokens.Token),
		Tokens: tokens,
		Options: page.Options{
			Table: table.Options{
				PageSizes:       cfg.PageSizes,
				DefaultPageSize: cfg.DefaultPageSize,
				FetchTimeout:    cfg.FetchTimeout,
			},
			Import: importer.Options{
				SuccessCode:     cfg.SuccessCode,
				AuthExpiredCode: cfg.AuthExpiredCode,
				Timeout:         cfg.ImportTimeout,
				MaxFileSize:     cfg.ImportMaxFileSize,
			},
			DetailTimeout: cfg.FetchTimeout,
		},
		In:     os.Stdin,
		Out:    os.Stdout,
		Logger: logger,
	})
	return root.ExecuteContext(ctx)
}
