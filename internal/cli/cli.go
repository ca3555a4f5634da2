// Пакет cli — команды pocctl поверх той же страницы списка PoC, что и веб-консоль.
// Токен хранится в файле; истёкшая авторизация удаляет его.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/poc-admin/internal/auth"
	"github.com/bigkaa/poc-admin/internal/domain/model"
	"github.com/bigkaa/poc-admin/internal/importer"
	"github.com/bigkaa/poc-admin/internal/page"
	"github.com/bigkaa/poc-admin/internal/pocclient"
	"github.com/bigkaa/poc-admin/internal/selection"
	"github.com/bigkaa/poc-admin/internal/table"
)

// ErrAuthExpired — PoC API отклонил токен, нужен повторный вход.
var ErrAuthExpired = errors.New("авторизация истекла, выполните pocctl login")

// API — операции PoC API, нужные командам.
type API interface {
	page.RemoteAPI
	Login(ctx context.Context, username, password string) (string, error)
}

// Env — зависимости команд.
type Env struct {
	API     API
	Tokens  auth.TokenStore
	Options page.Options
	In      io.Reader
	Out     io.Writer
	Logger  *slog.Logger
}

// NewRootCommand собирает дерево команд pocctl.
func NewRootCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "pocctl",
		Short:         "Управление PoC-записями из командной строки",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(env.In)
	root.SetOut(env.Out)

	root.AddCommand(
		newLoginCommand(env),
		newListCommand(env),
		newShowCommand(env),
		newDeleteCommand(env),
		newBulkDeleteCommand(env),
		newImportCommand(env),
	)
	return root
}

// newPage создаёт страницу на одну команду.
func (e *Env) newPage() *page.ListPage {
	return page.New(e.API, e.Tokens, e.Options, e.Logger)
}

// wrapAuth заменяет ошибку авторизации понятным сообщением.
func wrapAuth(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pocclient.ErrUnauthorized) || errors.Is(err, auth.ErrNoToken) {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	return err
}

func newLoginCommand(env *Env) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Войти в PoC API и сохранить токен",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(cmd.OutOrStdout(), reader, "Пользователь: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd.OutOrStdout(), reader, "Пароль: "); err != nil {
					return err
				}
			}
			if username == "" || password == "" {
				return errors.New("имя пользователя и пароль обязательны")
			}

			token, err := env.API.Login(cmd.Context(), username, password)
			if err != nil {
				return fmt.Errorf("вход: %w", err)
			}
			if err := env.Tokens.Set(cmd.Context(), token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Вход выполнен: %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "имя пользователя")
	cmd.Flags().StringVarP(&password, "password", "p", "", "пароль (если не задан, будет запрошен)")
	return cmd
}

func newListCommand(env *Env) *cobra.Command {
	var q table.Query

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Показать страницу списка PoC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := env.newPage()
			defer p.Close()

			if q.PageSize == 0 {
				q.PageSize = env.Options.Table.DefaultPageSize
			}
			if err := p.Load(cmd.Context(), q); err != nil {
				return wrapAuth(err)
			}

			st := p.Table().Snapshot()
			printRecords(cmd.OutOrStdout(), st.Rows)
			fmt.Fprintf(cmd.OutOrStdout(), "\nСтраница %d из %d, всего %d\n",
				st.Query.Page, totalPages(st.Total, st.Query.PageSize), st.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&q.Filter, "filter", "f", "", "поиск по имени")
	cmd.Flags().IntVar(&q.Page, "page", 1, "номер страницы")
	cmd.Flags().IntVar(&q.PageSize, "size", 0, "размер страницы")
	return cmd
}

func newShowCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Показать тело PoC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := env.newPage()
			defer p.Close()

			if _, err := p.Edit(cmd.Context(), model.Record{ID: args[0]}); err != nil {
				return err
			}
			if err := p.WaitContent(cmd.Context()); err != nil {
				return wrapAuth(err)
			}
			draft, _ := p.Draft()
			if draft.Content != nil {
				fmt.Fprintln(cmd.OutOrStdout(), *draft.Content)
			}
			return nil
		},
	}
}

func newDeleteCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Удалить PoC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := env.newPage()
			defer p.Close()

			if err := p.Delete(cmd.Context(), args[0]); err != nil {
				return wrapAuth(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Удалён: %s\n", args[0])
			return nil
		},
	}
}

func newBulkDeleteCommand(env *Env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "bulk-delete [ID...]",
		Short: "Удалить несколько PoC",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := env.newPage()
			defer p.Close()

			var confirm page.Confirmer = page.Confirmed
			if !yes {
				confirm = promptConfirmer(cmd.OutOrStdout(), cmd.InOrStdin(), len(args))
			}

			src := staticSource(args)
			ids, err := p.BulkDelete(cmd.Context(), src, confirm)
			if err != nil {
				return wrapAuth(err)
			}
			if ids == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Удаление отменено")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Удалено: %d\n", len(ids))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "не спрашивать подтверждение")
	return cmd
}

func newImportCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Импортировать PoC из файла",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("чтение файла: %w", err)
			}

			p := env.newPage()
			defer p.Close()

			res, err := p.Import(cmd.Context(), importer.File{Name: filepath.Base(args[0]), Data: data})
			if err != nil {
				return err
			}
			switch res.Outcome {
			case model.ImportOutcomeSuccess:
				fmt.Fprintf(cmd.OutOrStdout(), "Импортирован %s: %s\n", res.FileName, res.Message)
				return nil
			case model.ImportOutcomeAuthExpired:
				return fmt.Errorf("%w: %s", ErrAuthExpired, res.Message)
			default:
				return fmt.Errorf("импорт %s (%s): %s", res.FileName, res.Outcome, res.Message)
			}
		},
	}
}

// staticSource — выбор из ID командной строки (строк таблицы у CLI нет).
func staticSource(ids []string) selection.SourceFunc[model.Record] {
	recs := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, model.Record{ID: id})
	}
	return func() []model.Record { return recs }
}

// promptConfirmer спрашивает подтверждение в терминале.
func promptConfirmer(out io.Writer, in io.Reader, n int) page.Confirmer {
	return func(context.Context) (bool, error) {
		answer, err := prompt(out, bufio.NewReader(in), fmt.Sprintf("Удалить PoC (%d)? [y/N]: ", n))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes", "д", "да":
			return true, nil
		}
		return false, nil
	}
}

// prompt выводит вопрос и читает строку. EOF без ввода — пустой ответ.
func prompt(out io.Writer, r *bufio.Reader, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("чтение ввода: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printRecords(out io.Writer, rows []model.Record) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "PoC не найдены")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLEVEL\tTIME")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Level, formatTime(r.Time))
	}
	tw.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func totalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
