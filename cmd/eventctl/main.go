// Command eventctl はイベントAPIを操作するコマンドラインクライアント
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/joho/godotenv"

	"github.com/sanosuguru/campus-events/internal/client"
)

const usage = `usage: eventctl [-server URL] <command> [flags]

commands:
  list    [-search TEXT] [-category NAME]   イベント一覧（新しい順）
  show    <id>                              イベントの詳細
  image   <id> [-o FILE]                    画像を保存する
  create  -title T -description D -date YYYY-MM-DD [-category C] [-status S] [-image FILE]
  delete  <id>                              イベントを削除する
  login   -username U [-password P]         管理者の認証情報を確認する
  health                                    サーバーの死活を確認する
`

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", errorMessage(err))
		os.Exit(1)
	}
}

// errorMessage はサーバーと通信のエラーを画面と同じ文言で表示する
func errorMessage(err error) string {
	var apiErr *client.APIError
	var formErrs client.FormErrors
	if errors.As(err, &apiErr) || errors.As(err, &formErrs) ||
		errors.Is(err, client.ErrNetwork) || errors.Is(err, client.ErrFieldsRequired) {
		return client.UserMessage(err)
	}
	return err.Error()
}

func run(ctx context.Context, args []string, out io.Writer) error {
	global := flag.NewFlagSet("eventctl", flag.ContinueOnError)
	global.SetOutput(out)
	global.Usage = func() { fmt.Fprint(out, usage) }
	serverURL := global.String("server", envOr("EVENTS_API_URL", "http://localhost:5000"), "APIのベースURL")
	timeout := global.Duration("timeout", 30*time.Second, "リクエストのタイムアウト")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() == 0 {
		global.Usage()
		return errors.New("command is required")
	}

	c := client.New(*serverURL)
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "list":
		return runList(ctx, c, rest, out)
	case "show":
		return runShow(ctx, c, rest, out)
	case "image":
		return runImage(ctx, c, rest, out)
	case "create":
		return runCreate(ctx, c, rest, out)
	case "delete":
		return runDelete(ctx, c, rest, out)
	case "login":
		return runLogin(ctx, c, rest, out)
	case "health":
		if err := c.Health(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "ok")
		return nil
	default:
		global.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runList(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(out)
	search := fs.String("search", "", "タイトル・説明の部分一致")
	category := fs.String("category", "all", "カテゴリ")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list := client.NewEventList(c)
	defer list.Close()
	if err := list.Refresh(ctx); err != nil {
		return err
	}
	list.SetSearch(*search)
	list.SetCategory(*category)

	events := list.Visible()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tCATEGORY\tSTATUS\tTITLE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.Date.UTC().Format("2006-01-02"), e.Category, e.Status, e.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d of %d events\n", len(events), list.Len())
	return nil
}

func runShow(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	id, err := requireID(args)
	if err != nil {
		return err
	}
	e, err := c.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", e.ID)
	fmt.Fprintf(w, "Title\t%s\n", e.Title)
	fmt.Fprintf(w, "Description\t%s\n", e.Description)
	fmt.Fprintf(w, "Date\t%s\n", e.Date.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Category\t%s\n", e.Category)
	fmt.Fprintf(w, "Status\t%s\n", e.Status)
	if e.Image != nil {
		fmt.Fprintf(w, "Image\t%s (%d bytes) %s\n", e.Image.ContentType, e.Image.Size, c.ImageURL(e.ID))
	}
	fmt.Fprintf(w, "Version\t%d\n", e.Version)
	fmt.Fprintf(w, "Updated\t%s\n", e.UpdatedAt.UTC().Format(time.RFC3339))
	return w.Flush()
}

func runImage(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	id, err := requireID(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("image", flag.ContinueOnError)
	fs.SetOutput(out)
	output := fs.String("o", "", "保存先（省略時は <id> に拡張子を付ける）")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	img, err := c.GetImage(ctx, id)
	if err != nil {
		return err
	}
	path := *output
	if path == "" {
		path = id + mimetype.Detect(img.Data).Extension()
	}
	if err := os.WriteFile(path, img.Data, 0o644); err != nil {
		return fmt.Errorf("画像の保存に失敗: %w", err)
	}
	fmt.Fprintf(out, "saved %s (%s, %d bytes)\n", path, img.ContentType, len(img.Data))
	return nil
}

func runCreate(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(out)
	form := client.NewEventForm()
	fs.StringVar(&form.Title, "title", "", "タイトル")
	fs.StringVar(&form.Description, "description", "", "説明")
	fs.StringVar(&form.Date, "date", "", "開催日（YYYY-MM-DD）")
	fs.StringVar(&form.Category, "category", form.Category, "カテゴリ")
	fs.StringVar(&form.Status, "status", form.Status, "ステータス")
	imagePath := fs.String("image", "", "画像ファイル（JPEG/PNG）")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *imagePath != "" {
		img, err := loadImage(*imagePath)
		if err != nil {
			return err
		}
		form.Image = img
	}
	if errs := form.Validate(time.Now()); errs != nil {
		return errs
	}

	e, err := c.CreateEvent(ctx, form.Input())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %s\n", e.ID)
	return nil
}

// loadImage はファイルを読み込み、内容から Content-Type を判定する
func loadImage(path string) (*client.ImageUpload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗: %w", err)
	}
	return &client.ImageUpload{
		Filename:    filepath.Base(path),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}, nil
}

func runDelete(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	id, err := requireID(args)
	if err != nil {
		return err
	}
	if err := c.DeleteEvent(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(out, "deleted %s\n", id)
	return nil
}

func runLogin(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(out)
	username := fs.String("username", os.Getenv("EVENTCTL_USERNAME"), "ユーザー名")
	password := fs.String("password", os.Getenv("EVENTCTL_PASSWORD"), "パスワード")
	if err := fs.Parse(args); err != nil {
		return err
	}

	session := client.NewSession()
	if err := session.Login(ctx, c, *username, *password); err != nil {
		return err
	}
	fmt.Fprintf(out, "Login successful (%s)\n", session.Username())
	return nil
}

func requireID(args []string) (string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", errors.New("event id is required")
	}
	return args[0], nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
