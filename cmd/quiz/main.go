package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-runner/internal/admin"
	"github.com/stemsi/exstem-runner/internal/apiclient"
	"github.com/stemsi/exstem-runner/internal/config"
	"github.com/stemsi/exstem-runner/internal/filter"
	"github.com/stemsi/exstem-runner/internal/logger"
	"github.com/stemsi/exstem-runner/internal/model"
	"github.com/stemsi/exstem-runner/internal/results"
	"github.com/stemsi/exstem-runner/internal/service"
	"github.com/stemsi/exstem-runner/internal/session"
	"github.com/stemsi/exstem-runner/internal/store"
	"github.com/stemsi/exstem-runner/internal/validator"
	"golang.org/x/term"
)

const usage = `Usage: quiz <command> [flags]

Commands:
  login       Log in (prompts for the password)
  register    Create a student account
  logout      Forget the stored session
  whoami      Show the logged-in user
  catalog     List categories, subjects and topics
  start       Start a new test
  resume      Resume a test with saved progress [id]
  results     List past tests, or show one [id]
  users       (admin) List users
  questions   (admin) List questions
`

// app wires the same services the HTTP runner uses, in-process.
type app struct {
	log      zerolog.Logger
	in       *bufio.Reader
	holder   *session.Holder
	selector *filter.Selector
	hub      *service.Hub
	runs     *service.RunService
	results  *results.Service
	admin    *admin.Service
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	// The terminal is the UI; only warnings reach stderr unless asked for more.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	log := logger.Setup(level, cfg.LogFormat)

	validator.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── Open Local Store ──────────────────────────────────────────────
	st, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	a := newApp(ctx, cfg, st, log)
	defer a.runs.CloseAll()

	cmd, args := os.Args[1], os.Args[2:]
	if err := a.dispatch(ctx, cmd, args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apiclient.Message(err))
		a.runs.CloseAll()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) *app {
	client := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Log:     log,
	})
	holder := session.NewHolder(client, st, session.NavigatorFunc(func() {
		fmt.Fprintln(os.Stderr, "\nYour session has ended. Run `quiz login` to continue.")
	}), log)
	client.SetTokenSource(holder)
	client.SetUnauthorizedHandler(holder.HandleUnauthorized)

	selector := filter.NewSelector(client, log)
	hub := service.NewHub(log)

	return &app{
		log:      log,
		in:       bufio.NewReader(os.Stdin),
		holder:   holder,
		selector: selector,
		hub:      hub,
		runs: service.NewRunService(ctx, client, selector, hub, service.RunOptions{
			Store:            st,
			SnapshotTTL:      cfg.SnapshotTTL,
			BatchConcurrency: cfg.BatchConcurrency,
		}, log),
		results: results.NewService(client, log),
		admin:   admin.NewService(client, holder, log),
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "register":
		return a.register(ctx, args)
	case "logout":
		a.holder.Logout(ctx)
		fmt.Println("Logged out.")
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}

	if _, err := a.holder.Restore(ctx); err != nil {
		return fmt.Errorf("not logged in, run `quiz login`: %w", err)
	}

	switch cmd {
	case "whoami":
		printUser(a.holder.User())
		return nil
	case "catalog":
		return a.catalog(ctx)
	case "start":
		return a.start(ctx, args)
	case "resume":
		return a.resume(ctx, args)
	case "results":
		return a.showResults(ctx, args)
	case "users":
		return a.users(ctx, args)
	case "questions":
		return a.questions(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// ─── Auth ───────────────────────────────────────────────────────────

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	_ = fs.Parse(args)

	if *email == "" {
		*email = a.prompt("Email: ")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	user, err := a.holder.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", user.Name, user.Email)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	_ = fs.Parse(args)

	if *name == "" {
		*name = a.prompt("Name: ")
	}
	if *email == "" {
		*email = a.prompt("Email: ")
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Repeat password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := a.holder.Register(ctx, *name, *email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Welcome, %s! You are logged in.\n", user.Name)
	return nil
}

// ─── Tests ──────────────────────────────────────────────────────────

func (a *app) catalog(ctx context.Context) error {
	cat, err := a.selector.Catalog(ctx)
	if err != nil {
		return err
	}
	printCatalog(cat)
	return nil
}

func (a *app) start(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	var cr model.Criteria
	fs.StringVar(&cr.Category, "category", "", "category name")
	fs.StringVar(&cr.Subject, "subject", "", "subject name")
	fs.StringVar(&cr.Topic, "topic", "", "topic name")
	difficulty := fs.String("difficulty", "", "easy, medium or hard")
	status := fs.String("status", "", "all, unattempted, attempted, incorrect or skipped")
	count := fs.Int("count", 10, "number of questions")
	duration := fs.Duration("time", 0, "time limit, e.g. 20m (0 for untimed)")
	_ = fs.Parse(args)

	cr.Difficulty = model.Difficulty(*difficulty)
	cr.Status = model.QuestionStatus(*status)

	pool, err := a.selector.Preview(ctx, cr)
	if err != nil {
		return err
	}
	fmt.Printf("%d question(s) match.\n", pool.Total)

	r, err := a.runs.Start(ctx, cr, *count, int(duration.Round(time.Second).Seconds()))
	if err != nil {
		return err
	}
	return a.play(ctx, r)
}

func (a *app) resume(ctx context.Context, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		active, err := a.runs.Active(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return errors.New("no test in progress; start one with `quiz start`")
		}
		if err != nil {
			return err
		}
		id = active
	}

	r, err := a.runs.Resume(ctx, id)
	if err != nil {
		return err
	}
	return a.play(ctx, r)
}

func (a *app) showResults(ctx context.Context, args []string) error {
	if len(args) > 0 {
		sum, err := a.results.Detail(ctx, args[0], nil)
		if err != nil {
			return err
		}
		printSummary(sum, true)
		return nil
	}

	entries, err := a.results.History(ctx)
	if err != nil {
		return err
	}
	printHistory(entries)
	return nil
}

// ─── Admin ──────────────────────────────────────────────────────────

func listFlags(name string, args []string) (*flag.FlagSet, *admin.Query) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	q := &admin.Query{}
	fs.StringVar(&q.Search, "search", "", "search term")
	fs.StringVar(&q.SortBy, "sort", "", "sort field")
	fs.StringVar(&q.Order, "order", "asc", "asc or desc")
	fs.IntVar(&q.Page, "page", 1, "page number")
	fs.IntVar(&q.PerPage, "per-page", 20, "rows per page")
	return fs, q
}

func (a *app) users(ctx context.Context, args []string) error {
	fs, q := listFlags("users", args)
	_ = fs.Parse(args)

	users, page, err := a.admin.ListUsers(ctx, *q)
	if err != nil {
		return err
	}
	printUsers(users, page)
	return nil
}

func (a *app) questions(ctx context.Context, args []string) error {
	fs, q := listFlags("questions", args)
	var cr model.Criteria
	fs.StringVar(&cr.Category, "category", "", "category name")
	fs.StringVar(&cr.Subject, "subject", "", "subject name")
	fs.StringVar(&cr.Topic, "topic", "", "topic name")
	difficulty := fs.String("difficulty", "", "easy, medium or hard")
	_ = fs.Parse(args)
	cr.Difficulty = model.Difficulty(*difficulty)

	qs, page, err := a.admin.ListQuestions(ctx, cr, *q)
	if err != nil {
		return err
	}
	printQuestions(qs, page)
	return nil
}

// ─── Input ──────────────────────────────────────────────────────────

func (a *app) prompt(label string) string {
	fmt.Print(label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func readPassword(label string) (string, error) {
	fmt.Print(label)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // Newline after password input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
