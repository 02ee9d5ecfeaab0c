package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"cdm/internal/webclient"
)

const defaultServerURL = "http://localhost:8080"

// ErrUsage is returned for unknown commands and bad arguments.
var ErrUsage = errors.New("usage error")

const usage = `usage: cdmctl [-server URL] [-session FILE] [-v] <command> [args]

commands:
  register                  create an account and sign in
  login                     sign in
  logout                    revoke the current token and forget it
  whoami                    show the signed-in user
  profile                   show your profile
  update-profile [flags]    change -username, -nickname or -preferences
  check-username <name>     check whether a username is free
  avatar <file>             upload a .jpg, .jpeg or .png avatar (max 2MB)
`

// App runs cdmctl commands against the API.
type App struct {
	state    *webclient.AuthState
	auth     *webclient.AuthClient
	profiles *webclient.ProfileClient
	prompt   *prompter
	out      io.Writer
	log      *zap.Logger
}

// NewApp creates an App around an API client.
func NewApp(client *webclient.Client, in io.Reader, out io.Writer, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		state:    client.State(),
		auth:     webclient.NewAuthClient(client),
		profiles: webclient.NewProfileClient(client),
		prompt:   newPrompter(in, out),
		out:      out,
		log:      log,
	}
}

// Run parses global flags, builds the client and dispatches the command.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("cdmctl", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(stdout, usage) }

	server := fs.String("server", envOr("CDM_API_URL", defaultServerURL), "API base URL")
	session := fs.String("session", os.Getenv("CDM_SESSION_FILE"), "session file (default: user config dir)")
	verbose := fs.Bool("v", false, "log requests to stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	path := *session
	if path == "" {
		var err error
		if path, err = webclient.DefaultFileStoragePath(); err != nil {
			return fmt.Errorf("locate session file: %w", err)
		}
	}

	log := zap.NewNop()
	if *verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		log = dev
		defer func() { _ = log.Sync() }()
	}

	state := webclient.NewAuthState(webclient.NewFileStorage(path))
	client := webclient.NewClient(*server, state, webclient.WithLogger(log))
	return NewApp(client, stdin, stdout, log).Execute(ctx, fs.Args())
}

// Execute runs a single command.
func (a *App) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.Register(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "profile":
		return a.Profile(ctx)
	case "update-profile":
		return a.UpdateProfile(ctx, rest)
	case "check-username":
		if len(rest) != 1 {
			return fmt.Errorf("%w: check-username takes one argument", ErrUsage)
		}
		return a.CheckUsername(ctx, rest[0])
	case "avatar":
		if len(rest) != 1 {
			return fmt.Errorf("%w: avatar takes one file argument", ErrUsage)
		}
		return a.Avatar(ctx, rest[0])
	case "help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// Describe renders err for the terminal, listing validation messages per field.
func Describe(err error) string {
	var apiErr *webclient.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if len(apiErr.ValidationErrors) == 0 {
		return apiErr.Message
	}

	fields := make([]string, 0, len(apiErr.ValidationErrors))
	for f := range apiErr.ValidationErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var b strings.Builder
	b.WriteString(apiErr.Message)
	for _, f := range fields {
		for _, msg := range apiErr.ValidationErrors[f] {
			fmt.Fprintf(&b, "\n  %s: %s", f, msg)
		}
	}
	return b.String()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
