package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Yulian302/lfusys-client/config"
	"github.com/Yulian302/lfusys-client/uploads"
)

var errUsage = errors.New("usage error")

type cli struct {
	args   []string
	stdin  io.Reader
	stdout io.Writer

	reader *bufio.Reader
}

// prompt reads one line from stdin.
func (c *cli) prompt(label string) (string, error) {
	if c.reader == nil {
		c.reader = bufio.NewReader(c.stdin)
	}
	fmt.Fprintf(c.stdout, "%s: ", label)
	line, err := c.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, c *cli) error
}

var commands []command

func init() {
	commands = []command{
		{"login", "login [-u username] [-p password]", "log in and store the session", clientCommand(cmdLogin)},
		{"logout", "logout", "forget the stored session", clientCommand(cmdLogout)},
		{"whoami", "whoami", "show the logged in user", clientCommand(cmdWhoami)},
		{"health", "health", "check the API health endpoint", clientCommand(cmdHealth)},
		{"files", "files", "list your files", clientCommand(cmdFiles)},
		{"upload", "upload <path>...", "upload files, in chunks above DIRECT_UPLOAD_LIMIT", clientCommand(cmdUpload)},
		{"download", "download [-o path] <id>", "download a file", clientCommand(cmdDownload)},
		{"rm", "rm <id>...", "delete files", clientCommand(cmdRm)},
		{"users", "users", "list users (admin)", clientCommand(cmdUsers)},
		{"create-user", "create-user [-u username] [-p password]", "create a user (admin)", clientCommand(cmdCreateUser)},
		{"delete-user", "delete-user <id>", "delete a user (admin)", clientCommand(cmdDeleteUser)},
		{"set-role", "set-role <id> <admin|user>", "change a user's role (admin)", clientCommand(cmdSetRole)},
		{"serve-dev", "serve-dev", "run the in-memory development API", cmdServeDev},
	}
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: lfusys <command> [arguments]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.usage, c.summary)
	}
	tw.Flush()
}

// clientCommand builds the client App around fn and shuts it down after.
func clientCommand(fn func(ctx context.Context, app *App, c *cli) error) func(context.Context, *cli) error {
	return func(ctx context.Context, c *cli) error {
		app, err := SetupApp(ctx, config.LoadConfig())
		if err != nil {
			return err
		}
		defer app.Shutdown(context.WithoutCancel(ctx))
		return fn(ctx, app, c)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func credentials(c *cli, name string) (string, string, error) {
	fs := newFlagSet(name)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	if err := parseFlags(fs, c.args); err != nil {
		return "", "", err
	}

	var err error
	if *username == "" {
		if *username, err = c.prompt("Username"); err != nil {
			return "", "", err
		}
	}
	if *password == "" {
		if *password, err = c.prompt("Password"); err != nil {
			return "", "", err
		}
	}
	if *username == "" || *password == "" {
		return "", "", fmt.Errorf("%w: username and password are required", errUsage)
	}
	return *username, *password, nil
}

func cmdLogin(ctx context.Context, app *App, c *cli) error {
	username, password, err := credentials(c, "login")
	if err != nil {
		return err
	}
	user, err := app.Services.Auth.Login(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "logged in as %s (%s)\n", user.Username, user.Role)
	return nil
}

func cmdLogout(ctx context.Context, app *App, c *cli) error {
	if err := app.Services.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "logged out")
	return nil
}

func cmdWhoami(ctx context.Context, app *App, c *cli) error {
	user, err := app.Services.Auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s\t%s\t%s\tadmin=%t\n", user.ID, user.Username, user.Role, user.IsAdmin())
	return nil
}

func cmdHealth(ctx context.Context, app *App, c *cli) error {
	status, err := app.Services.Auth.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, status)
	return nil
}

func cmdFiles(ctx context.Context, app *App, c *cli) error {
	files, err := app.Services.Files.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tTYPE\tCREATED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			f.ID, f.Filename, f.Size, f.ContentType,
			time.Unix(f.CreatedAt, 0).Format(time.RFC3339))
	}
	return tw.Flush()
}

func cmdUpload(ctx context.Context, app *App, c *cli) error {
	if len(c.args) == 0 {
		return fmt.Errorf("%w: upload needs at least one path", errUsage)
	}
	for _, path := range c.args {
		if err := uploadOne(ctx, app, c, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func uploadOne(ctx context.Context, app *App, c *cli, path string) error {
	src, err := uploads.OpenFile(path)
	if err != nil {
		return err
	}
	defer src.Close()

	file, err := app.Services.Files.Upload(ctx, src, uploads.ProgressPrinter(c.stdout, src.Name()))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "uploaded %s as %s (%d bytes)\n", file.Filename, file.ID, file.Size)
	return nil
}

func cmdDownload(ctx context.Context, app *App, c *cli) error {
	fs := newFlagSet("download")
	out := fs.String("o", "", "output path")
	if err := parseFlags(fs, c.args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: download needs exactly one file id", errUsage)
	}
	id := fs.Arg(0)

	path := *out
	if path == "" {
		meta, err := app.Services.Files.Get(ctx, id)
		if err != nil {
			return err
		}
		path = filepath.Base(meta.Filename)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	n, err := app.Services.Files.Download(ctx, id, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	fmt.Fprintf(c.stdout, "saved %s (%d bytes)\n", path, n)
	return nil
}

func cmdRm(ctx context.Context, app *App, c *cli) error {
	if len(c.args) == 0 {
		return fmt.Errorf("%w: rm needs at least one file id", errUsage)
	}
	for _, id := range c.args {
		if err := app.Services.Files.Delete(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		fmt.Fprintf(c.stdout, "deleted %s\n", id)
	}
	return nil
}

func cmdUsers(ctx context.Context, app *App, c *cli) error {
	users, err := app.Services.Admin.ListUsers(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Username, u.Role)
	}
	return tw.Flush()
}

func cmdCreateUser(ctx context.Context, app *App, c *cli) error {
	username, password, err := credentials(c, "create-user")
	if err != nil {
		return err
	}
	user, err := app.Services.Admin.CreateUser(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "created %s (%s)\n", user.Username, user.ID)
	return nil
}

func cmdDeleteUser(ctx context.Context, app *App, c *cli) error {
	if len(c.args) != 1 {
		return fmt.Errorf("%w: delete-user needs exactly one user id", errUsage)
	}
	if err := app.Services.Admin.DeleteUser(ctx, c.args[0]); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "deleted user %s\n", c.args[0])
	return nil
}

func cmdSetRole(ctx context.Context, app *App, c *cli) error {
	if len(c.args) != 2 {
		return fmt.Errorf("%w: set-role needs a user id and a role", errUsage)
	}
	user, err := app.Services.Admin.UpdateUserRole(ctx, c.args[0], c.args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "%s is now %s\n", user.Username, user.Role)
	return nil
}

func cmdServeDev(ctx context.Context, c *cli) error {
	app, err := SetupDevServer(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	defer app.Shutdown(context.WithoutCancel(ctx))

	router := BuildRouter(app)
	fmt.Fprintf(c.stdout, "dev API listening on %s\n", app.Config.DevServerConfig.Addr)
	return app.Run(router)
}
