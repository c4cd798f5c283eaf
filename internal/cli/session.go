package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"

	"github.com/roach88/gridsync/internal/engine"
	"github.com/roach88/gridsync/internal/remote/httpstore"
	"github.com/roach88/gridsync/internal/row"
	"github.com/roach88/gridsync/internal/schema"
)

// SessionOptions holds flags for the session command.
type SessionOptions struct {
	*RootOptions
	URL      string
	Grid     string
	Dataset  string
	IDField  string
	Token    string
	Autosave time.Duration
}

const sessionHelp = `commands:
  list                      show rows with their status
  set <id> <field> <value>  edit a cell (quote values with spaces)
  add                       append a new row
  del <id>                  delete a row
  save                      save pending changes now
  discard                   drop pending changes
  status                    show pending changes and autosave state
  reload                    re-read the dataset, dropping pending changes
  help                      show this help
  quit                      save pending changes and exit`

// NewSessionCommand creates the session command.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Edit a remote dataset interactively",
		Long: `Open a line-oriented editing session against a batch API server.

Edits are buffered locally and saved in batches: automatically once no cell
has been committed for the autosave window, or on "save". "discard" restores
the last saved state.

` + sessionHelp + `

Example:
  gridsync session --grid ./grids/karyawan.cue --url http://localhost:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "http://localhost:8080", "batch API base URL")
	cmd.Flags().StringVar(&opts.Grid, "grid", "", "grid definition (.cue file or directory)")
	cmd.Flags().StringVar(&opts.Dataset, "dataset", "", "dataset name (overrides the grid name)")
	cmd.Flags().StringVar(&opts.IDField, "id-field", "", "JSON field carrying row ids (overrides the grid)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "bearer token (env "+EnvToken+")")
	cmd.Flags().DurationVar(&opts.Autosave, "autosave", 0, "autosave window (overrides the grid)")

	return cmd
}

func runSession(opts *SessionOptions, cmd *cobra.Command) error {
	grid, err := loadGrid(opts.Grid, opts.Dataset, opts.IDField)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Autosave > 0 {
		grid.Autosave = opts.Autosave
	}

	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	clientOpts := []httpstore.Option{
		httpstore.WithIDField(grid.IDField),
		httpstore.WithLogger(logger),
	}
	if token := firstNonEmpty(opts.Token, os.Getenv(EnvToken)); token != "" {
		clientOpts = append(clientOpts, httpstore.WithStaticToken(token))
	}
	client := httpstore.New(opts.URL, grid.Name, clientOpts...)

	s := NewSession(cmd.OutOrStdout(), grid)
	eng := engine.New(client,
		engine.WithAutosaveDelay(grid.Autosave),
		engine.WithDraftDefaults(grid.Defaults()),
		engine.WithNotifier(s),
		engine.WithLogger(logger),
		engine.WithBaseContext(ctx),
	)
	s.Attach(eng)

	if err := eng.Load(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to load rows", err)
	}
	s.printf("loaded %d rows of %s from %s (autosave %s)\n", len(eng.Rows()), grid.Name, opts.URL, grid.Autosave)

	in := cmd.InOrStdin()
	prompt := false
	if f, ok := in.(*os.File); ok {
		prompt = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if err := s.Run(ctx, in, prompt); err != nil {
		return WrapExitError(ExitFailure, "session ended with unsaved changes", err)
	}
	return nil
}

// Session is a line-oriented front end for an engine. It issues the same
// gestures a grid widget would and prints save notifications as they
// arrive, including those of autosaves fired from the timer goroutine.
type Session struct {
	mu       sync.Mutex
	out      io.Writer
	grid     *schema.Grid
	eng      *engine.Engine
	lastSave time.Time
	now      func() time.Time
}

var _ engine.Notifier = (*Session)(nil)

// NewSession creates a session writing to out. Attach must be called
// before Exec or Run.
func NewSession(out io.Writer, grid *schema.Grid) *Session {
	return &Session{out: out, grid: grid, now: time.Now}
}

// Attach binds the engine the session drives. The engine is built after
// the session because the session is its notifier.
func (s *Session) Attach(eng *engine.Engine) {
	s.eng = eng
}

// SaveSucceeded implements engine.Notifier.
func (s *Session) SaveSucceeded() {
	s.mu.Lock()
	s.lastSave = s.now()
	s.mu.Unlock()
	s.printf("✓ saved\n")
}

// SaveFailed implements engine.Notifier.
func (s *Session) SaveFailed(err error) {
	s.printf("✗ save failed: %v\n", err)
}

// Run reads commands from in until quit or end of input. Pending changes
// are saved before returning; a failure of that last save is returned.
func (s *Session) Run(ctx context.Context, in io.Reader, prompt bool) error {
	reader := bufio.NewReader(in)
	for {
		if prompt {
			s.printf("> ")
		}

		line, readErr := reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			quit, err := s.Exec(ctx, line)
			if err != nil {
				s.printf("error: %v\n", err)
			}
			if quit {
				return s.flush(ctx)
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				s.printf("error: %v\n", readErr)
			}
			return s.flush(ctx)
		}
	}
}

// Exec runs one command line. It reports whether the session should end.
func (s *Session) Exec(ctx context.Context, line string) (bool, error) {
	args, err := shellwords.Parse(strings.TrimSpace(line))
	if err != nil {
		return false, fmt.Errorf("parse command: %w", err)
	}
	if len(args) == 0 {
		return false, nil
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "list", "ls":
		s.list()
	case "set":
		if len(rest) < 3 {
			return false, errors.New("usage: set <id> <field> <value>")
		}
		return false, s.set(rest[0], rest[1], strings.Join(rest[2:], " "))
	case "add":
		r, err := s.eng.OnRowAddRequested()
		if err != nil {
			return false, err
		}
		s.printf("added %s\n", r.ID)
	case "del", "delete":
		if len(rest) != 1 {
			return false, errors.New("usage: del <id>")
		}
		if err := s.eng.OnRowDeleteRequested(row.ID(rest[0])); err != nil {
			return false, err
		}
		s.printf("%s marked %s\n", rest[0], s.eng.RowStatus(row.ID(rest[0])))
	case "save":
		if !s.eng.CanSave() {
			s.printf("nothing to save\n")
			return false, nil
		}
		if err := s.eng.OnSaveRequested(ctx); errors.Is(err, engine.ErrConcurrentSaveIgnored) {
			s.printf("a save is already in progress\n")
		}
	case "discard":
		if !s.eng.CanDiscard() {
			s.printf("nothing to discard\n")
			return false, nil
		}
		if err := s.eng.OnDiscardRequested(); err != nil {
			return false, err
		}
		s.printf("changes discarded\n")
	case "status":
		s.status()
	case "reload":
		if s.eng.IsDirty() {
			s.printf("dropping pending changes\n")
		}
		if err := s.eng.Load(ctx); err != nil {
			return false, err
		}
		s.printf("loaded %d rows\n", len(s.eng.Rows()))
	case "help", "?":
		s.printf("%s\n", sessionHelp)
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

func (s *Session) set(id, field, text string) error {
	if field == s.grid.IDField {
		return fmt.Errorf("column %s is read-only", field)
	}
	if len(s.grid.Columns) > 0 {
		col, ok := s.grid.Column(field)
		if !ok {
			return fmt.Errorf("unknown column %q", field)
		}
		if !col.Editable {
			return fmt.Errorf("column %s is read-only", field)
		}
	}

	rowID := row.ID(id)
	cur, ok := s.eng.Row(rowID)
	if !ok {
		return fmt.Errorf("row %s: %w", id, engine.ErrUnknownRow)
	}
	s.eng.OnCellEditStarted()
	defer s.eng.OnCellEditStopped()
	return s.eng.OnCellCommitted(rowID, cur.With(field, row.ParseText(text)), cur)
}

func (s *Session) list() {
	rows := s.eng.Rows()
	fields, labels := s.columns(rows)

	s.mu.Lock()
	defer s.mu.Unlock()

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tSTATUS", strings.ToUpper(s.grid.IDField))
	for _, l := range labels {
		fmt.Fprintf(tw, "\t%s", l)
	}
	fmt.Fprintln(tw)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s", r.ID, s.eng.RowStatus(r.ID))
		for _, f := range fields {
			fmt.Fprintf(tw, "\t%s", row.Text(r.Get(f)))
		}
		fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

// columns returns the fields to display and their headers: the grid's
// columns when it has any, otherwise every field seen in rows, sorted.
func (s *Session) columns(rows []row.Row) (fields, labels []string) {
	for _, c := range s.grid.Columns {
		if c.Field != s.grid.IDField {
			fields = append(fields, c.Field)
			labels = append(labels, c.Label)
		}
	}
	if len(fields) > 0 {
		return fields, labels
	}

	seen := make(map[string]bool)
	for _, r := range rows {
		for f := range r.Fields {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}
	sort.Strings(fields)
	return fields, fields
}

func (s *Session) status() {
	p := s.eng.Pending()
	dirty, saving, armed := s.eng.IsDirty(), s.eng.Saving(), s.eng.AutosavePending()

	s.mu.Lock()
	last := "never"
	if !s.lastSave.IsZero() {
		last = humanize.RelTime(s.lastSave, s.now(), "ago", "from now")
	}
	s.mu.Unlock()

	s.printf("dirty: %t  saving: %t  autosave armed: %t\n", dirty, saving, armed)
	s.printf("pending: %d create, %d update, %d delete\n", p.Creates, p.Updates, p.Deletes)
	s.printf("last save: %s\n", last)
}

// flush saves pending changes before the session ends.
func (s *Session) flush(ctx context.Context) error {
	if !s.eng.IsDirty() {
		return nil
	}
	s.printf("saving pending changes before exit\n")
	return s.eng.OnSaveRequested(ctx)
}

func (s *Session) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
