package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/shelf/internal/catalog"
	"github.com/pders01/shelf/internal/config"
	"github.com/pders01/shelf/internal/debuglog"
	"github.com/pders01/shelf/internal/feed"
	"github.com/pders01/shelf/internal/gutendex"
	"github.com/pders01/shelf/internal/media"
	"github.com/pders01/shelf/internal/search"
	"github.com/pders01/shelf/internal/storage"
	"github.com/pders01/shelf/internal/tui"
)

// Version is the version of the application, set at build time
var Version = "dev"

type startOptions struct {
	configPath string
	dbPath     string
	genre      string
	query      string
	languages  []string
	quiet      bool
	logLevel   string
	noSession  bool
	refresh    bool
}

var opts startOptions

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Browse and read the Project Gutenberg catalog from the terminal",
	Long: `shelf pages through the Gutendex catalog of Project Gutenberg books.
Pick a genre or search by title and author, then open a book in your
browser, PDF viewer or pager.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(opts)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("shelf %s\n", Version)
		fmt.Println("Project Gutenberg catalog browser")
		fmt.Println("github.com/pders01/shelf")
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configGenCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write the default configuration to ~/.config/shelf/config.toml",
	Run: func(cmd *cobra.Command, args []string) {
		home, _ := os.UserHomeDir()
		configFile := filepath.Join(home, ".config", "shelf", "config.toml")

		if err := config.GenerateDefaultConfig(configFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default configuration at: %s\n", configFile)
	},
}

var genresCmd = &cobra.Command{
	Use:   "genres",
	Short: "List the built-in genres usable with --genre",
	Run: func(cmd *cobra.Command, args []string) {
		printGenres(os.Stdout)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	f.StringVar(&opts.dbPath, "db", "", "Path to database file (overrides config)")
	f.StringVarP(&opts.genre, "genre", "g", "", "Open the book list for a genre (id or topic)")
	f.StringVarP(&opts.query, "search", "s", "", "Open the book list with a search query")
	f.StringSliceVarP(&opts.languages, "lang", "l", nil, "Restrict results to these language codes")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Skip startup banner")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error or off")
	f.BoolVar(&opts.noSession, "no-session", false, "Do not restore the previous session's filters")
	f.BoolVar(&opts.refresh, "refresh", false, "Ignore the cached new releases feed")

	configCmd.AddCommand(configGenCmd)
	rootCmd.AddCommand(versionCmd, configCmd, genresCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(o startOptions) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if o.dbPath != "" {
		cfg.Database.Path = config.ExpandPath(o.dbPath)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return fmt.Errorf("setting up log: %w", err)
	}
	defer debuglog.Close()

	if !o.quiet {
		tui.ShowBanner(Version)
	}
	tui.ApplyTheme(cfg.UI.Colors)

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return err
	}
	defer store.Close()

	client := gutendex.NewClient(cfg)

	browser := catalog.NewBrowser(
		catalog.NewStore(client),
		catalog.WithSearchDelay(cfg.Search.DebounceDelay),
		catalog.WithMaxQueryLength(cfg.Search.MaxQueryLength),
	)
	defer browser.Close()

	manager := feed.NewManager(store, client, cfg)
	manager.SetForceRefresh(o.refresh)
	releases := catalog.NewBrowser(catalog.NewStore(manager))
	defer releases.Close()

	searcher, err := search.New(store, cfg.Database.SearchIndex)
	if err != nil {
		debuglog.Warnf("history index unavailable, falling back to scan: %v", err)
	}
	if c, ok := searcher.(io.Closer); ok {
		defer c.Close()
	}

	app := tui.NewApp(tui.Options{
		Config:   cfg,
		Browser:  browser,
		Releases: releases,
		Store:    store,
		Searcher: searcher,
		Launcher: media.NewLauncher(cfg),
		Lookup:   client,
		Initial:  initialFilters(o, cfg, store),
	})
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// initialFilters picks the starting filters: explicit flags, then the saved
// session, then the configured default languages.
func initialFilters(o startOptions, cfg *config.Config, store *storage.Store) catalog.Filters {
	langs := o.languages
	if len(langs) == 0 {
		langs = cfg.Catalog.Languages
	}

	if o.genre != "" || strings.TrimSpace(o.query) != "" {
		return catalog.Filters{
			Genre:       resolveGenre(o.genre),
			SearchQuery: strings.TrimSpace(o.query),
			Languages:   langs,
		}
	}

	if !o.noSession && store != nil {
		sess, err := store.LoadSession()
		switch {
		case err == nil:
			return sess.Filters.Clone()
		case !errors.Is(err, storage.ErrNotFound):
			debuglog.Warnf("loading session: %v", err)
		}
	}

	return catalog.Filters{Languages: langs}
}

// resolveGenre maps a genre id or label to its topic. Unknown names are used
// as topics verbatim.
func resolveGenre(name string) string {
	name = strings.TrimSpace(name)
	for _, g := range catalog.Genres() {
		if strings.EqualFold(name, g.ID) || strings.EqualFold(name, g.Label) || strings.EqualFold(name, g.Topic) {
			return g.Topic
		}
	}
	return name
}

func printGenres(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tTOPIC\tDESCRIPTION")
	for _, g := range catalog.Genres() {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", g.ID, g.Icon, g.Label, g.Topic, g.Description)
	}
	tw.Flush()
}
