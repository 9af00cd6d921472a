// ABOUTME: Entry point for the Airtruct admin console.
// ABOUTME: Wires store, coordinator client, editor sessions and console handlers behind cobra commands.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/2389/airtruct-console/internal/admin"
	"github.com/2389/airtruct-console/internal/api"
	"github.com/2389/airtruct-console/internal/auth"
	"github.com/2389/airtruct-console/internal/editor"
	"github.com/2389/airtruct-console/internal/logging"
	"github.com/2389/airtruct-console/internal/metrics"
	"github.com/2389/airtruct-console/internal/schema"
	"github.com/2389/airtruct-console/internal/seed"
	"github.com/2389/airtruct-console/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	port       string
	dbPath     string
	apiURL     string
	sessionTTL time.Duration
	seedSize   string
	writeBack  bool
	asJSON     bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	// .env is optional; flags and the real environment still win.
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "atc",
		Short: "Airtruct console: admin UI for streams, resources and component configs",
		Long: `The Airtruct console edits stream pipelines and their supporting resources.

It talks to a coordinator when --api-url is set, or to a local SQLite store
otherwise, so the UI can be used and tested without a running cluster.

Quick Start:
  atc seed          # Fill the local store with sample data
  atc serve         # Start the console on port 8090
  atc reset         # Wipe and reseed the local store`,
		SilenceUsage: true,
	}

	defaultDBPath := getDefaultDBPath()

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the console HTTP server",
		Long: `Start the console on the specified port.

The server provides:
  • Console pages at http://localhost:PORT/
  • The editor and catalog JSON API under /api
  • Prometheus metrics at /metrics
  • Health check at /healthz

Environment Variables:
  ATC_PORT          Server port (default: 8090)
  ATC_API_URL       Coordinator base URL; empty uses the local store
  ATC_DB_PATH       Local store and request log database
  ATC_SESSION_TTL   Idle time before an editor session is dropped (default: 30m)`,
		RunE: runServe,
	}
	serveCmd.Flags().StringVarP(&port, "port", "p", getEnv("ATC_PORT", "8090"), "Port to listen on")
	serveCmd.Flags().StringVarP(&dbPath, "db", "d", defaultDBPath, "Database path")
	serveCmd.Flags().StringVar(&apiURL, "api-url", getEnv("ATC_API_URL", ""), "Coordinator base URL")
	serveCmd.Flags().DurationVar(&sessionTTL, "session-ttl", getDuration("ATC_SESSION_TTL", 30*time.Minute), "Editor session idle timeout")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the local store with sample data",
		Long: `Seed the local store with resources, secrets, files, streams, workers and events.

Set OPENAI_API_KEY to generate realistic sample messages; static messages are
used otherwise.

Note: Seed is not idempotent. Use 'atc reset' to clear data before reseeding.`,
		RunE: runSeed,
	}
	seedCmd.Flags().StringVarP(&dbPath, "db", "d", defaultDBPath, "Database path")
	seedCmd.Flags().StringVarP(&seedSize, "size", "s", "medium", "Amount of events: small, medium or large")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the local store (wipe and reseed)",
		Long: `Delete the database file and create a fresh one with new sample data.

Warning: This permanently deletes all data in the local store!`,
		RunE: runReset,
	}
	resetCmd.Flags().StringVarP(&dbPath, "db", "d", defaultDBPath, "Database path")
	resetCmd.Flags().StringVarP(&seedSize, "size", "s", "medium", "Amount of events: small, medium or large")

	catalogCmd := &cobra.Command{
		Use:   "catalog [section]",
		Short: "List the components of the built-in catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCatalog,
	}
	catalogCmd.Flags().BoolVar(&asJSON, "json", false, "Print component schemas as JSON")

	fmtCmd := &cobra.Command{
		Use:   "fmt <section> <component> [file]",
		Short: "Normalize a component config through the editor",
		Long: `Load a component config into the editor and print the text it emits.

Unknown keys are kept, blank pairs are dropped and field order follows the
catalog. Reads stdin when no file is given.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: runFmt,
	}
	fmtCmd.Flags().BoolVarP(&writeBack, "write", "w", false, "Write the result back to the file")

	validateCmd := &cobra.Command{
		Use:   "validate <section> <component> [file]",
		Short: "Validate a component config against the catalog",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runValidate,
	}

	rootCmd.AddCommand(serveCmd, seedCmd, resetCmd, catalogCmd, fmtCmd, validateCmd)
	return rootCmd
}

// validateAndCleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func validateAndCleanDBPath(path string) (string, error) {
	cleanPath := filepath.Clean(strings.TrimSpace(path))

	if cleanPath == "" || cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}
	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range []string{".git", ".svn", "node_modules", ".env", "credentials", "secret"} {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}
	return cleanPath, nil
}

// serverConfig is everything newServer needs.
type serverConfig struct {
	DBPath     string
	APIURL     string
	SessionTTL time.Duration
	Registry   *schema.Registry
}

// server is the wired console plus the resources it owns.
type server struct {
	http.Handler
	store    *store.Store
	sessions *editor.Sessions
	metrics  *metrics.Collector
}

func (s *server) Close() error {
	return s.store.Close()
}

func newServer(cfg serverConfig) (*server, error) {
	reg := cfg.Registry
	if reg == nil {
		var err error
		if reg, err = schema.Builtin(); err != nil {
			return nil, fmt.Errorf("failed to load component catalog: %w", err)
		}
	}
	s, err := store.New(cfg.DBPath, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	m := metrics.New()
	sessions := editor.NewSessions(cfg.SessionTTL)
	m.WatchSessions(sessions.Len)

	var backend api.Backend = s
	if cfg.APIURL != "" {
		backend = api.NewClient(cfg.APIURL, nil, m)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(s, m))
	r.Use(auth.Middleware)

	r.Handle("/metrics", m.Handler())
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	admin.NewHandlers(admin.Config{
		Backend:      backend,
		Registry:     reg,
		Sessions:     sessions,
		Logs:         s,
		Metrics:      m,
		RequireLogin: cfg.APIURL != "",
	}).RegisterRoutes(r)

	return &server{Handler: r, store: s, sessions: sessions, metrics: m}, nil
}

// sweepSessions drops idle editor sessions until ctx is done.
func sweepSessions(ctx context.Context, sessions *editor.Sessions, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				log.Printf("Dropped %d idle editor sessions", n)
			}
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}
	if sessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	srv, err := newServer(serverConfig{DBPath: dbPath, APIURL: apiURL, SessionTTL: sessionTTL})
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go sweepSessions(ctx, srv.sessions, time.Minute)

	addr := ":" + port
	log.Printf("Airtruct console listening on %s", addr)
	log.Printf("Database: %s", dbPath)
	if apiURL != "" {
		log.Printf("Coordinator: %s", apiURL)
	} else {
		log.Println("No coordinator configured, using the local store")
	}
	return http.ListenAndServe(addr, srv)
}

func openStore() (*store.Store, error) {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return nil, err
	}
	reg, err := schema.Builtin()
	if err != nil {
		return nil, fmt.Errorf("failed to load component catalog: %w", err)
	}
	return store.New(dbPath, reg)
}

func runSeed(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return seedData(cmd.Context(), s)
}

func runReset(cmd *cobra.Command, args []string) error {
	var err error
	dbPath, err = validateAndCleanDBPath(dbPath)
	if err != nil {
		return err
	}
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing database: %w", err)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	return seedData(cmd.Context(), s)
}

func seedData(ctx context.Context, s *store.Store) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log.Println("Seeding database with sample data...")
	sum, err := seed.Seed(ctx, s, seed.NewGenerator(), seedSize)
	if err != nil {
		if strings.Contains(err.Error(), api.ErrConflict.Error()) {
			log.Println("Note: Database already contains seed data. Use 'atc reset' to clear and reseed.")
		}
		return err
	}
	log.Printf("Seeding complete! Created %s", sum)
	return nil
}

func runCatalog(cmd *cobra.Command, args []string) error {
	reg, err := schema.Builtin()
	if err != nil {
		return err
	}
	sections := schema.Sections
	if len(args) == 1 {
		sec := schema.Section(args[0])
		if !sec.Valid() {
			return fmt.Errorf("unknown section %q", args[0])
		}
		sections = []schema.Section{sec}
	}
	return printCatalog(cmd.OutOrStdout(), reg, sections)
}

func printCatalog(out io.Writer, reg *schema.Registry, sections []schema.Section) error {
	if asJSON {
		all := map[schema.Section][]*schema.ComponentSchema{}
		for _, sec := range sections {
			all[sec] = reg.Schemas(sec)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(all)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tCOMPONENT\tTITLE\tFIELDS")
	for _, sec := range sections {
		for _, cs := range reg.Schemas(sec) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", sec, cs.Name, cs.Title, len(cs.Properties))
		}
	}
	return tw.Flush()
}

// componentArg resolves the section and component arguments of fmt and validate.
func componentArg(reg *schema.Registry, section, name string) (*schema.ComponentSchema, error) {
	sec := schema.Section(section)
	if !sec.Valid() {
		return nil, fmt.Errorf("unknown section %q", section)
	}
	cs, ok := reg.Component(sec, name)
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", sec, name, editor.ErrUnknownComponent)
	}
	return cs, nil
}

func readConfig(cmd *cobra.Command, args []string) (string, error) {
	if len(args) < 3 || args[2] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(args[2])
	if err != nil {
		return "", fmt.Errorf("failed to read config: %w", err)
	}
	return string(data), nil
}

func runFmt(cmd *cobra.Command, args []string) error {
	reg, err := schema.Builtin()
	if err != nil {
		return err
	}
	cs, err := componentArg(reg, args[0], args[1])
	if err != nil {
		return err
	}
	text, err := readConfig(cmd, args)
	if err != nil {
		return err
	}

	out := editor.New(cs, text, editor.Options{Catalog: reg.Catalog()}).Text()
	if writeBack && len(args) == 3 && args[2] != "-" {
		return os.WriteFile(args[2], []byte(out), 0644)
	}
	_, err = io.WriteString(cmd.OutOrStdout(), out)
	return err
}

func runValidate(cmd *cobra.Command, args []string) error {
	reg, err := schema.Builtin()
	if err != nil {
		return err
	}
	cs, err := componentArg(reg, args[0], args[1])
	if err != nil {
		return err
	}
	text, err := readConfig(cmd, args)
	if err != nil {
		return err
	}

	problems := reg.ValidateConfig(cs, text)
	for _, p := range problems {
		fmt.Fprintln(cmd.OutOrStdout(), p.String())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d problem(s) in %s config", len(problems), cs.Name)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Printf("Warning: %s=%q is not a duration, using %s", key, val, fallback)
		return fallback
	}
	return d
}

// getDefaultDBPath returns the default database path following the XDG Base Directory layout
// Priority: ATC_DB_PATH env var > ./atc.db > XDG_DATA_HOME/airtruct-console/atc.db
func getDefaultDBPath() string {
	if envPath := os.Getenv("ATC_DB_PATH"); envPath != "" {
		envPath = filepath.Clean(strings.TrimSpace(envPath))
		if envPath == "" || envPath == "." {
			log.Printf("Warning: ATC_DB_PATH is invalid (empty or '.'), using default path")
		} else {
			return envPath
		}
	}

	cwdPath := "./atc.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			log.Printf("Warning: Could not determine valid home directory (%q): %v, using ./atc.db", homeDir, err)
			return cwdPath
		}
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "airtruct-console")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Printf("Warning: Could not create data directory %s: %v, using ./atc.db", dataDir, err)
		return cwdPath
	}

	testFile := filepath.Join(dataDir, ".write-test")
	f, err := os.Create(testFile)
	if err != nil {
		log.Printf("Warning: Cannot write to data directory %s: %v, using ./atc.db", dataDir, err)
		return cwdPath
	}
	f.Close()
	os.Remove(testFile)

	if os.Getenv("ATC_DEBUG") != "" {
		log.Printf("Using database location: %s", filepath.Join(dataDir, "atc.db"))
	}
	return filepath.Join(dataDir, "atc.db")
}
