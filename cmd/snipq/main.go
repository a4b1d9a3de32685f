package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/snipq/snipq/internal/api"
	"github.com/snipq/snipq/internal/auth"
	"github.com/snipq/snipq/internal/cache"
	"github.com/snipq/snipq/internal/config"
	"github.com/snipq/snipq/internal/dispatch"
	"github.com/snipq/snipq/internal/doctor"
	"github.com/snipq/snipq/internal/events"
	"github.com/snipq/snipq/internal/history"
	"github.com/snipq/snipq/internal/inspect"
	"github.com/snipq/snipq/internal/lock"
	"github.com/snipq/snipq/internal/log"
	"github.com/snipq/snipq/internal/maintenance"
	"github.com/snipq/snipq/internal/provider"
	"github.com/snipq/snipq/internal/settings"
	"github.com/snipq/snipq/internal/storage"
	"github.com/snipq/snipq/internal/tui"
	"github.com/snipq/snipq/internal/tui/providerpick"
	"github.com/snipq/snipq/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	if cmd == "--version" {
		return runVersion(args)
	}

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "settings":
		return runSettingsNoun(args)
	case "query":
		if hasHelpFlag(args) {
			printQueryHelp()
			return 0
		}
		return runQuery(args)

	case "inspect":
		if hasHelpFlag(args) || (len(args) > 0 && isHelpToken(args[0])) {
			printInspectHelp()
			return 0
		}
		return runInspect(args)

	// Root aliases.
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: snipq version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("snipq %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalizedBuildTime, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalizedBuildTime
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}

	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`snipq - selection-to-answer dispatch gateway

Usage:
  snipq <noun> <action> [flags]

Core Resources (Nouns):
  system    Gateway lifecycle and monitoring
  settings  Provider credentials and active provider
  query     Send a query through a running gateway

System Commands:
  system start      Start the gateway service in foreground
  system watch      Real-time dispatch monitoring TUI

Settings Commands:
  settings show               Show configured providers (keys redacted)
  settings use <provider>     Switch the active provider
  settings set-key <provider> <key>      Store a provider API key
  settings set-model <provider> <model>  Store a provider model id

Query:
  query <text> --to <destination>   Trigger a dispatch via the API

Inspect:
  inspect <dispatch_id>   Show the audit record for one dispatch

General:
  --version         Show version information
  version           Show version information
  help              Show this help message

Use 'snipq <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		printSystemNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSystemNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "start":
		if hasHelpFlag(actionArgs) {
			printSystemStartHelp()
			return 0
		}
		return runStart(actionArgs)
	case "watch":
		if hasHelpFlag(actionArgs) {
			printSystemWatchHelp()
			return 0
		}
		return runWatch(actionArgs)
	case "monitor":
		if hasHelpFlag(actionArgs) {
			printSystemMonitorHelp()
			return 0
		}
		return runMonitor(actionArgs)
	case "doctor":
		if hasHelpFlag(actionArgs) {
			printSystemDoctorHelp()
			return 0
		}
		return runDoctor(actionArgs)
	case "help":
		printSystemNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", action)
		return 1
	}
}

func runSettingsNoun(args []string) int {
	if len(args) < 1 {
		printSettingsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSettingsNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "show":
		if hasHelpFlag(actionArgs) {
			printSettingsShowHelp()
			return 0
		}
		return runSettingsShow(actionArgs)
	case "use":
		if hasHelpFlag(actionArgs) {
			printSettingsUseHelp()
			return 0
		}
		return runSettingsUse(actionArgs)
	case "set-key":
		if hasHelpFlag(actionArgs) {
			printSettingsSetKeyHelp()
			return 0
		}
		return runSettingsSetKey(actionArgs)
	case "set-model":
		if hasHelpFlag(actionArgs) {
			printSettingsSetModelHelp()
			return 0
		}
		return runSettingsSetModel(actionArgs)
	case "help":
		printSettingsNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown settings action: %s\n", action)
		return 1
	}
}

func printSystemNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: snipq system <action> [flags]

Actions:
  start     Start the gateway service in foreground
  watch     Real-time dispatch monitoring TUI
  monitor   Compact dispatch table monitor TUI
  doctor    Validate configuration and provider setup
`)
}

func printSettingsNounHelp(w *os.File) {
	fmt.Fprint(w, `Usage: snipq settings <action> [flags]

Actions:
  show                          Show configured providers (keys redacted)
  use <provider>                Switch the active provider
  set-key <provider> <key>      Store a provider API key
  set-model <provider> <model>  Store a provider model id

Providers: openai, anthropic, gemini

Settings are written directly to the state database; a running gateway
picks changes up on the next dispatch.
`)
}

func printSystemStartHelp() {
	fmt.Println("Usage: snipq system start [--config PATH]")
	fmt.Println("Start the gateway in foreground. Without --config, built-in defaults apply.")
}

func printSystemWatchHelp() {
	fmt.Println("Usage: snipq system watch [flags]")
	fmt.Println()
	fmt.Println("Real-time dispatch monitoring TUI.")
	fmt.Println("Shows the live event stream and recent dispatch history.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Gateway API URL (default: http://127.0.0.1:8750)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  ↑/↓, k/j         Scroll events")
}

func printSystemMonitorHelp() {
	fmt.Println("Usage: snipq system monitor [flags]")
	fmt.Println()
	fmt.Println("Compact dispatch table monitor TUI.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    Gateway API URL (default: http://127.0.0.1:8750)")
}

func printSystemDoctorHelp() {
	fmt.Println("Usage: snipq system doctor [--config PATH] [--json]")
	fmt.Println("Validate configuration and provider setup, and report warnings.")
}

func printSettingsShowHelp() {
	fmt.Println("Usage: snipq settings show [--config PATH] [--json]")
	fmt.Println("Show configured providers with keys redacted.")
}

func printSettingsUseHelp() {
	fmt.Println("Usage: snipq settings use [provider] [--config PATH]")
	fmt.Println("Switch the active provider (openai, anthropic, gemini).")
	fmt.Println("Without an argument, opens an interactive picker.")
}

func printSettingsSetKeyHelp() {
	fmt.Println("Usage: snipq settings set-key <provider> <key> [--config PATH]")
	fmt.Println("Store a provider API key in the state database.")
}

func printSettingsSetModelHelp() {
	fmt.Println("Usage: snipq settings set-model <provider> <model> [--config PATH]")
	fmt.Println("Store a provider model id in the state database.")
}

func printQueryHelp() {
	fmt.Println("Usage: snipq query <text> --to <destination> [--api-url URL]")
	fmt.Println()
	fmt.Println("Trigger a dispatch on a running gateway. The answer is pushed to the")
	fmt.Println("destination's stream (GET /v1/stream/{destination}), not printed here.")
}

func printInspectHelp() {
	fmt.Println("Usage: snipq inspect <dispatch_id> [--config PATH] [--json]")
	fmt.Println()
	fmt.Println("Show the audit record for one dispatch. Accepts a full dispatch id")
	fmt.Println("or an unambiguous prefix.")
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "--help" || a == "-h" {
			return true
		}
	}
	return false
}

// --- ACTION IMPLEMENTATIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("snipq starting", "version", version, "config", *configPath)

	pidLockPath := filepath.Join(filepath.Dir(cfg.State.Path), "snipq.lock")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		logger.Error("failed to bootstrap database", "error", err)
		return 1
	}
	logger.Info("database opened", "path", cfg.State.Path)

	store := settings.NewStore(db)
	hist := history.NewLog(db)
	hub := events.NewHub(256)
	sink := api.NewDestinationHub()
	answerCache := cache.New(cfg.Dispatch.CacheTTL)

	baseURLs := make(map[provider.ID]string, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		if pc.BaseURL != "" {
			baseURLs[provider.ID(name)] = pc.BaseURL
		}
	}

	coordinator := dispatch.New(dispatch.Options{
		Config:   cfg.Dispatch,
		Resolver: store,
		Sink:     sink,
		Cache:    answerCache,
		Hub:      hub,
		History:  hist,
		BaseURLs: baseURLs,
	})
	defer coordinator.Close()

	janitor := maintenance.New(answerCache, hist, cfg.Service.HistoryRetention)
	janitor.Start(ctx)
	defer janitor.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)

	apiTokens := make([]auth.TokenConfig, 0, len(cfg.API.Tokens))
	for _, t := range cfg.API.Tokens {
		apiTokens = append(apiTokens, auth.TokenConfig{Token: t.Token, Scopes: t.Scopes})
	}
	apiConfig := api.Config{
		Listen: cfg.API.Listen,
		APIKey: cfg.API.Key,
		Tokens: apiTokens,
	}

	apiServer := api.New(apiConfig, coordinator, sink, store, hist, hub, log.WithComponent("api"))
	go func() {
		if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("api: %w", err)
		}
	}()

	logger.Info("snipq running (press Ctrl+C to stop)", "listen", cfg.API.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("snipq stopped")
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8750", "Gateway API URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(*apiURL)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap database: %v\n", err)
		return 1
	}

	store := settings.NewStore(db)
	providers, err := store.All(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read settings: %v\n", err)
		return 1
	}
	active, hasActive, err := store.Active(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read settings: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, providers, active, hasActive).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://127.0.0.1:8750", "Gateway API URL")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := tui.NewMonitor(*apiURL)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	destination := fs.String("to", "", "Destination id the answer should stream to")
	apiURL := fs.String("api-url", "http://127.0.0.1:8750", "Gateway API URL")

	var text string
	var remainingArgs []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && text == "" {
			text = arg
		} else {
			remainingArgs = append(remainingArgs, arg)
		}
	}
	if err := fs.Parse(remainingArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if text == "" || *destination == "" {
		printQueryHelp()
		return 1
	}

	body, err := json.Marshal(map[string]string{"text": text, "destination": *destination})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode request: %v\n", err)
		return 1
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(strings.TrimRight(*apiURL, "/")+"/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		fmt.Fprintf(os.Stderr, "Gateway rejected query: %s\n", apiErr.Error)
		return 1
	}

	fmt.Printf("Accepted. Answer will stream to destination %q.\n", *destination)
	return 0
}

func runInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")

	var dispatchID string
	var remainingArgs []string
	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") && dispatchID == "" {
			dispatchID = arg
		} else {
			remainingArgs = append(remainingArgs, arg)
		}
	}
	if err := fs.Parse(remainingArgs); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if dispatchID == "" {
		printInspectHelp()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	var out string
	if *jsonOut {
		out, err = inspect.BuildJSONReport(ctx, db, dispatchID)
	} else {
		out, err = inspect.BuildReport(ctx, db, dispatchID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Inspect failed: %v\n", err)
		return 1
	}
	fmt.Print(out)
	if *jsonOut {
		fmt.Println()
	}
	return 0
}

func openSettingsStore(configPath string) (*settings.Store, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := storage.BootstrapSQLite(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("bootstrap database: %w", err)
	}

	return settings.NewStore(db), func() { db.Close() }, nil
}

func parseProviderArg(raw string) (provider.ID, error) {
	id := provider.ID(strings.ToLower(strings.TrimSpace(raw)))
	if !id.Valid() {
		return "", fmt.Errorf("unknown provider %q (expected openai, anthropic, or gemini)", raw)
	}
	return id, nil
}

func runSettingsShow(args []string) int {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	store, closeDB, err := openSettingsStore(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	ctx := context.Background()
	all, err := store.All(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	active, _, err := store.Active(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	type row struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
		HasKey   bool   `json:"has_key"`
		Active   bool   `json:"active"`
	}
	rows := make([]row, 0, 3)
	for _, id := range []provider.ID{provider.OpenAI, provider.Anthropic, provider.Gemini} {
		r := row{Provider: string(id), Active: id == active}
		if cfg, ok := all[id]; ok {
			r.Model = cfg.Model
			r.HasKey = cfg.APIKey != ""
		}
		rows = append(rows, r)
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	for _, r := range rows {
		marker := " "
		if r.Active {
			marker = "*"
		}
		key := "unset"
		if r.HasKey {
			key = "set"
		}
		model := r.Model
		if model == "" {
			model = "unset"
		}
		fmt.Printf("%s %-10s key=%-5s model=%s\n", marker, r.Provider, key, model)
	}
	return 0
}

func runSettingsUse(args []string) int {
	fs := flag.NewFlagSet("use", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "Usage: snipq settings use [provider] [--config PATH]")
		return 1
	}

	store, closeDB, err := openSettingsStore(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	ctx := context.Background()

	var id provider.ID
	if fs.NArg() == 1 {
		id, err = parseProviderArg(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	} else {
		// Interactive selection.
		active, _, err := store.Active(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		p := tea.NewProgram(providerpick.New(active))
		final, err := p.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			return 1
		}
		picked, ok := final.(providerpick.Model)
		if !ok {
			return 1
		}
		choice, ok := picked.Choice()
		if !ok {
			return 1
		}
		id = choice
	}

	if err := store.SetActive(ctx, id); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Active provider set to %s\n", id)
	return 0
}

func runSettingsSetKey(args []string) int {
	fs := flag.NewFlagSet("set-key", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: snipq settings set-key <provider> <key> [--config PATH]")
		return 1
	}

	id, err := parseProviderArg(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	key := fs.Arg(1)
	if key == "" {
		fmt.Fprintln(os.Stderr, "Error: key is empty")
		return 1
	}

	store, closeDB, err := openSettingsStore(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	if err := store.SetAPIKey(context.Background(), id, key); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("API key stored for %s\n", id)
	return 0
}

func runSettingsSetModel(args []string) int {
	fs := flag.NewFlagSet("set-model", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: snipq settings set-model <provider> <model> [--config PATH]")
		return 1
	}

	id, err := parseProviderArg(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	model := fs.Arg(1)
	if model == "" {
		fmt.Fprintln(os.Stderr, "Error: model is empty")
		return 1
	}

	store, closeDB, err := openSettingsStore(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeDB()

	if err := store.SetModel(context.Background(), id, model); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Model stored for %s\n", id)
	return 0
}
