// ABOUTME: Entry point for the darzi measurement service
// ABOUTME: Subcommands: serve, init (write a starter config), health

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/darzihq/darzi/internal/api"
	"github.com/darzihq/darzi/internal/auth"
	"github.com/darzihq/darzi/internal/config"
	"github.com/darzihq/darzi/internal/mailer"
	"github.com/darzihq/darzi/internal/store"
)

// version is overridden at build time via -ldflags.
var version = "dev"

const banner = `
     _                _
  __| | __ _ _ __ ___(_)
 / _' |/ _' | '__|_  / |
| (_| | (_| | |   / /| |
 \__,_|\__,_|_|  /___|_|
`

// getConfigPath returns the path to the darzi config file.
// Priority: DARZI_CONFIG env var > XDG_CONFIG_HOME/darzi/darzi.yaml > ~/.config/darzi/darzi.yaml
func getConfigPath() string {
	if envPath := os.Getenv("DARZI_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "darzi.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "darzi", "darzi.yaml")
}

// getDataPath returns the path to the darzi data directory.
// Priority: XDG_DATA_HOME/darzi > ~/.local/share/darzi
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "darzi")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: darzi <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the measurement service")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check service health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	fmt.Println()

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	var sender mailer.Sender
	if cfg.SMTP.Enabled {
		sender = mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		sender = mailer.NewLogSender()
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	server := api.NewServer(s, verifier, sender, cfg.Auth.TokenTTL)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func prompt(reader *bufio.Reader, question, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", question, defaultValue)
	} else {
		fmt.Printf("%s: ", question)
	}

	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return defaultValue
	}
	return answer
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("darzi configuration setup")
	fmt.Println("=========================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "darzi.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Mail Configuration ---")
	enableSMTP := prompt(reader, "Enable SMTP for reset codes?", "no")
	smtpEnabled := strings.ToLower(enableSMTP) == "yes" || strings.ToLower(enableSMTP) == "y"

	var smtpHost, smtpPort, smtpUser, smtpFrom string
	if smtpEnabled {
		smtpHost = prompt(reader, "SMTP host", "")
		smtpPort = prompt(reader, "SMTP port", "587")
		smtpUser = prompt(reader, "SMTP username", "")
		smtpFrom = prompt(reader, "From address", "")
	}

	// Generate a fresh JWT secret
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating jwt secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	var sb strings.Builder
	sb.WriteString("server:\n")
	fmt.Fprintf(&sb, "  http_addr: %q\n", httpAddr)
	sb.WriteString("\ndatabase:\n")
	fmt.Fprintf(&sb, "  path: %q\n", dbPath)
	sb.WriteString("\nauth:\n")
	fmt.Fprintf(&sb, "  jwt_secret: %q\n", jwtSecret)
	sb.WriteString("  token_ttl: \"168h\"\n")
	sb.WriteString("\nsmtp:\n")
	fmt.Fprintf(&sb, "  enabled: %t\n", smtpEnabled)
	if smtpEnabled {
		fmt.Fprintf(&sb, "  host: %q\n", smtpHost)
		fmt.Fprintf(&sb, "  port: %s\n", smtpPort)
		fmt.Fprintf(&sb, "  username: %q\n", smtpUser)
		sb.WriteString("  password: \"${DARZI_SMTP_PASSWORD}\"\n")
		fmt.Fprintf(&sb, "  from: %q\n", smtpFrom)
	}
	sb.WriteString("\nlogging:\n")
	sb.WriteString("  level: info\n")
	sb.WriteString("  format: text\n")

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(outputFile, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("\nWrote %s\n", outputFile)
	return nil
}
