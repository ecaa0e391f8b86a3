// Command catvid prints the URL of one random item from the configured album,
// using the same configuration as the server. With -item it prints the
// provider's full record instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/chinmina/catvid-bridge/internal/config"
	"github.com/chinmina/catvid-bridge/internal/gfycat"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	item := flag.Bool("item", false, "print the full item record as JSON")
	envFile := flag.String("env-file", ".env", "optional file of environment variables")
	timeout := flag.Duration("timeout", 30*time.Second, "overall time limit")
	verbose := flag.Bool("v", false, "log progress to stderr")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger

	// a missing file is expected when the environment is already populated
	_ = godotenv.Load(*envFile)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, os.Stdout, *item); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, fullItem bool) error {
	cfg, err := config.LoadGfycat(ctx)
	if err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	client, err := gfycat.NewFromConfig(cfg, gfycat.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		return err
	}
	defer client.Close()

	return printRandom(ctx, out, client, fullItem)
}

func printRandom(ctx context.Context, out io.Writer, client *gfycat.Client, fullItem bool) error {
	if !fullItem {
		url, err := client.RandomItemURL(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, url)
		return err
	}

	item, err := client.RandomItem(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(item)
}
