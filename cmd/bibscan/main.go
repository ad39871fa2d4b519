package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/racepix/bibscan/internal/bib"
	"github.com/racepix/bibscan/internal/ocr"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		photoID     = flag.String("photo", "cli", "photo identifier used as the cache key")
		tenant      = flag.String("tenant", "", "tenant identifier scoping the result cache")
		overlayPath = flag.String("overlay", "", "write a diagnostic overlay PNG to this path")
		showVersion = flag.Bool("version", false, "print version information and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: bibscan [options] <image file>\n\n")
		fmt.Fprintf(os.Stderr, "Detects a race bib number in a photograph and prints the result as JSON.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  BIBSCAN_DEBUG=1    Enable verbose stage diagnostics\n")
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("bibscan %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Diagnostics go to stderr; stdout carries only the JSON result.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	debug := os.Getenv("BIBSCAN_DEBUG") != ""

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to read image: %v", err)
	}

	detector, err := bib.NewDetector(bib.Options{
		Local:  ocr.NewTesseractRecognizer(),
		Cache:  bib.NewResultCache(),
		Tenant: *tenant,
		Debug:  debug,
	})
	if err != nil {
		log.Fatalf("failed to construct detector: %v", err)
	}

	ctx := context.Background()
	result, err := detector.Process(ctx, *photoID, data)
	if err != nil {
		log.Fatalf("detection failed: %v", err)
	}

	if *overlayPath != "" {
		overlay, err := detector.Annotate(ctx, data)
		if err != nil {
			log.Printf("failed to render overlay: %v", err)
		} else if err := os.WriteFile(*overlayPath, overlay, 0644); err != nil {
			log.Printf("failed to write overlay: %v", err)
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
}
