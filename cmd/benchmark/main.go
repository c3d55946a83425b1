package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"doclink/config"
	"doclink/internal/adapter/store"
	"doclink/internal/domain"
	"doclink/internal/usecase"
)

func main() {
	files := flag.Int("files", 200, "Number of synthetic source files")
	perFile := flag.Int("elements", 20, "Documented elements per file")
	workers := flag.Int("workers", 4, "Extraction workers")
	runs := flag.Int("runs", 3, "Warm builds to average")
	flag.Parse()

	cfg := config.DefaultConfig()
	cfg.Index.Workers = *workers

	dir, err := os.MkdirTemp("", "doclink-bench")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	st, _, err := store.Open(filepath.Join(dir, "cache.db"), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	builder, err := usecase.NewBuilder(cfg, st, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating builder: %v\n", err)
		os.Exit(1)
	}

	units := corpus(*files, *perFile)

	fmt.Println("DOCLINK BUILD BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Files: %d, elements per file: %d, workers: %d\n\n", *files, *perFile, *workers)

	start := time.Now()
	res, err := builder.Build(context.Background(), units, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
		os.Exit(1)
	}
	cold := time.Since(start)

	var warm time.Duration
	for range *runs {
		start = time.Now()
		if _, err := builder.Build(context.Background(), units, nil); err != nil {
			fmt.Fprintf(os.Stderr, "Build error: %v\n", err)
			os.Exit(1)
		}
		warm += time.Since(start)
	}
	if *runs > 0 {
		warm /= time.Duration(*runs)
	}

	s := res.Stats
	fmt.Printf("Elements:    %d\n", s.Elements)
	fmt.Printf("References:  %d (%d resolved)\n", s.References, s.Resolved)
	fmt.Printf("HTML size:   %d bytes\n", len(res.HTML))
	fmt.Printf("Warnings:    %d\n", len(res.Report.Diagnostics))
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("Cold build:  %s\n", cold)
	fmt.Printf("Warm build:  %s (cache hits)\n", warm)
	if warm > 0 {
		fmt.Printf("Speedup:     %.1fx\n", float64(cold)/float64(warm))
	}
}

// corpus generates files where every class has methods and every element
// references an element of the next file, so most links are forward.
func corpus(files, perFile int) []domain.SourceUnit {
	units := make([]domain.SourceUnit, 0, files)
	for f := range files {
		var sb strings.Builder
		class := fmt.Sprintf("Class%d", f)
		next := fmt.Sprintf("Class%d", (f+1)%files)
		fmt.Fprintf(&sb, "/// @class %s\n/// Works with @%s.\nclass %s {}\n\n", class, next, class)
		for e := 1; e < perFile; e++ {
			fmt.Fprintf(&sb, "/// @method %s.m%d\n/// Calls @%s and @Missing%d.\n///\n/// Second paragraph.\nm%d() {}\n\n",
				class, e, next, e%7, e)
		}
		units = append(units, domain.SourceUnit{
			Path: fmt.Sprintf("src/file%04d.js", f),
			Text: sb.String(),
		})
	}
	return units
}
