package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"vlink-go/internal/output"
)

func main() {
	var (
		path  = flag.String("path", "", "Path to a .vlog frame log")
		limit = flag.Int("limit", 0, "Number of records to dump (0 dumps all)")
	)
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "vlink-framelog-dump: -path is required")
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open frame log: %v", err)
	}
	defer f.Close()

	r, err := output.NewFrameLogReader(f)
	if err != nil {
		log.Fatalf("frame log: %v", err)
	}

	for count := 0; *limit <= 0 || count < *limit; count++ {
		entry, err := r.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			log.Fatalf("record %d: %v", count, err)
		}
		pretty, err := json.MarshalIndent(entry.Record, "", "  ")
		if err != nil {
			log.Printf("record %d: JSON encode error: %v", count, err)
			continue
		}
		log.Printf("record %d written=%s", count, entry.Written.Format(time.RFC3339Nano))
		fmt.Println(string(pretty))
	}
}
