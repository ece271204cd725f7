package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/chainsync/gateway/internal/model"
)

func main() {
	addr := flag.String("addr", "http://localhost:10000", "gateway base URL")
	limit := flag.Int("limit", 20, "number of entries to show, 0 for all")
	action := flag.String("action", "", "only show entries with this action")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	entries, err := fetchLogs(ctx, http.DefaultClient, *addr, *limit, *action)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspector:", err)
		os.Exit(1)
	}
	if err := printLogs(os.Stdout, entries); err != nil {
		fmt.Fprintln(os.Stderr, "inspector:", err)
		os.Exit(1)
	}
}

func fetchLogs(ctx context.Context, hc *http.Client, addr string, limit int, action string) ([]model.LogEntry, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	u = u.JoinPath("/api/sync_logs")
	q := u.Query()
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if action != "" {
		q.Set("action", action)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("GET %s: HTTP %d: %s", u, resp.StatusCode, body)
	}

	var entries []model.LogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode sync logs: %w", err)
	}
	return entries, nil
}

func printLogs(w io.Writer, entries []model.LogEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tACTION\tSUCCESS\tID\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", e.Timestamp, e.Action, e.Result.Success, e.ID, e.Result.Error)
	}
	return tw.Flush()
}
