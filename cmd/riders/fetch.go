package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/riders-api/riders/config"
	"github.com/riders-api/riders/httpclient"
	"github.com/riders-api/riders/metrics"
)

var (
	fetchText    bool
	fetchBlob    bool
	fetchHeaders []string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>...",
	Short: "Fetch URLs concurrently",
	Long: `Fetch every URL concurrently and print one JSON result per line, in
argument order. A failing URL does not stop the others; the command exits
non-zero when any URL failed.

By default bodies are decoded as JSON. Use --text for raw text and --blob
for the byte length of the body.

Examples:
  riders fetch https://api.example.com/a https://api.example.com/b
  riders fetch --text -H "Authorization: Bearer $TOKEN" https://example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchText, "text", false, "print bodies as text")
	fetchCmd.Flags().BoolVar(&fetchBlob, "blob", false, "print body sizes only")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, `extra request header "Name: value", repeatable`)
	fetchCmd.MarkFlagsMutuallyExclusive("text", "blob")
	rootCmd.AddCommand(fetchCmd)
}

type fetchLine struct {
	URL   string `json:"url"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

func runFetch(cmd *cobra.Command, urls []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	headers, err := parseHeaders(fetchHeaders)
	if err != nil {
		return err
	}

	client := newHTTPClient(cfg, metrics.NewCollector())
	out := cmd.OutOrStdout()

	switch {
	case fetchText:
		results := client.Scrape(ctx, urls, headers)
		return report(out, results, func(v string) any { return v })
	case fetchBlob:
		results := client.Batch(ctx, urls, headers)
		return report(out, results, func(v []byte) any { return len(v) })
	default:
		results := client.Fetch(ctx, urls, headers)
		return report(out, results, func(v any) any { return v })
	}
}

func report[T any](out io.Writer, results []httpclient.Result[T], value func(T) any) error {
	enc := json.NewEncoder(out)
	for _, r := range results {
		line := fetchLine{URL: r.URL}
		if r.Err != nil {
			line.Error = r.Err.Error()
		} else {
			line.Value = value(r.Value)
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return httpclient.BatchErr(results)
}

func parseHeaders(raw []string) (httpclient.Headers, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(httpclient.Headers, len(raw))
	for _, h := range raw {
		name, value, ok := cutHeader(h)
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[name] = value
	}
	return headers, nil
}

func cutHeader(h string) (string, string, bool) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}
