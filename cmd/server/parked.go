package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/phrazzld/cardfeed/internal/api"
	"github.com/phrazzld/cardfeed/internal/domain"
	"github.com/spf13/cobra"
)

// defaultClientTimeout bounds requests made by operator commands.
const defaultClientTimeout = 10 * time.Second

type parkedOptions struct {
	apiURL  string
	token   string
	asJSON  bool
	timeout time.Duration
}

func newParkedCmd() *cobra.Command {
	opts := &parkedOptions{}
	cmd := &cobra.Command{
		Use:   "parked",
		Short: "List parked cards on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			items, err := fetchParked(ctx, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			renderParked(out, items, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.apiURL, "api", "http://127.0.0.1:8080/api/v1", "API base URL")
	cmd.Flags().StringVar(&opts.token, "token", os.Getenv("CARDFEED_TOKEN"), "bearer token (default $CARDFEED_TOKEN)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "output JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", defaultClientTimeout, "request timeout")
	return cmd
}

func fetchParked(ctx context.Context, opts *parkedOptions) ([]domain.ParkedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	url := strings.TrimRight(opts.apiURL, "/") + "/cards/parked"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var list api.ParkedListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode parked list: %w", err)
	}
	return list.Items, nil
}

// renderParked writes items as a table, soonest first as served.
func renderParked(out io.Writer, items []domain.ParkedItem, now time.Time) {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"ID", "Title", "Altitude", "Wakes", "In", "Reason", "Conditions"})
	for _, it := range items {
		tw.AppendRow(table.Row{
			it.ID.String(),
			it.Title,
			string(it.Altitude),
			it.WakeTime.Local().Format("2006-01-02 15:04"),
			untilLabel(it.WakeTime.Sub(now)),
			it.Context,
			conditionsLabel(it.WakeConditions),
		})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d parked", len(items))})
	tw.Render()
}

func untilLabel(d time.Duration) string {
	if d <= 0 {
		return "due"
	}
	return d.Round(time.Minute).String()
}

func conditionsLabel(conds []domain.WakeCondition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		switch c.Type {
		case domain.WakeEvent:
			parts = append(parts, "event:"+c.Event)
		case domain.WakeMemoryChange:
			parts = append(parts, "memory:"+c.Key)
		default:
			parts = append(parts, string(c.Type))
		}
	}
	return strings.Join(parts, ", ")
}
