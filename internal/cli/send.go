package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/trendpush/trendpush/internal/bootstrap"
	"github.com/trendpush/trendpush/internal/ingest"
)

type sendOptions struct {
	apiURL      string
	file        string
	direct      bool
	contentType string
	contentID   string
	title       string
	message     string
	team        string
}

func newSendCmd(root *rootOptions) *cobra.Command {
	opts := &sendOptions{}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Submit a trend event",
		Long: `Submits a trend event to the API's notification endpoint, or with --direct
through the configured push backend without a running API.

The event comes from --file (use - for stdin) or from the field flags.`,
		Example: `  trendctl send --content-type match --content-id 42 --team india
  trendctl send --file event.json --direct`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := opts.eventBody(cmd.InOrStdin())
			if err != nil {
				return err
			}
			if opts.direct {
				return sendDirect(cmd, root, body)
			}
			return sendHTTP(cmd, opts.apiURL, body)
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api", "http://localhost:8080", "trendpush API base URL")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "JSON event file, - for stdin")
	cmd.Flags().BoolVar(&opts.direct, "direct", false, "dispatch through the configured push backend instead of the API")
	cmd.Flags().StringVar(&opts.contentType, "content-type", "", "content type, e.g. match")
	cmd.Flags().StringVar(&opts.contentID, "content-id", "", "content id")
	cmd.Flags().StringVar(&opts.title, "title", "", "notification title")
	cmd.Flags().StringVar(&opts.message, "message", "", "notification body")
	cmd.Flags().StringVar(&opts.team, "team", "", "team audience; empty sends to everyone")

	return cmd
}

// eventBody returns the raw event JSON. Empty flags are left out so the
// server applies its own defaults.
func (o *sendOptions) eventBody(stdin io.Reader) ([]byte, error) {
	switch o.file {
	case "":
	case "-":
		return io.ReadAll(stdin)
	default:
		b, err := os.ReadFile(o.file)
		if err != nil {
			return nil, fmt.Errorf("reading event file: %w", err)
		}
		return b, nil
	}

	event := map[string]string{}
	for key, value := range map[string]string{
		"contentType": o.contentType,
		"contentId":   o.contentID,
		"title":       o.title,
		"message":     o.message,
		"team":        o.team,
	} {
		if value != "" {
			event[key] = value
		}
	}
	return json.Marshal(event)
}

func sendHTTP(cmd *cobra.Command, apiURL string, body []byte) error {
	endpoint := strings.TrimRight(apiURL, "/") + "/v1/notifications/trending"

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("sending event: %w", err)
	}
	defer resp.Body.Close()

	var out struct {
		Success   bool   `json:"success"`
		MessageID string `json:"messageId"`
		Error     string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !out.Success {
		return fmt.Errorf("api rejected event: %d %s", resp.StatusCode, out.Error)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", out.MessageID)
	return nil
}

func sendDirect(cmd *cobra.Command, root *rootOptions, body []byte) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	log := root.logger(cmd.ErrOrStderr())

	sender, err := bootstrap.NewSender(cmd.Context(), cfg.Push, nil, log)
	if err != nil {
		return err
	}
	pipeline, err := bootstrap.NewPipeline(sender, cfg.Push, log)
	if err != nil {
		return err
	}

	raw, err := ingest.DecodeRecord(body)
	if err != nil {
		return err
	}

	result, err := pipeline.Process(cmd.Context(), ingest.SourceCLI, raw)
	if err != nil {
		return errors.Join(errors.New("dispatch failed"), err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s via %s\n", result.MessageID, result.Topic, sender.Name())
	return nil
}
