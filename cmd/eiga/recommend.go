package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyperjump/eiga/internal/cli"
	"github.com/hyperjump/eiga/internal/model"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/spf13/cobra"
)

func newRecommendCmd(o *rootOptions) *cobra.Command {
	var (
		topK      int
		serverURL string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "recommend [flags] [title...]",
		Short: "Recommend titles similar to the given one",
		Long:  "The title is all remaining arguments joined by spaces and matched as a case-insensitive substring. Without a title the configured default is used.",
		Example: `  eiga recommend Toy Story
  eiga recommend --top-k 10 --output compact "GoldenEye"
  eiga recommend --server http://localhost:8000 Heat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			var req models.RecommendRequest
			if title := strings.TrimSpace(strings.Join(args, " ")); title != "" {
				req.Title = &title
			}
			if cmd.Flags().Changed("top-k") {
				req.TopK = &topK
			}

			var resp *models.RecommendResponse
			if serverURL != "" {
				resp, err = recommendViaHTTP(cmd.Context(), serverURL, &req)
			} else {
				resp, err = o.recommendLocal(cmd.Context(), &req)
			}
			if err != nil {
				return err
			}
			return cli.WriteRecommendations(cmd.OutOrStdout(), resp, format)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of recommendations (default recommend.default_top_k)")
	cmd.Flags().StringVar(&serverURL, "server", "", "query a running server instead of loading the model locally")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, compact or json")
	return cmd
}

func (o *rootOptions) recommendLocal(ctx context.Context, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	cfg, _, logger, err := o.setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	holder := model.NewHolder()
	mgr := components.newManager(cfg, holder, logger)
	if _, err := mgr.Load(ctx); err != nil {
		return nil, err
	}
	svc, err := newService(cfg, holder, logger)
	if err != nil {
		return nil, err
	}
	return svc.Recommend(ctx, req)
}

func recommendViaHTTP(ctx context.Context, serverURL string, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/recommend", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, serverError(resp.StatusCode, b)
	}
	var out models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// serverError turns an {"error": ...} body into an error.
func serverError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", status, e.Error)
	}
	if len(body) == 0 {
		return errors.New(http.StatusText(status))
	}
	return fmt.Errorf("server returned %d: %s", status, strings.TrimSpace(string(body)))
}
