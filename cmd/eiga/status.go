package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hyperjump/eiga/internal/artifact"
	"github.com/hyperjump/eiga/internal/bundle"
	"github.com/hyperjump/eiga/internal/cli"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/registry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStatusCmd(o *rootOptions) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the served model and storage usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			var st *cli.Status
			if serverURL != "" {
				st, err = statusViaHTTP(cmd.Context(), serverURL)
			} else {
				st, err = o.statusLocal(cmd.Context())
			}
			if err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "ask a running server instead of reading local storage")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text or json")
	return cmd
}

func (o *rootOptions) statusLocal(ctx context.Context) (*cli.Status, error) {
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

	st := &cli.Status{
		ModelURI:     cfg.Model.URI(),
		RegistryPath: cfg.Storage.RegistryPath,
		Backend:      components.Store.Type(),
	}
	mv, err := components.Registry.Resolve(ctx, cfg.Model.Name, cfg.Model.Ref)
	switch {
	case err == nil:
		st.Version = mv
		if b, err := bundle.Load(ctx, components.Store, mv.Location, mv.Checksum); err == nil {
			st.Ready = true
			st.VocabularySize = b.Metadata.VocabularySize
		} else {
			logger.Warn("bundle does not load", zap.String("location", mv.Location), zap.Error(err))
		}
	case errors.Is(err, registry.ErrNotFound):
	default:
		return nil, err
	}
	if run, err := components.Registry.LatestRun(ctx, cfg.Model.Experiment); err == nil {
		st.LatestRun = run
	}
	paths := []string{cfg.Storage.RegistryPath}
	if fs, ok := components.Store.(*artifact.FileStore); ok {
		paths = append(paths, fs.Root())
	}
	if n, err := artifact.DiskUsageBytes(paths...); err == nil {
		st.DiskUsageBytes = &n
	}
	return st, nil
}

// statusViaHTTP reads /api/v1/model from a running server.
func statusViaHTTP(ctx context.Context, serverURL string) (*cli.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(serverURL, "/")+"/api/v1/model", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusServiceUnavailable {
		return &cli.Status{ModelURI: serverURL, Backend: "remote"}, nil
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, serverError(resp.StatusCode, b)
	}
	var info struct {
		URI            string              `json:"uri"`
		Version        models.ModelVersion `json:"version"`
		VocabularySize int                 `json:"vocabulary_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &cli.Status{
		ModelURI:       info.URI,
		Ready:          true,
		Version:        &info.Version,
		VocabularySize: info.VocabularySize,
		Backend:        "remote",
	}, nil
}
