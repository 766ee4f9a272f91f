// Package cli renders eiga command output for terminals and scripts.
package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/goccy/go-json"
	"github.com/hyperjump/eiga/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputCompact prints one recommended title per line.
	OutputCompact OutputFormat = "compact"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	case OutputCompact:
		return OutputCompact, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact or json", s)
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	labelStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecommendations writes a recommendation response in the given format.
func WriteRecommendations(w io.Writer, resp *models.RecommendResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, resp)
	case OutputCompact:
		for _, title := range resp.Recommendations {
			fmt.Fprintln(w, title)
		}
		return nil
	}
	if resp.Matched == "" {
		fmt.Fprintf(w, "No title matches %q.\n", resp.Title)
		if len(resp.Suggestions) > 0 {
			fmt.Fprintln(w, dimStyle.Render("Did you mean:"))
			for _, s := range resp.Suggestions {
				fmt.Fprintf(w, "  %s\n", s)
			}
		}
		return nil
	}
	fmt.Fprintf(w, "%s %s\n\n", headingStyle.Render("Because you liked"), resp.Matched)
	for i, title := range resp.Recommendations {
		line := fmt.Sprintf("%2d. %s", i+1, Truncate(title, 80))
		if i < len(resp.Scored) {
			line += dimStyle.Render(fmt.Sprintf("  (%.4f)", resp.Scored[i].Score))
		}
		fmt.Fprintln(w, line)
	}
	if resp.ModelVersion > 0 {
		fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("\nmodel version %d, %dms", resp.ModelVersion, resp.QueryTime)))
	}
	return nil
}

// WriteVersions writes registered model versions, newest first.
func WriteVersions(w io.Writer, versions []*models.ModelVersion, format OutputFormat) error {
	if format == OutputJSON {
		if versions == nil {
			versions = []*models.ModelVersion{}
		}
		return writeJSON(w, versions)
	}
	if len(versions) == 0 {
		fmt.Fprintln(w, "No versions registered.")
		return nil
	}
	fmt.Fprintln(w, labelStyle.Render(fmt.Sprintf("%-8s %-8s %-20s %s", "VERSION", "ITEMS", "CREATED", "ALIASES")))
	for _, mv := range versions {
		fmt.Fprintf(w, "%-8d %-8d %-20s %s\n",
			mv.Version, mv.NumItems, mv.CreatedAt.Local().Format(time.DateTime), strings.Join(mv.Aliases, ","))
	}
	return nil
}

// WriteVersion writes one version in detail.
func WriteVersion(w io.Writer, mv *models.ModelVersion, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, mv)
	}
	fmt.Fprintf(w, "%s %s v%d\n", headingStyle.Render("model"), mv.Name, mv.Version)
	writeField(w, "location", mv.Location)
	writeField(w, "checksum", mv.Checksum)
	writeField(w, "run_id", mv.RunID)
	writeField(w, "num_items", fmt.Sprint(mv.NumItems))
	writeField(w, "aliases", strings.Join(mv.Aliases, ","))
	writeField(w, "created_at", mv.CreatedAt.Format(time.RFC3339))
	return nil
}

// WriteRun writes a training run with its params and metrics.
func WriteRun(w io.Writer, run *models.Run, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, run)
	}
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render("run"), run.ID)
	writeField(w, "experiment", run.Experiment)
	writeField(w, "status", run.Status)
	writeField(w, "started_at", run.StartedAt.Format(time.RFC3339))
	if run.FinishedAt != nil {
		writeField(w, "finished_at", run.FinishedAt.Format(time.RFC3339))
	}
	writeField(w, "error", run.Error)
	for _, k := range sortedKeys(run.Params) {
		writeField(w, "param."+k, run.Params[k])
	}
	for _, k := range sortedKeys(run.Metrics) {
		writeField(w, "metric."+k, fmt.Sprintf("%g", run.Metrics[k]))
	}
	return nil
}

// Status summarizes the served model and local storage.
type Status struct {
	ModelURI       string               `json:"model_uri"`
	Ready          bool                 `json:"ready"`
	Version        *models.ModelVersion `json:"version,omitempty"`
	VocabularySize int                  `json:"vocabulary_size,omitempty"`
	RegistryPath   string               `json:"registry_path"`
	Backend        string               `json:"artifact_backend"`
	DiskUsageBytes *int64               `json:"disk_usage_bytes,omitempty"`
	LatestRun      *models.Run          `json:"latest_run,omitempty"`
}

// WriteStatus writes a status summary.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	writeField(w, "model", st.ModelURI)
	writeField(w, "ready", fmt.Sprint(st.Ready))
	if st.Version != nil {
		writeField(w, "version", fmt.Sprint(st.Version.Version))
		writeField(w, "num_items", fmt.Sprint(st.Version.NumItems))
	}
	if st.VocabularySize > 0 {
		writeField(w, "vocabulary_size", fmt.Sprint(st.VocabularySize))
	}
	writeField(w, "registry_path", st.RegistryPath)
	writeField(w, "artifact_backend", st.Backend)
	if st.DiskUsageBytes != nil {
		writeField(w, "disk_usage_bytes", fmt.Sprint(*st.DiskUsageBytes))
	}
	if st.LatestRun != nil {
		writeField(w, "latest_run", st.LatestRun.ID+" ("+st.LatestRun.Status+")")
	}
	return nil
}

func writeField(w io.Writer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-18s", name+":")), value)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if maxLen <= 0 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
