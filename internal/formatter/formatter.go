// package formatter renders learning-progress reports as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytlearn/internal/models"
	"github.com/desertthunder/ytlearn/internal/shared"
	"github.com/desertthunder/ytlearn/internal/tasks"
)

// Format names a report encoding.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
)

// ParseFormat accepts text, markdown (md) and csv, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	default:
		return "", fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, s)
	}
}

// Render encodes d in format.
func Render(d *tasks.Dashboard, format Format) ([]byte, error) {
	switch format {
	case Text:
		return ExportToText(d)
	case Markdown:
		return ExportToMarkdown(d, "")
	case CSV:
		return ExportToCSV(d)
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV writes one row per playlist video with columns: Position, ID, Title, Duration, State, WatchPosition
func ExportToCSV(d *tasks.Dashboard) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Duration", "State", "WatchPosition"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, v := range d.Videos {
		record := []string{
			strconv.Itoa(v.Position + 1),
			v.ID,
			v.Title,
			v.Duration,
			v.State.String(),
			strconv.FormatFloat(v.WatchPosition, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the dashboard as Markdown with an optional cover image
func ExportToMarkdown(d *tasks.Dashboard, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer
	ledger := d.User.Ledger()

	fmt.Fprintf(&buf, "# Learning progress: %s\n\n", displayName(d))

	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}

	fmt.Fprintf(&buf, "**Playlist**: %s\n", d.PlaylistID.OrElse("none"))
	fmt.Fprintf(&buf, "**Completed**: %d of %d (%d%%)\n", ledger.TotalVideosCompleted, d.TotalVideos, d.CompletionPercent)
	fmt.Fprintf(&buf, "**Current streak**: %s\n", days(ledger.CurrentStreak))
	fmt.Fprintf(&buf, "**Best streak**: %s\n", days(ledger.BestStreak))
	fmt.Fprintf(&buf, "**Last active**: %s\n\n", lastActive(d))

	if next, ok := d.NextVideo.Get(); ok {
		fmt.Fprintf(&buf, "**Up next**: %s [%s]\n\n", next.Title, next.Duration)
	}

	buf.WriteString("## Achievements\n\n")
	for _, a := range d.Achievements {
		mark := " "
		if a.Unlocked {
			mark = "x"
		}
		fmt.Fprintf(&buf, "- [%s] **%s**: %s\n", mark, a.Title, a.Description)
	}

	buf.WriteString("\n## Videos\n\n")
	for i, v := range d.Videos {
		fmt.Fprintf(&buf, "%d. %s %s [%s]\n", i+1, checkbox(v), v.Title, v.Duration)
	}

	return buf.Bytes(), nil
}

// ExportToText renders the dashboard as plain text
func ExportToText(d *tasks.Dashboard) ([]byte, error) {
	var buf bytes.Buffer
	ledger := d.User.Ledger()

	fmt.Fprintf(&buf, "Learner: %s\n", displayName(d))
	fmt.Fprintf(&buf, "Playlist: %s\n", d.PlaylistID.OrElse("none"))
	fmt.Fprintf(&buf, "Completed: %d/%d (%d%%)\n", ledger.TotalVideosCompleted, d.TotalVideos, d.CompletionPercent)
	fmt.Fprintf(&buf, "Streak: %s (best %s)\n", days(ledger.CurrentStreak), days(ledger.BestStreak))
	fmt.Fprintf(&buf, "Last active: %s\n", lastActive(d))
	if next, ok := d.NextVideo.Get(); ok {
		fmt.Fprintf(&buf, "Up next: %s\n", next.Title)
	}
	buf.WriteString("\n")

	for i, v := range d.Videos {
		fmt.Fprintf(&buf, "%d. %s %s\n", i+1, checkbox(v), v.Title)
	}

	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ToLedgerJSON encodes the user and ledger figures without the video list
func ToLedgerJSON(d *tasks.Dashboard) ([]byte, error) {
	return shared.MarshalJSON(struct {
		User              any `json:"user"`
		TotalVideos       int `json:"totalVideos"`
		CompletionPercent int `json:"completionPercent"`
		Achievements      any `json:"achievements"`
	}{d.User, d.TotalVideos, d.CompletionPercent, d.Achievements}, true)
}

// ReportResult lists the files written by [WriteReport]
type ReportResult struct {
	Format Format   `json:"format"`
	Files  []string `json:"files"`
}

// WriteReport writes d in format under base.
//
// CSV writes {base}_progress.csv and {base}_ledger.json; Markdown writes {base}/README.md
// with the next video's thumbnail as cover.jpg when one can be downloaded; text writes {base}.txt.
// base defaults to "progress".
func WriteReport(d *tasks.Dashboard, format Format, base string) (*ReportResult, error) {
	if base == "" {
		base = "progress"
	}

	switch format {
	case CSV:
		return writeCSVExport(d, base)
	case Markdown:
		imageURL := ""
		if next, ok := d.NextVideo.Get(); ok {
			imageURL = next.ThumbnailURL
		}
		return writeMarkdownExport(d, base, imageURL)
	case Text:
		return writeTextExport(d, base+".txt")
	default:
		return nil, fmt.Errorf("%w: unknown report format %q", shared.ErrInvalidArgument, format)
	}
}

func writeCSVExport(d *tasks.Dashboard, base string) (*ReportResult, error) {
	csvData, err := ExportToCSV(d)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	progressFile := base + "_progress.csv"
	if err := os.WriteFile(progressFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	ledgerJSON, err := ToLedgerJSON(d)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ledger JSON: %w", err)
	}

	ledgerFile := base + "_ledger.json"
	if err := os.WriteFile(ledgerFile, ledgerJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write ledger file: %w", err)
	}

	return &ReportResult{Format: CSV, Files: []string{progressFile, ledgerFile}}, nil
}

func writeMarkdownExport(d *tasks.Dashboard, outputDir, imageURL string) (*ReportResult, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ReportResult{Format: Markdown, Files: []string{}}

	var coverImageFilename string
	if imageURL != "" {
		imageData, err := DownloadImage(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to download cover image: %v\n", err)
		} else {
			coverImageFilename = "cover.jpg"
			coverImagePath := filepath.Join(outputDir, coverImageFilename)
			if err := os.WriteFile(coverImagePath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover image: %v\n", err)
				coverImageFilename = ""
			} else {
				result.Files = append(result.Files, coverImagePath)
			}
		}
	}

	mdData, err := ExportToMarkdown(d, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

func writeTextExport(d *tasks.Dashboard, path string) (*ReportResult, error) {
	textData, err := ExportToText(d)
	if err != nil {
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write text file: %w", err)
	}

	return &ReportResult{Format: Text, Files: []string{path}}, nil
}

func displayName(d *tasks.Dashboard) string {
	if d.User.Name() != "" {
		return d.User.Name()
	}
	return d.User.ExternalID()
}

func days(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

func lastActive(d *tasks.Dashboard) string {
	if t, ok := d.User.Ledger().LastActiveAt.Get(); ok {
		return t.Format("2006-01-02")
	}
	return "never"
}

func checkbox(v tasks.VideoStatus) string {
	switch v.State {
	case models.Completed:
		return "[x]"
	case models.InProgress:
		return "[~]"
	default:
		return "[ ]"
	}
}
