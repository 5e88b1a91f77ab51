package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// MarkdownFormatter renders a Summary as a Markdown document with
// localised headings.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Capture Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", l10n.T("Generated"), s.GeneratedAt.Format(time.RFC3339))

	row := func(item, value string) {
		fmt.Fprintf(&b, "| %s | %s |\n", item, value)
	}

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Results"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", l10n.T("Item"), l10n.T("Value"))
	row(l10n.T("Source"), s.Source)
	row(l10n.T("Output Directory"), s.OutputDir)
	if !s.StartedAt.IsZero() {
		row(l10n.T("Started"), s.StartedAt.Format(time.RFC3339))
	}
	row(l10n.T("Duration"), s.Duration.Round(time.Millisecond).String())
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Frames"))
	fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", l10n.T("Item"), l10n.T("Value"))
	row(l10n.T("Saved"), fmt.Sprintf("%d", s.Frames.Saved))
	row(l10n.T("Dropped"), fmt.Sprintf("%d", s.Frames.Dropped))
	if s.Frames.Failed > 0 {
		row(l10n.T("Failed"), fmt.Sprintf("%d", s.Frames.Failed))
	}
	row(l10n.T("Total Size"), formatBytes(s.Frames.Bytes))
	row(l10n.T("Average Frame Size"), formatBytes(s.AverageFrameSize()))
	row(l10n.T("Average Frame Rate"), fmt.Sprintf("%.2f fps", s.FPS()))

	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit:
		return fmt.Sprintf("%.2f MB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%.2f KB", float64(n)/unit)
	}
	return fmt.Sprintf("%d B", n)
}

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		"Capture Summary":    "キャプチャサマリー",
		"Generated":          "生成日時",
		"Results":            "実行結果",
		"Frames":             "フレーム",
		"Item":               "項目",
		"Value":              "値",
		"Source":             "ソース",
		"Output Directory":   "出力ディレクトリ",
		"Started":            "開始日時",
		"Duration":           "所要時間",
		"Saved":              "保存",
		"Dropped":            "欠落",
		"Failed":             "失敗",
		"Total Size":         "合計サイズ",
		"Average Frame Size": "平均フレームサイズ",
		"Average Frame Rate": "平均フレームレート",
	})
}
