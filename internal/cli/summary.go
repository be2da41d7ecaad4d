package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/unitlink/internal/model"
)

// scoreRangeOrder lists histogram labels from the top band down.
var scoreRangeOrder = []string{
	model.ScoreRange95to100,
	model.ScoreRange90to95,
	model.ScoreRange85to90,
	model.ScoreRange75to85,
}

// RenderSummary renders run statistics as a boxed report. written lists the
// artifact paths, shown by base name.
func RenderSummary(stats *model.RunStats, written []string) string {
	var b strings.Builder

	section(&b, "Records")
	row(&b, "Owners (clean/total)", fmt.Sprintf("%d / %d", stats.OwnersClean, stats.OwnersTotal))
	row(&b, "Transactions (clean/total)", fmt.Sprintf("%d / %d", stats.TransactionsClean, stats.TransactionsTotal))
	for _, k := range sortedKeys(stats.ExcludedByReason) {
		row(&b, "  excluded "+string(k), fmt.Sprint(stats.ExcludedByReason[k]))
	}

	section(&b, "Matches")
	row(&b, "Matched pairs", SuccessStyle.Render(fmt.Sprint(stats.Matched)))
	row(&b, "Owner match rate", percent(stats.OwnerMatchRate))
	row(&b, "Transaction match rate", percent(stats.TransactionMatchRate))
	row(&b, "Average confidence", fmt.Sprintf("%.4f", stats.AverageConfidence))
	row(&b, "Deterministic", tier(stats.Deterministic))
	row(&b, "Fuzzy", tier(stats.Fuzzy))
	row(&b, "Manual", tier(stats.Manual))
	for _, label := range scoreRangeOrder {
		if n := stats.ScoreRanges[label]; n > 0 {
			row(&b, "  "+label, fmt.Sprint(n))
		}
	}

	section(&b, "Blocks")
	row(&b, "Total / scored / resumed", fmt.Sprintf("%d / %d / %d", stats.Blocks.Total, stats.Blocks.Scored, stats.Blocks.Resumed))
	row(&b, "One-sided projects", fmt.Sprint(stats.Blocks.Skipped))

	section(&b, "Review")
	queue := fmt.Sprint(stats.Review.QueueSize)
	if stats.Review.QueueSize > 0 {
		queue = WarningStyle.Render(queue)
	}
	row(&b, "Queue", queue)
	row(&b, "Approved / rejected", fmt.Sprintf("%d / %d", stats.Review.Approved, stats.Review.Rejected))
	if stats.Review.Conflicts > 0 {
		row(&b, "Conflicting decisions", WarningStyle.Render(fmt.Sprint(stats.Review.Conflicts)))
	}

	if len(stats.UnmatchedByReason) > 0 {
		section(&b, "Unmatched")
		for _, k := range sortedKeys(stats.UnmatchedByReason) {
			row(&b, string(k), fmt.Sprint(stats.UnmatchedByReason[k]))
		}
	}

	if len(written) > 0 {
		section(&b, "Outputs")
		names := make([]string, len(written))
		for i, p := range written {
			names[i] = filepath.Base(p)
		}
		b.WriteString(SubtleStyle.Render(strings.Join(names, "  ")))
		b.WriteString("\n")
		b.WriteString(SubtleStyle.Render(FolderIcon + " " + filepath.Dir(written[0])))
	}

	title := fmt.Sprintf("%s Linkage run %s", ChartIcon, statusLabel(stats.Status))
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

func section(b *strings.Builder, name string) {
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(BoldStyle.Render(name))
	b.WriteString("\n")
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value))
	b.WriteString("\n")
}

func tier(t model.TierStats) string {
	return fmt.Sprintf("%d accepted of %d candidates", t.Accepted, t.Candidates)
}

func percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

func statusLabel(s model.RunStatus) string {
	switch s {
	case model.RunCompleted:
		return SuccessStyle.Render(string(s))
	case model.RunCancelled:
		return WarningStyle.Render(string(s))
	case model.RunFailed:
		return ErrorStyle.Render(string(s))
	}
	return string(s)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
