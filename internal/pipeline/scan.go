package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/backmassage/streamplug/internal/display"
)

const (
	progressWidth = 80
	maxNameWidth  = 50
)

// Scan discovers media under root, file-tests each one, and prints a
// report table and summary. Files whose stat fails are counted as failed.
func (r *Runner) Scan(ctx context.Context, root string) (RunStats, error) {
	log := r.log()
	var stats RunStats

	files, err := Discover(root, r.Cfg.Excludes)
	if err != nil {
		return stats, fmt.Errorf("discover %s: %w", root, err)
	}
	stats.Total = len(files)
	if len(files) == 0 {
		log.Warn("no media files found", "dir", root)
		return stats, nil
	}
	log.Info("scanning", "dir", root, "files", len(files))

	reports := make([]FileReport, 0, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			r.clearLine()
			log.Warn("interrupted", "tested", stats.Current)
			return stats, err
		}
		stats.Current = i + 1
		r.printProgress(stats.Current, stats.Total, stats.Skipped, filepath.Base(path))

		rep, err := r.Test(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				r.clearLine()
				return stats, ctx.Err()
			}
			r.clearLine()
			log.Warn("test failed", "file", path, "error", err)
			stats.Failed++
			continue
		}
		for _, v := range rep.Verdicts {
			if v.Err != nil {
				r.clearLine()
				log.Warn("plugin failed", "plugin", v.Plugin, "file", path, "error", v.Err)
			}
		}
		stats.Add(rep)
		reports = append(reports, rep)
	}
	r.clearLine()

	r.printScanTable(root, reports)
	r.printScanSummary(&stats)
	return stats, nil
}

// PrintReport writes one file's verdicts, one line per plugin.
func (r *Runner) PrintReport(rep FileReport) {
	w := r.out()
	fmt.Fprintf(w, "%s  %s\n", r.Palette.Title(filepath.Base(rep.Path)), display.FormatBytes(rep.Size))
	if len(rep.Verdicts) == 0 {
		fmt.Fprintln(w, "  no enabled plugin tests files")
		return
	}
	for _, v := range rep.Verdicts {
		line := fmt.Sprintf("  %-32s %s", v.Plugin, r.paintOutcome(v.Outcome, string(v.Outcome)))
		if v.Err != nil {
			line += "  " + r.Palette.Dim(v.Err.Error())
		}
		fmt.Fprintln(w, line)
	}
}

func (r *Runner) printScanTable(root string, reports []FileReport) {
	w := r.out()
	nameW, sizeW, resW := len("File"), len("Size"), len("Result")
	rows := make([][3]string, len(reports))
	for i, rep := range reports {
		name := rep.Path
		if rel, err := filepath.Rel(root, rep.Path); err == nil {
			name = rel
		}
		rows[i] = [3]string{display.Truncate(name, maxNameWidth), display.FormatBytes(rep.Size), string(rep.Outcome())}
		nameW = max(nameW, len([]rune(rows[i][0])))
		sizeW = max(sizeW, len(rows[i][1]))
		resW = max(resW, len(rows[i][2]))
	}

	header := fmt.Sprintf("  %-*s  %*s  %-*s  %s", nameW, "File", sizeW, "Size", resW, "Result", "Plugins")
	fmt.Fprintln(w, r.Palette.Title(header))
	fmt.Fprintln(w, "  "+strings.Repeat("─", len(header)-2))

	for i, rep := range reports {
		// Pad the plain text first so escape bytes do not count as width.
		name := rows[i][0] + strings.Repeat(" ", nameW-len([]rune(rows[i][0])))
		result := r.paintOutcome(rep.Outcome(), fmt.Sprintf("%-*s", resW, rows[i][2]))
		fmt.Fprintf(w, "  %s  %*s  %s  %s\n", name, sizeW, rows[i][1], result, strings.Join(rep.PendingPlugins(), ", "))
	}
	fmt.Fprintln(w)
}

func (r *Runner) printScanSummary(stats *RunStats) {
	log := r.log()
	log.Info("scan finished",
		"files", display.FormatCount(stats.Current),
		"pending", stats.Pending,
		"conforming", stats.Conforming,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	w := r.out()
	fmt.Fprintf(w, "  %s files, %s\n", display.FormatCount(stats.Current), display.FormatBytes(stats.TotalInputBytes))
	fmt.Fprintf(w, "  %s  %s (%s, %d%% of scanned bytes)\n",
		r.Palette.Pending("pending"), display.FormatCount(stats.Pending), display.FormatBytes(stats.PendingBytes), stats.PendingPercent())
	fmt.Fprintf(w, "  %s %s\n", r.Palette.OK("conforms"), display.FormatCount(stats.Conforming))
	if stats.Skipped > 0 {
		fmt.Fprintf(w, "  %s  %s\n", r.Palette.Dim("skipped"), display.FormatCount(stats.Skipped))
	}
	if stats.Failed > 0 {
		fmt.Fprintf(w, "  %s   %s\n", r.Palette.Bad("failed"), display.FormatCount(stats.Failed))
	}
}

func (r *Runner) paintOutcome(o Outcome, s string) string {
	switch o {
	case OutcomePending:
		return r.Palette.Pending(s)
	case OutcomeConforms:
		return r.Palette.OK(s)
	case OutcomeFailed:
		return r.Palette.Bad(s)
	default:
		return r.Palette.Dim(s)
	}
}

// printProgress shows a live test counter. On a terminal it writes an
// inline \r-overwritten line; otherwise it is a no-op.
func (r *Runner) printProgress(current, total, skipped int, name string) {
	if !r.Live {
		return
	}
	status := fmt.Sprintf("  Testing [%d/%d] %d%% ", current, total, current*100/total)
	if skipped > 0 {
		status += fmt.Sprintf("(%d skipped) ", skipped)
	}
	status += display.Truncate(name, 40)
	if n := len([]rune(status)); n < progressWidth {
		status += strings.Repeat(" ", progressWidth-n)
	}
	fmt.Fprintf(r.out(), "\r%s", status)
}

// clearLine erases the inline progress line.
func (r *Runner) clearLine() {
	if !r.Live {
		return
	}
	fmt.Fprintf(r.out(), "\r%s\r", strings.Repeat(" ", progressWidth))
}
