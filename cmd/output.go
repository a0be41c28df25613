package cmd

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-runewidth"
	"golang.org/x/sys/unix"
)

// defaultWidth is used when the output is not a terminal
const defaultWidth = 100

const ellipsis = "..."

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

// terminalWidth returns the column count of w when it is a terminal
func terminalWidth(w io.Writer) int {
	file, ok := w.(*os.File)
	if !ok || !isTerminal(w) {
		return defaultWidth
	}
	ws, err := unix.IoctlGetWinsize(int(file.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return defaultWidth
	}
	return int(ws.Col)
}

// truncateLeft shortens text to width display columns by dropping its start,
// so the file name at the end of a path stays visible.
// If width <= 0, returns text unchanged.
func truncateLeft(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}

	ellipsisWidth := runewidth.StringWidth(ellipsis)
	if width <= ellipsisWidth {
		return runewidth.Truncate(ellipsis, width, "")
	}

	keep := width - ellipsisWidth
	runes := []rune(text)
	used := 0
	start := len(runes)
	for start > 0 {
		w := runewidth.RuneWidth(runes[start-1])
		if used+w > keep {
			break
		}
		used += w
		start--
	}

	return ellipsis + string(runes[start:])
}

// truncateRight shortens text to width display columns with a trailing ellipsis.
// If width <= 0, returns text unchanged.
func truncateRight(text string, width int) string {
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}

	ellipsisWidth := runewidth.StringWidth(ellipsis)
	if width <= ellipsisWidth {
		return runewidth.Truncate(ellipsis, width, "")
	}

	return runewidth.Truncate(text, width, ellipsis)
}

// historyEntry is one body line of a history response
type historyEntry struct {
	time    string
	action  string
	status  string
	message string
}

// parseHistoryLine splits a "time\taction\tstatus\tmessage" line and formats the
// timestamp in local time.
func parseHistoryLine(line string) (historyEntry, bool) {
	fields := strings.SplitN(line, "\t", 4)
	if len(fields) != 4 {
		return historyEntry{}, false
	}
	if _, err := strconv.Atoi(fields[2]); err != nil {
		return historyEntry{}, false
	}

	entry := historyEntry{
		time:    fields[0],
		action:  fields[1],
		status:  fields[2],
		message: fields[3],
	}
	if ts, err := time.Parse(time.RFC3339, fields[0]); err == nil {
		entry.time = ts.Local().Format(time.DateTime)
	}
	if entry.action == "" {
		entry.action = "-"
	}
	return entry, true
}
