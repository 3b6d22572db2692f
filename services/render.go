package services

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"flat-stats/models"
)

// significantChange is the smallest absolute change shown in condensed views.
const significantChange = 1.0

// Renderer turns reports into the plain text summaries shown to readers.
type Renderer struct{}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Arrow formats a signed change with its direction glyph.
func Arrow(v float64) string {
	switch {
	case v > 0:
		return "⬆️ +" + number(v)
	case v < 0:
		return "🔻️ " + number(v)
	}
	return "0"
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RoomHeading names a room type group, e.g. "2-room apartments".
func RoomHeading(roomType string) string {
	if IsStudio(roomType) {
		return "Studios"
	}
	return roomType + "-room apartments"
}

// ComplexHeading names a residential complex group.
func ComplexHeading(title string) string {
	return "🏠 " + title
}

// MetricLines renders the price per area, price, area and count lines of one
// group. onlyToday switches to the one-day cohort layout; significantOnly
// drops lines whose change is below one unit.
func (r *Renderer) MetricLines(g models.GroupStat, onlyToday, significantOnly bool) []string {
	keep := func(change float64) bool {
		return !significantOnly || math.Abs(change) >= significantChange
	}

	var lines []string
	if keep(g.ChangeAvgPricePerArea) {
		lines = append(lines, metricLine("Price per sq. meter: ", g.ChangeAvgPricePerArea,
			g.Previous.AvgPricePerArea, g.Current.AvgPricePerArea, "₽", "K", onlyToday))
	}
	if keep(g.ChangeAvgPrice) {
		lines = append(lines, metricLine("Price: ", g.ChangeAvgPrice,
			g.Previous.AvgPrice, g.Current.AvgPrice, "₽", "M", onlyToday))
	}
	if keep(g.ChangeAvgTotalArea) {
		lines = append(lines, metricLine("Square: ", g.ChangeAvgTotalArea,
			g.Previous.AvgTotalArea, g.Current.AvgTotalArea, "", " м²", onlyToday))
	}
	if keep(float64(g.CountDelta)) {
		lines = append(lines, countLine(g, onlyToday))
	}
	return lines
}

func metricLine(label string, change, prev, cur float64, prefix, unit string, onlyToday bool) string {
	if !onlyToday {
		return fmt.Sprintf("%s%s %% (%s%s%s -> %s%s%s)", label, Arrow(change),
			prefix, number(prev), unit, prefix, number(cur), unit)
	}
	if prev == 0 {
		return fmt.Sprintf("%s%s%s%s", label, prefix, number(cur), unit)
	}
	return fmt.Sprintf("%s%s %% (%s%s%s | %s%s%s)", label, Arrow(change),
		prefix, number(cur), unit, prefix, number(prev), unit)
}

func countLine(g models.GroupStat, onlyToday bool) string {
	const label = "Number: "
	counts := fmt.Sprintf("(%d -> %d fl.)", g.Previous.Count, g.Current.Count)
	if !onlyToday {
		return fmt.Sprintf("%s%s fl. %s", label, Arrow(float64(g.CountDelta)), counts)
	}

	shown := Arrow(float64(g.CountAppeared))
	hidden := Arrow(float64(-g.CountDisappeared))
	switch {
	case g.CountAppeared == 0 && g.CountDisappeared == 0:
		return label + "0 " + counts
	case g.CountAppeared == 0:
		return label + hidden + " " + counts
	case g.CountDisappeared == 0:
		return label + shown + " " + counts
	}
	return label + shown + " / " + hidden + " " + counts
}

// Block renders a heading followed by the metric lines of g. It returns ""
// when no line survives the filter.
func (r *Renderer) Block(heading string, g models.GroupStat, onlyToday, significantOnly bool) string {
	lines := r.MetricLines(g, onlyToday, significantOnly)
	if len(lines) == 0 {
		return ""
	}
	return heading + "\n" + strings.Join(lines, "\n")
}

func (r *Renderer) blocks(stats []models.GroupStat, heading func(models.GroupStat) string, onlyToday, significantOnly bool) string {
	var parts []string
	for _, g := range stats {
		if b := r.Block(heading(g), g, onlyToday, significantOnly); b != "" {
			parts = append(parts, b)
		}
	}
	return strings.Join(parts, "\n\n")
}

func byRoom(g models.GroupStat) string    { return RoomHeading(g.RoomType) }
func byComplex(g models.GroupStat) string { return ComplexHeading(g.ComplexTitle) }

func dates(sr *models.ScopeReport) (prev, cur string) {
	return sr.PreviousDate.Format(models.DateLayout), sr.CurrentDate.Format(models.DateLayout)
}

// Header is the first line of the short summary of a stat type.
func (r *Renderer) Header(sr *models.ScopeReport, t models.StatType) string {
	prev, cur := dates(sr)
	title := sr.Scope.Title
	switch t {
	case models.StatNew:
		return fmt.Sprintf("📊 📃 The general summary of new flats relative to old ones in %s on %s:", title, cur)
	case models.StatOld:
		return fmt.Sprintf("📊 📃 The general summary old flats in %s from %s to %s:", title, prev, cur)
	case models.StatSold:
		return fmt.Sprintf("📊 📃 The general summary of sold flats relative to old ones in %s on %s:", title, cur)
	}
	return fmt.Sprintf("📊 📃 The general summary for %s from %s to %s:", title, prev, cur)
}

// ChangesHeader is the first line of the full changes text of a stat type.
func (r *Renderer) ChangesHeader(sr *models.ScopeReport, t models.StatType) string {
	prev, cur := dates(sr)
	title := sr.Scope.Title
	switch t {
	case models.StatNew:
		return fmt.Sprintf("📤 The changes in %s by new flats relative to old ones on %s:", title, cur)
	case models.StatOld:
		return fmt.Sprintf("📤 The changes in %s by old flats from %s to %s:", title, prev, cur)
	case models.StatSold:
		return fmt.Sprintf("📤 The changes in %s by sold flats relative to old ones on %s:", title, cur)
	}
	return fmt.Sprintf("📤 The changes in %s from %s to %s:", title, prev, cur)
}

// Summary renders the short summary of one stat type.
func (r *Renderer) Summary(sr *models.ScopeReport, t models.StatType) (string, error) {
	stat, err := sr.Stat(t)
	if err != nil {
		return "", err
	}
	text := r.Header(sr, t)
	if stat.Summary != nil {
		text += "\n" + strings.Join(r.MetricLines(*stat.Summary, t.OnlyToday(), false), "\n")
	}
	return text, nil
}

// Changes renders the full summary plus the significant changes by room type
// and by complex.
func (r *Renderer) Changes(sr *models.ScopeReport, t models.StatType) (string, error) {
	stat, err := sr.Stat(t)
	if err != nil {
		return "", err
	}
	return r.ChangesHeader(sr, t) + "\n" + r.changesBody(stat), nil
}

// Combined renders the consolidated view over every scope.
func (r *Renderer) Combined(sr *models.ScopeReport) (string, error) {
	stat, err := sr.Stat(models.StatAll)
	if err != nil {
		return "", err
	}
	prev, cur := dates(sr)
	header := fmt.Sprintf("📤 The general summary of %s from %s to %s:", sr.Scope.Title, prev, cur)
	return header + "\n" + r.changesBody(stat), nil
}

func (r *Renderer) changesBody(stat *models.StatReport) string {
	onlyToday := stat.Type.OnlyToday()

	var b strings.Builder
	b.WriteString("📊 📃 The general summary:\n")
	if stat.Summary != nil {
		b.WriteString(strings.Join(r.MetricLines(*stat.Summary, onlyToday, false), "\n"))
	}
	b.WriteString("\n\n📊 🔢 The significant changes by number of rooms:\n")
	b.WriteString(r.blocks(stat.ByRoomType, byRoom, onlyToday, true))
	b.WriteString("\n\n📊 🏘 The significant changes by residential complex:\n")
	b.WriteString(r.blocks(stat.ByComplex, byComplex, onlyToday, true))
	return b.String()
}

// ComplexSections renders one text per complex with its room type blocks.
func (r *Renderer) ComplexSections(sr *models.ScopeReport, t models.StatType) ([]models.Section, []string, error) {
	stat, err := sr.Stat(t)
	if err != nil {
		return nil, nil, err
	}
	texts := make([]string, len(stat.ComplexSections))
	for i, sec := range stat.ComplexSections {
		texts[i] = ComplexHeading(sec.Title) + "\n" + r.blocks(sec.Stats, byRoom, t.OnlyToday(), false)
	}
	return stat.ComplexSections, texts, nil
}

// RoomSections renders one text per room type with its complex blocks.
func (r *Renderer) RoomSections(sr *models.ScopeReport, t models.StatType) ([]models.Section, []string, error) {
	stat, err := sr.Stat(t)
	if err != nil {
		return nil, nil, err
	}
	texts := make([]string, len(stat.RoomSections))
	for i, sec := range stat.RoomSections {
		texts[i] = RoomHeading(sec.Title) + "\n" + r.blocks(sec.Stats, byComplex, t.OnlyToday(), false)
	}
	return stat.RoomSections, texts, nil
}

// Print writes the combined view and the short summaries of every scope.
func (r *Renderer) Print(w io.Writer, report *models.Report) error {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n%s\n  FLAT PRICE SUMMARY as of %s  (run %s)\n%s\n\n",
		sep, report.AsOf.Format(models.DateLayout), report.RunID, sep)

	if report.Combined != nil {
		text, err := r.Combined(report.Combined)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n\n", text)
	}

	for _, sr := range report.Scopes {
		fmt.Fprintf(w, "%s\n", thin)
		for _, t := range models.StatTypes {
			text, err := r.Summary(sr, t)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\n\n", text)
		}
	}

	_, err := fmt.Fprintf(w, "%s\n", sep)
	return err
}
