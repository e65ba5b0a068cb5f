package browse

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/shelf/internal/output"
	"github.com/marcus/shelf/internal/state"
)

// View renders the current screen.
func (m Model) View() string {
	var sections []string
	sections = append(sections, m.renderHeader())

	if m.snap.Status == state.Failed {
		sections = append(sections, errorBanner.Render(
			ansi.Truncate(fmt.Sprintf("Failed to load catalog: %v. Press r to retry.", m.snap.Err), m.width-2, "…")))
	}

	switch m.mode {
	case modeForm:
		if m.form != nil {
			sections = append(sections, m.form.Form.View())
		}
	case modeDetail:
		sections = append(sections, m.renderDetail())
	case modeCart:
		sections = append(sections, m.renderCart())
	case modeConfirm:
		sections = append(sections, m.renderList(), m.renderConfirm())
	default:
		sections = append(sections, m.renderList())
	}

	if m.filtering || m.filter.Value() != "" {
		sections = append(sections, m.filter.View())
	}
	if m.flash != "" {
		style := flashStyle
		if m.flashErr {
			style = flashErrStyle
		}
		sections = append(sections, style.Render(ansi.Truncate(m.flash, m.width, "…")))
	}
	sections = append(sections, m.renderHelp())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	badge := offlineBadge.Render("○ offline")
	if m.snap.Online {
		badge = onlineBadge.Render("● online")
	}
	title := headerStyle.Render("shelf")
	count := subtleStyle.Render(fmt.Sprintf("%d books · cart %d", len(m.snap.Items), m.cart.Count()))
	line := title + " " + badge + "  " + count
	if m.snap.Status == state.Loading {
		line += "  " + m.spinner.View() + subtleStyle.Render(" loading")
	}
	return line
}

func (m Model) contentWidth() int {
	w := m.width - 4 // border + padding
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) renderList() string {
	items := m.visible()
	if len(items) == 0 {
		msg := "No books yet. Press n to add one."
		switch {
		case m.snap.Status == state.Loading:
			msg = "Loading..."
		case m.filter.Value() != "":
			msg = "No books match the filter."
		case m.snap.Status == state.Failed:
			msg = "Nothing cached to show."
		}
		return panelStyle.Width(m.contentWidth()).Render(subtleStyle.Render(msg))
	}

	width := m.contentWidth()
	rows := m.height - 8
	if rows < 3 {
		rows = 3
	}
	start := 0
	if m.cursor >= rows {
		start = m.cursor - rows + 1
	}
	end := min(start+rows, len(items))

	var lines []string
	for i := start; i < end; i++ {
		b := items[i]
		price := output.FormatPrice(b.Price)
		left := fmt.Sprintf("#%-4d %s", b.ID, b.Title)
		left = ansi.Truncate(left, width-len(price)-2, "…")
		pad := width - ansi.StringWidth(left) - len(price)
		if pad < 1 {
			pad = 1
		}
		line := left + strings.Repeat(" ", pad) + priceStyle.Render(price)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderDetail() string {
	sel := m.snap.Selection
	width := m.contentWidth()

	var body string
	switch sel.Status {
	case state.Loading, state.Idle:
		body = m.spinner.View() + " Loading #" + fmt.Sprint(sel.ID) + "..."
	case state.Failed:
		body = flashErrStyle.Render(fmt.Sprintf("Could not load #%d: %v", sel.ID, sel.Err)) +
			"\n" + subtleStyle.Render("Press r to retry, esc to go back.")
	default:
		b := sel.Book
		var sb strings.Builder
		sb.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", b.ID, b.Title)))
		sb.WriteString("\n")
		sb.WriteString(priceStyle.Render(output.FormatPrice(b.Price)))
		if b.Image != "" {
			sb.WriteString("\n")
			sb.WriteString(subtleStyle.Render(ansi.Truncate(b.Image, width, "…")))
		}
		if b.Description != "" {
			sb.WriteString("\n\n")
			sb.WriteString(output.RenderDescription(b.Description, width))
		}
		body = sb.String()
	}
	return panelStyle.Width(width).Render(body)
}

func (m Model) renderCart() string {
	width := m.contentWidth()
	entries := m.cart.Entries()
	if len(entries) == 0 {
		return panelStyle.Width(width).Render(subtleStyle.Render("Cart is empty. Press a on a book to add it."))
	}

	var lines []string
	for i, e := range entries {
		sub := output.FormatPrice(e.Subtotal())
		left := ansi.Truncate(fmt.Sprintf("%s  x%d", e.Book.Title, e.Quantity), width-len(sub)-2, "…")
		pad := max(width-ansi.StringWidth(left)-len(sub), 1)
		line := left + strings.Repeat(" ", pad) + priceStyle.Render(sub)
		if i == m.cartCursor {
			line = selectedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	lines = append(lines, "", titleStyle.Render("Total: "+output.FormatPrice(m.cart.Total())))
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderConfirm() string {
	return warningText(fmt.Sprintf("Delete book #%d? (y/N)", m.confirmID))
}

func warningText(s string) string {
	return lipgloss.NewStyle().Foreground(warningColor).Bold(true).Render(s)
}

func (m Model) renderHelp() string {
	if m.showHelp {
		return m.help.FullHelpView(m.keys.FullHelp())
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}
