// Package output provides styled terminal output helpers (success, error,
// warning, book and cart formatting) using lipgloss.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/shelf/internal/cart"
	"github.com/marcus/shelf/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	priceStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// Success prints a success message
func Success(format string, args ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...any) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...any) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

// JSON outputs data as JSON
func JSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidInput = "invalid_input"
	ErrCodeNetwork      = "network_error"
	ErrCodeStorage      = "storage_error"
	ErrCodeInternal     = "internal"
)

// ErrorCode maps an error to its JSON error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrValidation):
		return ErrCodeInvalidInput
	case errors.Is(err, models.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, models.ErrStorage):
		return ErrCodeStorage
	case errors.Is(err, models.ErrNetwork):
		return ErrCodeNetwork
	}
	return ErrCodeInternal
}

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	data, _ := json.Marshal(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
	fmt.Println(string(data))
}

// FormatPrice renders a price with two decimals.
func FormatPrice(p decimal.Decimal) string {
	return "$" + p.StringFixed(2)
}

// FormatBookShort formats a book as one list row.
func FormatBookShort(b models.Book) string {
	parts := []string{
		idStyle.Render(fmt.Sprintf("#%d", b.ID)),
		b.Title,
		priceStyle.Render(FormatPrice(b.Price)),
	}
	if b.Description != "" {
		parts = append(parts, subtleStyle.Render(OneLine(b.Description, 48)))
	}
	return strings.Join(parts, "  ")
}

// FormatBookLong formats a book with its rendered description.
func FormatBookLong(b models.Book) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("#%d: %s", b.ID, b.Title)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Price: %s\n", priceStyle.Render(FormatPrice(b.Price))))
	if b.Image != "" {
		sb.WriteString(fmt.Sprintf("Image: %s\n", b.Image))
	}

	if b.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(subtleStyle.Render("Description:"))
		sb.WriteString("\n")
		sb.WriteString(RenderDescription(b.Description, TerminalWidth(defaultMarkdownWidth)))
		sb.WriteString("\n")
	}

	return sb.String()
}

// FormatCart renders cart entries and the total.
func FormatCart(entries []cart.Entry, total decimal.Decimal) string {
	if len(entries) == 0 {
		return subtleStyle.Render("Cart is empty")
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s  %s  x%d  %s\n",
			idStyle.Render(fmt.Sprintf("#%d", e.Book.ID)),
			e.Book.Title,
			e.Quantity,
			priceStyle.Render(FormatPrice(e.Subtotal())),
		))
	}
	sb.WriteString(titleStyle.Render("Total: " + FormatPrice(total)))
	return sb.String()
}

// ConnectivityBadge renders the online/offline banner text.
func ConnectivityBadge(online bool) string {
	if online {
		return onlineStyle.Render("● online")
	}
	return offlineStyle.Render("○ offline (local store)")
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nFAILURES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// OneLine collapses whitespace and truncates to limit runes with an ellipsis.
func OneLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	if limit == 1 {
		return "…"
	}
	return string(r[:limit-1]) + "…"
}

// BulletList formats items as a bulleted list with optional indentation
func BulletList(items []string, indent int) []string {
	prefix := strings.Repeat(" ", indent)
	result := make([]string, len(items))
	for i, item := range items {
		result[i] = prefix + "- " + item
	}
	return result
}
