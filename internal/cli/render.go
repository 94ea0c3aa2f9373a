package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/vedran77/blink/internal/domain"
)

func renderUsers(w io.Writer, users []domain.UserPresence, isBlocked func(string) bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Nickname", "Status", "Role", "Age", "Gender", "Country", "ID"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, u := range users {
		status := "offline"
		if u.Online {
			status = "online"
		}
		if isBlocked != nil && isBlocked(u.ID) {
			status = "blocked"
		}
		table.Append([]string{
			u.Nickname,
			status,
			string(u.Role),
			strconv.Itoa(u.Age),
			u.Gender,
			u.CountryCode,
			u.ID,
		})
	}
	table.Render()
}

// formatMessage renders one line of chat. names maps user IDs to nicknames.
func formatMessage(m domain.Message, self string, names map[string]string, now time.Time) string {
	stamp := m.CreatedAt.Local().Format("15:04")
	left := m.ExpiresAt.Sub(now).Round(time.Minute)

	if m.SenderID == self {
		to := nameOf(m.ReceiverID, names)
		return color.Gray.Sprintf("[%s] you → %s: %s (%s left)", stamp, to, m.Content, left)
	}

	from := nameOf(m.SenderID, names)
	line := fmt.Sprintf("[%s] %s: %s (%s left)", stamp, from, m.Content, left)
	if !m.Read {
		return color.Cyan.Sprint("* " + line)
	}
	return color.Cyan.Sprint(line)
}

func nameOf(id string, names map[string]string) string {
	if n, ok := names[id]; ok && n != "" {
		return n
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
