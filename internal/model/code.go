package model

import (
	"fmt"
	"regexp"
)

// TicketCodePattern: коды вида FBT-2025-00103.
var TicketCodePattern = regexp.MustCompile(`^FBT-\d{4}-\d{5}$`)

// TicketCodeSpace: число пятизначных кодов на один год.
const TicketCodeSpace = 100000

func FormatTicketCode(year, seq int) string {
	return fmt.Sprintf("FBT-%d-%05d", year, seq%TicketCodeSpace)
}
