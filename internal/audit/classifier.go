package audit

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// personalDomains are consumer mailbox providers. Matching is by substring,
// so "user@gmail.com.phish.net" counts as personal.
var personalDomains = [...]string{
	"@gmail.com",
	"@googlemail.com",
	"@outlook.com",
	"@hotmail.com",
	"@live.com",
	"@msn.com",
	"@yahoo.com",
	"@ymail.com",
	"@rocketmail.com",
	"@icloud.com",
	"@me.com",
	"@mac.com",
	"@aol.com",
	"@love.com",
	"@zoho.com",
	"@mail.com",
	"@usa.com",
	"@consultant.com",
	"@engineer.com",
	"@techie.com",
	"@gmx.com",
	"@gmx.net",
	"@gmx.de",
	"@proton.me",
	"@protonmail.com",
	"@tutanota.com",
	"@tutanota.de",
	"@tutamail.com",
	"@tuta.io",
	"@yandex.com",
	"@yandex.ru",
	"@mail.ru",
	"@bk.ru",
	"@inbox.ru",
	"@list.ru",
	"@fastmail.com",
	"@fastmail.fm",
	"@fastmail.net",
	"@mailbolt.com",
	"@pm.me",
}

// PersonalDomains returns a copy of the built-in domain list.
func PersonalDomains() []string {
	out := make([]string, len(personalDomains))
	copy(out, personalDomains[:])
	return out
}

// Classifier flags recipient_status values that mention a personal domain.
type Classifier struct {
	domains []string
	lower   cases.Caser
}

// NewClassifier builds a classifier over the built-in domains followed by
// any extras. Extras are lower-cased and blanks dropped.
func NewClassifier(extra ...string) *Classifier {
	c := &Classifier{
		domains: PersonalDomains(),
		lower:   cases.Lower(language.Und),
	}
	for _, d := range extra {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		c.domains = append(c.domains, c.lower.String(d))
	}
	return c
}

// IsPersonal returns 1 when the lower-cased value contains a personal domain
// and 0 otherwise. Null and empty cells are 0.
func (c *Classifier) IsPersonal(cell Cell) int {
	if cell.Null() || cell.Value == "" {
		return 0
	}
	value := c.lower.String(cell.Value)
	for _, d := range c.domains {
		if strings.Contains(value, d) {
			return 1
		}
	}
	return 0
}

// ClassifyTable writes IsPersonal of statusColumn into outputColumn for every
// row, replacing the column if it already exists. It returns the number of
// personal rows.
func (c *Classifier) ClassifyTable(t *Table, statusColumn, outputColumn string) int {
	src := t.ColumnIndex(statusColumn)
	if src < 0 {
		return 0
	}

	dst := t.ColumnIndex(outputColumn)
	if dst < 0 {
		t.Columns = append(t.Columns, outputColumn)
		dst = len(t.Columns) - 1
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], Cell{})
		}
	}

	personal := 0
	for _, row := range t.Rows {
		flag := c.IsPersonal(row[src])
		personal += flag
		if flag == 1 {
			row[dst] = Text("1")
		} else {
			row[dst] = Text("0")
		}
	}
	return personal
}
