package models

import (
	"time"

	"github.com/lib/pq"
)

// ProblemStatement is a catalog entry teams can register against.
type ProblemStatement struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	MaxSelections int            `db:"max_selections" json:"maxSelections"`
	Category      *string        `db:"category" json:"category"`
	Difficulty    *string        `db:"difficulty" json:"difficulty"`
	Technologies  pq.StringArray `db:"technologies" json:"technologies"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
}

// ClampMaxSelections coerces non-positive capacities to 1.
func (p *ProblemStatement) ClampMaxSelections() {
	if p.MaxSelections < 1 {
		p.MaxSelections = 1
	}
}

// ProblemStatementView augments a catalog entry with live-derived fields.
// SelectedCount and IsAvailable are computed per read, never persisted.
type ProblemStatementView struct {
	ProblemStatement
	SelectedCount int  `db:"selected_count" json:"selectedCount"`
	IsAvailable   bool `db:"-" json:"isAvailable"`
}

// ProblemStatementUpdate carries a partial field merge; nil pointers leave
// the stored value untouched.
type ProblemStatementUpdate struct {
	Title         *string   `json:"title"`
	Description   *string   `json:"description"`
	MaxSelections *int      `json:"maxSelections"`
	Category      *string   `json:"category"`
	Difficulty    *string   `json:"difficulty"`
	Technologies  *[]string `json:"technologies"`
}

// Empty reports whether the update touches no fields.
func (u ProblemStatementUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.MaxSelections == nil &&
		u.Category == nil && u.Difficulty == nil && u.Technologies == nil
}
