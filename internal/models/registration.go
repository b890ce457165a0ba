package models

import "time"

// Registration is a committed team registration. TeamNumber is the primary
// key; RegistrationDateTime is set at the commit instant and immutable.
type Registration struct {
	TeamNumber           string    `db:"team_number" json:"teamNumber"`
	TeamName             string    `db:"team_name" json:"teamName"`
	TeamLeader           string    `db:"team_leader" json:"teamLeader"`
	ProblemStatementID   string    `db:"problem_statement_id" json:"problemStatementId"`
	RegistrationDateTime time.Time `db:"registration_datetime" json:"registrationDateTime"`
}

// RegistrationDetail joins a registration with its problem statement's
// display fields. The pointers stay nil when the statement has since been
// deleted.
type RegistrationDetail struct {
	Registration
	ProblemTitle      *string `db:"problem_title" json:"problemTitle"`
	ProblemCategory   *string `db:"problem_category" json:"problemCategory"`
	ProblemDifficulty *string `db:"problem_difficulty" json:"problemDifficulty"`
}
