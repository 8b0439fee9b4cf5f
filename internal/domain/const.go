package domain

const (
	RequesterSubjectCtxKey    = "af-requesterSubject"
	RequesterClaimsCtxKey     = "af-requesterClaims"
	RequesterGenerationCtxKey = "af-requesterGeneration"
)

// DayFormat is the UTC calendar-day key of the usage ledger. Quota resets the
// instant the UTC date changes; each new day starts its own zero-valued row.
const DayFormat = "2006-01-02"

// DispensationChannel is the redis channel committed claims are published to.
const DispensationChannel = "af:dispensations"
