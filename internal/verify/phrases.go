package verify

// closedPhrases mark a posting as no longer accepting candidates. Matching is
// substring over the lowercased page body, so entries stay lowercase.
var closedPhrases = []string{
	"position has been filled",
	"this position is closed",
	"this job has expired",
	"job has been filled",
	"no longer accepting applications",
	"no longer available",
	"vacancy has closed",
	"applications are now closed",
	"this listing has been removed",
	"posting has been removed",
}

// openIndicators are positive evidence that a posting still accepts
// applications. Without at least one, an aged listing is treated as closed.
var openIndicators = []string{
	"apply now",
	"apply for this job",
	"submit your application",
	"submit application",
	"upload your resume",
	"upload resume",
	"cover letter",
	"resume",
}
