package feed

// Message class flags. Consumers subscribe by mask.
const (
	FlagEstimate = 1
	FlagWarning  = 2
	FlagSummary  = 4
)
