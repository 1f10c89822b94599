package cost

// Report formatting constants.
const (
	CentPlaces     = 2     // money amounts are rounded to cents
	NoTicketsLabel = "N/A" // ticket type shown for events with no ticket lines
)
