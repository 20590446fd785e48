package homework

// Status is a review status code reported by the API.
type Status string

// Known review statuses.
const (
	StatusApproved  Status = "approved"
	StatusReviewing Status = "reviewing"
	StatusRejected  Status = "rejected"
)

// Sentence returns the user-facing sentence for a known status. ok is false for any
// status outside the closed set above.
func (s Status) Sentence() (text string, ok bool) {
	switch s {
	case StatusApproved:
		return "Работа проверена: ревьюеру всё понравилось. Ура!", true
	case StatusReviewing:
		return "Работа взята на проверку ревьюером.", true
	case StatusRejected:
		return "Работа проверена: у ревьюера есть замечания.", true
	default:
		return "", false
	}
}

// Known reports whether s is one of the recognised statuses.
func (s Status) Known() bool {
	_, ok := s.Sentence()
	return ok
}
