package healthtips

// Categories is the fixed, ordered list of preference categories offered at
// registration and on the preferences page.
var Categories = []string{
	"Fitness",
	"Nutrition",
	"Mental Health",
	"Chronic Illness",
	"Sleep Health",
	"Immunity",
	"Stress Relief",
	"Dietary Tips",
	"Exercise",
	"Healthy Lifestyle",
}

// IsCategory reports whether name is one of Categories.
func IsCategory(name string) bool {
	for _, c := range Categories {
		if c == name {
			return true
		}
	}
	return false
}

// User is a registered account. The password never leaves the engine.
type User struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Preferences []string `json:"preferences"`
}

// HealthTip is one row of the content dataset.
type HealthTip struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Body     string `json:"body"`
}

// RecommendationSet pairs a user's preferences with the tips they select.
type RecommendationSet struct {
	Preferences []string    `json:"preferences"`
	Tips        []HealthTip `json:"recommendations"`
}

// ViewRecord is one view log entry.
type ViewRecord struct {
	UserEmail        string `json:"user_email"`
	RecommendationID int    `json:"recommendation_id"`
	Timestamp        string `json:"timestamp"` // YYYY-MM-DD HH:MM:SS, local time
}
