package domain

// ConnectAccountStatus summarizes a connect account's onboarding state
type ConnectAccountStatus struct {
	AccountID           string   `json:"account_id"`
	IsActive            bool     `json:"is_active"`
	RequiresInformation bool     `json:"requires_information"`
	CurrentlyDue        []string `json:"currently_due"`
	EventuallyDue       []string `json:"eventually_due"`
	PastDue             []string `json:"past_due"`
	ChargesEnabled      bool     `json:"charges_enabled"`
	PayoutsEnabled      bool     `json:"payouts_enabled"`
}
