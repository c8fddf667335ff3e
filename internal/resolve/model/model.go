package model

// CatalogItem is a read-only snapshot of one printable item of a tenant.
type CatalogItem struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ShortCode       string   `json:"shortCode,omitempty"`
	EnabledMethods  []string `json:"enabledMethods"`
	PreferredMethod string   `json:"preferredMethod,omitempty"`
}

// HasMethod reports whether the storage method is enabled for the item.
func (c CatalogItem) HasMethod(method string) bool {
	for _, m := range c.EnabledMethods {
		if m == method {
			return true
		}
	}
	return false
}

// DefaultMethod returns the preferred method, or the first enabled one.
func (c CatalogItem) DefaultMethod() string {
	if c.PreferredMethod != "" && c.HasMethod(c.PreferredMethod) {
		return c.PreferredMethod
	}
	if len(c.EnabledMethods) > 0 {
		return c.EnabledMethods[0]
	}
	return ""
}

// Alias binds a normalized phrase to an item, per tenant.
type Alias struct {
	TenantID string `json:"tenantId"`
	Phrase   string `json:"phrase"`
	ItemID   string `json:"itemId"`
}

// Segment is one quantity + description fragment of an utterance.
type Segment struct {
	Raw      string `json:"raw"`
	Quantity int    `json:"quantity"`
	Text     string `json:"normalized"` // comparison key
}

type Candidate struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ResolvedEntry is the resolution of a single segment. Empty ItemID means unresolved.
type ResolvedEntry struct {
	Segment    Segment     `json:"segment"`
	ItemID     string      `json:"itemId,omitempty"`
	ItemName   string      `json:"itemName,omitempty"`
	Confidence float64     `json:"confidence"`
	Candidates []Candidate `json:"candidates"`
	ViaAlias   bool        `json:"viaAlias,omitempty"`
}

func (r ResolvedEntry) Resolved() bool { return r.ItemID != "" }

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// Decision is what the policy says to do with a local resolution.
type Decision string

const (
	DecisionAccept            Decision = "accept"
	DecisionAcceptWithWarning Decision = "accept_with_warning"
	DecisionDefer             Decision = "defer"
)

// Aggregate summarizes the resolution of a whole utterance.
type Aggregate struct {
	Segments      int     `json:"segments"`
	Resolved      int     `json:"resolved"`
	Coverage      float64 `json:"coverage"`
	AvgConfidence float64 `json:"avgConfidence"`
	Score         float64 `json:"score"`
	Tier          Tier    `json:"tier"`
}
