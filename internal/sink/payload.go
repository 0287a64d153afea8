package sink

import "github.com/sells-group/leadscan/internal/model"

// Payload is the JSON body posted to the sink. Optional fields are omitted
// when empty so a five-column sheet keeps working.
type Payload struct {
	Name      string   `json:"name"`
	Company   string   `json:"company"`
	Notes     string   `json:"notes"`
	ScannedBy string   `json:"scannedBy"`
	Timestamp string   `json:"timestamp"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Rating    int      `json:"rating,omitempty"`
	Products  []string `json:"products,omitempty"`
}

func payloadFor(l model.Lead) Payload {
	return Payload{
		Name:      l.Name,
		Company:   l.Company,
		Notes:     l.Notes,
		ScannedBy: l.ScannedBy,
		Timestamp: l.Timestamp,
		Email:     l.Email,
		Phone:     l.Phone,
		Rating:    l.Rating,
		Products:  l.Products,
	}
}
