package domain

// EntityType identifies what kind of municipal record a payment settles.
type EntityType string

const (
	EntityTypePermit             EntityType = "permit"
	EntityTypeBusinessLicense    EntityType = "business_license"
	EntityTypeTaxSubmission      EntityType = "tax_submission"
	EntityTypeServiceApplication EntityType = "service_application"
)

// IsValid reports whether the entity type is one the orchestrator accepts
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypePermit, EntityTypeBusinessLicense, EntityTypeTaxSubmission, EntityTypeServiceApplication:
		return true
	}
	return false
}

// EntityRef is an opaque (type, id) pair identifying what is being paid for.
// The orchestration layer is entity-agnostic and only threads the pair
// through to the processing functions.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   string     `json:"entity_id"`
}

// IsZero reports whether the reference is empty
func (r EntityRef) IsZero() bool {
	return r.Type == "" && r.ID == ""
}

// CustomerInfo carries the display identity forwarded with wallet payments
type CustomerInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"user_email"`
}
