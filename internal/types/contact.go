package types

import "time"

// ContactStatus is the lifecycle status of a contact
type ContactStatus string

const (
	ContactActive    ContactStatus = "active"
	ContactDoNotCall ContactStatus = "do-not-call"
	ContactFollowUp  ContactStatus = "follow-up"
	ContactConverted ContactStatus = "converted"
)

// ContactOrigin records how a contact entered the directory
type ContactOrigin string

const (
	OriginManual   ContactOrigin = "manual"
	OriginImport   ContactOrigin = "import"
	OriginWeb      ContactOrigin = "web"
	OriginReferral ContactOrigin = "referral"
)

// Contact is a directory entry. The engine only reads it and stamps LastCalled.
type Contact struct {
	ContactID  string        `json:"contactId" yaml:"id"`
	Name       string        `json:"name" yaml:"name"`
	Phone      string        `json:"phone" yaml:"phone"` // E.164
	Email      string        `json:"email,omitempty" yaml:"email"`
	Company    string        `json:"company,omitempty" yaml:"company"`
	Tags       []string      `json:"tags,omitempty" yaml:"tags"`
	Status     ContactStatus `json:"status" yaml:"status"`
	Origin     ContactOrigin `json:"origin" yaml:"origin"`
	CreatedAt  time.Time     `json:"createdAt" yaml:"created_at"`
	LastCalled *time.Time    `json:"lastCalled,omitempty" yaml:"-"`
}
