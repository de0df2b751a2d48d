package models

import (
	"time"

	"github.com/lib/pq"
)

// ContactFields are the raw, CRM-owned fields the normalizer reads.
type ContactFields struct {
	Name           string         `json:"name" db:"name"`
	PrimaryEmail   string         `json:"primary_email" db:"primary_email"`
	SecondaryEmail string         `json:"secondary_email" db:"secondary_email"`
	PrimaryPhone   string         `json:"primary_phone" db:"primary_phone"`
	SecondaryPhone string         `json:"secondary_phone" db:"secondary_phone"`
	OtherEmails    pq.StringArray `json:"other_emails" db:"other_emails"`
	OtherPhones    pq.StringArray `json:"other_phones" db:"other_phones"`
	Company        string         `json:"company" db:"company"`
	Website        string         `json:"website" db:"website"`
	Address        string         `json:"address" db:"address"`
}

// NormalizedFields are written back onto the contact by normalization.
type NormalizedFields struct {
	FirstNameNorm     string         `json:"first_name_norm" db:"first_name_norm"`
	LastNameNorm      string         `json:"last_name_norm" db:"last_name_norm"`
	FullNameNorm      string         `json:"full_name_norm" db:"full_name_norm"`
	EmailNorm         string         `json:"email_norm" db:"email_norm"`
	EmailLocal        string         `json:"email_local" db:"email_local"`
	EmailDomain       string         `json:"email_domain" db:"email_domain"`
	PhoneE164         string         `json:"phone_e164" db:"phone_e164"`
	CompanyNorm       string         `json:"company_norm" db:"company_norm"`
	WebsiteRoot       string         `json:"website_root" db:"website_root"`
	AddressNorm       string         `json:"address_norm" db:"address_norm"`
	ZipNorm           string         `json:"zip_norm" db:"zip_norm"`
	OtherEmailsNorm   pq.StringArray `json:"other_emails_norm" db:"other_emails_norm"`
	OtherPhonesNorm   pq.StringArray `json:"other_phones_norm" db:"other_phones_norm"`
	LastNameSoundex   string         `json:"last_name_soundex" db:"last_name_soundex"`
	LastNameMetaphone string         `json:"last_name_metaphone" db:"last_name_metaphone"`
}

// Contact is a CRM contact row. Only the normalized fields and normalized_at
// are written by this service.
type Contact struct {
	ID int64 `json:"id" db:"id"`
	ContactFields
	NormalizedFields
	NormalizedAt *time.Time `json:"normalized_at,omitempty" db:"normalized_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

func (c *Contact) IsNormalized() bool {
	return c.NormalizedAt != nil
}

func (c *Contact) IsDeleted() bool {
	return c.DeletedAt != nil
}
