package normalizers

import (
	"github.com/lib/pq"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ContactNormalizer maps raw contact fields to normalized fields. It has no
// mutable state and is safe for concurrent use.
type ContactNormalizer struct {
	encoder PhoneticEncoder
}

func NewContactNormalizer(encoder PhoneticEncoder) *ContactNormalizer {
	if encoder == nil {
		encoder = MatchrEncoder{}
	}
	return &ContactNormalizer{encoder: encoder}
}

var defaultNormalizer = NewContactNormalizer(nil)

// NormalizeContact normalizes raw with the matchr phonetic encoder.
func NormalizeContact(raw models.ContactFields) models.NormalizedFields {
	return defaultNormalizer.Normalize(raw)
}

// Normalize never fails: malformed or missing fields normalize to "".
func (n *ContactNormalizer) Normalize(raw models.ContactFields) models.NormalizedFields {
	name := SplitName(raw.Name)
	email := NormalizeEmail(raw.PrimaryEmail)
	local, domain := SplitEmail(email)
	phone := NormalizePhone(raw.PrimaryPhone)
	address := NormalizeAddress(raw.Address)

	otherEmails := make([]string, 0, len(raw.OtherEmails)+1)
	otherEmails = append(otherEmails, NormalizeEmail(raw.SecondaryEmail))
	for _, e := range raw.OtherEmails {
		otherEmails = append(otherEmails, NormalizeEmail(e))
	}

	otherPhones := make([]string, 0, len(raw.OtherPhones)+1)
	otherPhones = append(otherPhones, NormalizePhone(raw.SecondaryPhone))
	for _, p := range raw.OtherPhones {
		otherPhones = append(otherPhones, NormalizePhone(p))
	}

	return models.NormalizedFields{
		FirstNameNorm:     name.First,
		LastNameNorm:      name.Last,
		FullNameNorm:      name.Full,
		EmailNorm:         email,
		EmailLocal:        local,
		EmailDomain:       domain,
		PhoneE164:         phone,
		CompanyNorm:       NormalizeCompany(raw.Company),
		WebsiteRoot:       NormalizeWebsite(raw.Website),
		AddressNorm:       address,
		ZipNorm:           ExtractZip(address),
		OtherEmailsNorm:   pq.StringArray(dedupe(otherEmails, email)),
		OtherPhonesNorm:   pq.StringArray(dedupe(otherPhones, phone)),
		LastNameSoundex:   n.encoder.Soundex(name.Last),
		LastNameMetaphone: n.encoder.Metaphone(name.Last),
	}
}
