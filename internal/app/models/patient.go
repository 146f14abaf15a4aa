package models

import "time"

// AddressType is the fixed enum of patient address kinds addressable through
// field expressions.
type AddressType string

const (
	AddressTypeHome   AddressType = "Home"
	AddressTypePostal AddressType = "Postal"
)

func (t AddressType) Valid() bool {
	return t == AddressTypeHome || t == AddressTypePostal
}

// PatientAddress is one postal or home address.
type PatientAddress struct {
	Type     AddressType `bson:"type" json:"type"`
	Address  string      `bson:"address" json:"address"`
	Suburb   string      `bson:"suburb" json:"suburb"`
	State    string      `bson:"state" json:"state"`
	Country  string      `bson:"country" json:"country"`
	Postcode string      `bson:"postcode" json:"postcode"`
}

// Patient is the primary clinical-data-bearing entity. Its plain demographic
// fields are addressable directly by field expressions.
type Patient struct {
	ID            int64            `bson:"_id" json:"id"`
	FamilyName    string           `bson:"family_name" json:"family_name"`
	GivenNames    string           `bson:"given_names" json:"given_names"`
	DateOfBirth   time.Time        `bson:"date_of_birth" json:"date_of_birth"`
	Sex           string           `bson:"sex" json:"sex"`
	Email         string           `bson:"email" json:"email"`
	HomePhone     string           `bson:"home_phone" json:"home_phone"`
	MobilePhone   string           `bson:"mobile_phone" json:"mobile_phone"`
	Active        bool             `bson:"active" json:"active"`
	RegistryCodes []string         `bson:"registry_codes" json:"registry_codes"`
	Addresses     []PatientAddress `bson:"addresses" json:"addresses"`
}

// Ref returns the owner reference for this patient.
func (p *Patient) Ref() OwnerRef {
	return OwnerRef{Kind: OwnerKindPatient, ID: p.ID}
}

// FindAddress returns the address of the given type, nil when absent.
func (p *Patient) FindAddress(addressType AddressType) *PatientAddress {
	for i := range p.Addresses {
		if p.Addresses[i].Type == addressType {
			return &p.Addresses[i]
		}
	}
	return nil
}

// FindOrCreateAddress returns the address of the given type, creating it when
// absent.
func (p *Patient) FindOrCreateAddress(addressType AddressType) *PatientAddress {
	if addr := p.FindAddress(addressType); addr != nil {
		return addr
	}
	p.Addresses = append(p.Addresses, PatientAddress{Type: addressType})
	return &p.Addresses[len(p.Addresses)-1]
}

// GetField reads a plain demographic field by its expression name. The name
// set is closed; unknown names report false.
func (p *Patient) GetField(name string) (interface{}, bool) {
	switch name {
	case "family_name":
		return p.FamilyName, true
	case "given_names":
		return p.GivenNames, true
	case "date_of_birth":
		return p.DateOfBirth, true
	case "sex":
		return p.Sex, true
	case "email":
		return p.Email, true
	case "home_phone":
		return p.HomePhone, true
	case "mobile_phone":
		return p.MobilePhone, true
	case "active":
		return p.Active, true
	}
	return nil, false
}

// SetField writes a plain demographic field by its expression name; false
// when the name is unknown or the value has the wrong type.
func (p *Patient) SetField(name string, value interface{}) bool {
	switch name {
	case "family_name":
		if s, ok := value.(string); ok {
			p.FamilyName = s
			return true
		}
	case "given_names":
		if s, ok := value.(string); ok {
			p.GivenNames = s
			return true
		}
	case "date_of_birth":
		if ts, ok := value.(time.Time); ok {
			p.DateOfBirth = ts
			return true
		}
	case "sex":
		if s, ok := value.(string); ok {
			p.Sex = s
			return true
		}
	case "email":
		if s, ok := value.(string); ok {
			p.Email = s
			return true
		}
	case "home_phone":
		if s, ok := value.(string); ok {
			p.HomePhone = s
			return true
		}
	case "mobile_phone":
		if s, ok := value.(string); ok {
			p.MobilePhone = s
			return true
		}
	case "active":
		if b, ok := value.(bool); ok {
			p.Active = b
			return true
		}
	}
	return false
}
