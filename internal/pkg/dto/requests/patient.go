package requests

type CreatePatient struct {
	FamilyName    string   `json:"family_name" validate:"required"`
	GivenNames    string   `json:"given_names" validate:"required"`
	DateOfBirth   string   `json:"date_of_birth" validate:"required"`
	Sex           string   `json:"sex"`
	Email         string   `json:"email" validate:"omitempty,email"`
	HomePhone     string   `json:"home_phone"`
	MobilePhone   string   `json:"mobile_phone"`
	RegistryCodes []string `json:"registry_codes"`
}
