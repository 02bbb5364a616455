package model

// ChicagoHousingRecord is one row of the Chicago open-data affordable rental
// housing feed. The upstream API serves every field as a string.
type ChicagoHousingRecord struct {
	CommunityArea     string `json:"community_area"`
	PropertyType      string `json:"property_type"`
	PropertyName      string `json:"property_name"`
	Address           string `json:"address"`
	ZipCode           string `json:"zip_code"`
	PhoneNumber       string `json:"phone_number"`
	ManagementCompany string `json:"management_company"`
	Units             string `json:"units"`
	Latitude          string `json:"latitude"`
	Longitude         string `json:"longitude"`
}
