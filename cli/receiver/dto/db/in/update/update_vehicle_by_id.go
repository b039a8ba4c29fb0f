package update

type VehicleById struct {
	Name      *string `json:"name"`
	RegNumber *string `json:"reg_number"`
}
