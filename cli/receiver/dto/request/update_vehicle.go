package request

type UpdateVehicle struct {
	Name      *string `json:"name"`
	RegNumber *string `json:"reg_number"`
}
