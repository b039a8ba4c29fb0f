package request

type AddVehicle struct {
	Name      *string `json:"name"`
	RegNumber *string `json:"reg_number"`
	Status    string  `json:"status"`
}
