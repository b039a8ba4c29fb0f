package response

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
