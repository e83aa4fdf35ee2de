package push

import (
	"fmt"
	"hash/fnv"
)

// SimulatedGateway produces deterministic outcomes without any provider
// calls. The outcome depends only on the device token, so repeated runs over
// the same audience are reproducible: roughly 95% sent, 3% invalid token,
// 2% temporary failure.
type SimulatedGateway struct{}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{}
}

func (g *SimulatedGateway) Name() string { return "simulated" }

func (g *SimulatedGateway) Send(n Notification) Result {
	h := fnv.New32a()
	h.Write([]byte(n.DeviceToken))
	bucket := h.Sum32() % 100

	switch {
	case bucket < 95:
		return Result{
			DeviceToken: n.DeviceToken,
			Success:     true,
			Status:      StatusSent,
			MessageID:   fmt.Sprintf("sim-%08x", h.Sum32()),
		}
	case bucket < 98:
		return Result{
			DeviceToken:  n.DeviceToken,
			Status:       StatusInvalidToken,
			ErrorMessage: "UNREGISTERED",
		}
	default:
		return Result{
			DeviceToken:  n.DeviceToken,
			Status:       StatusFailed,
			ErrorMessage: "UNAVAILABLE",
		}
	}
}
