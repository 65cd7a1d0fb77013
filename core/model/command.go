package model

// CommandSpec describes one command to issue against a vehicle. Operation is
// the backend operation name, echoed back in the operation events that report
// the command's outcome. Body is marshalled as the request payload.
type CommandSpec struct {
	Operation string
	Path      string
	Body      any
}

// Command constructors for the common vehicle operations.

func StartCharging() CommandSpec {
	return CommandSpec{Operation: "start-charging", Path: "charging/start"}
}

func StopCharging() CommandSpec {
	return CommandSpec{Operation: "stop-charging", Path: "charging/stop"}
}

func SetChargeLimit(limit int) CommandSpec {
	return CommandSpec{
		Operation: "update-charge-limit",
		Path:      "charging/set-charge-limit",
		Body:      map[string]any{"targetSOCInPercent": limit},
	}
}

func SetChargeMode(mode string) CommandSpec {
	return CommandSpec{
		Operation: "update-charge-mode",
		Path:      "charging/set-charge-mode",
		Body:      map[string]any{"chargeMode": mode},
	}
}

func StartAirConditioning(targetTempCelsius float64) CommandSpec {
	return CommandSpec{
		Operation: "start-air-conditioning",
		Path:      "air-conditioning/start",
		Body: map[string]any{
			"targetTemperature": map[string]any{
				"temperatureValue": targetTempCelsius,
				"unitInCar":        "CELSIUS",
			},
		},
	}
}

func StopAirConditioning() CommandSpec {
	return CommandSpec{Operation: "stop-air-conditioning", Path: "air-conditioning/stop"}
}

func StartWindowHeating() CommandSpec {
	return CommandSpec{Operation: "start-window-heating", Path: "air-conditioning/start-window-heating"}
}

func StopWindowHeating() CommandSpec {
	return CommandSpec{Operation: "stop-window-heating", Path: "air-conditioning/stop-window-heating"}
}

func Lock(spin string) CommandSpec {
	return CommandSpec{
		Operation: "lock",
		Path:      "vehicle-access/lock",
		Body:      map[string]any{"currentSpin": spin},
	}
}

func Unlock(spin string) CommandSpec {
	return CommandSpec{
		Operation: "unlock",
		Path:      "vehicle-access/unlock",
		Body:      map[string]any{"currentSpin": spin},
	}
}

func HonkAndFlash() CommandSpec {
	return CommandSpec{Operation: "start-honk", Path: "vehicle-access/honk-and-flash"}
}

func Wakeup() CommandSpec {
	return CommandSpec{Operation: "wakeup", Path: "vehicle-wakeup/wakeup"}
}
