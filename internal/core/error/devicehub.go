package errx

import "net/http"

// WrapDeviceHub maps device hub failures to the unified Error type. The hub is a
// local-network appliance, so anything that goes wrong upstream is a bad gateway
// from this service's point of view.
func WrapDeviceHub(err error, message string) error {
	if err == nil {
		return nil
	}
	if message == "" {
		message = DeviceHubErrorMessage
	}
	return New(err, http.StatusBadGateway, message)
}
