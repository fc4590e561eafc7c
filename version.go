package oracle

import "fmt"

// DriverVersion is the version of this driver.
const DriverVersion = "1.0.0"

// ClientVersion identifies the Oracle client library loaded at runtime.
type ClientVersion struct {
	Major     int
	Minor     int
	Update    int
	Patch     int
	PortPatch int
}

// String renders the version in the usual five-part dotted form.
func (v ClientVersion) String() string {
	return fmt.Sprintf("%d.%d.%d.%d.%d", v.Major, v.Minor, v.Update, v.Patch, v.PortPatch)
}

// Client reports the version of the Oracle client library. It loads the
// library if that has not happened yet.
func Client() (ClientVersion, error) {
	api, err := defaultAPI()
	if err != nil {
		return ClientVersion{}, err
	}
	major, minor, update, patch, portPatch := api.ClientVersion()
	return ClientVersion{
		Major:     int(major),
		Minor:     int(minor),
		Update:    int(update),
		Patch:     int(patch),
		PortPatch: int(portPatch),
	}, nil
}
