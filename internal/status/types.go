// Package status holds the typed, immutable snapshot of `juju status` output
// and the parser that builds it from the raw JSON document.
package status

import (
	"reflect"

	"gopkg.in/yaml.v3"
)

// Failed is the Current value synthesised by the parser for nodes that
// carried a status-error sentinel instead of their normal fields.
const Failed = "failed"

// Placeholder used for required string fields of a failed node.
const failedPlaceholder = "<failed>"

// Status is one point-in-time view of a Juju model.
type Status struct {
	Model        ModelStatus                `json:"model" yaml:"model"`
	Machines     map[string]MachineStatus   `json:"machines" yaml:"machines"`
	Apps         map[string]AppStatus       `json:"apps" yaml:"apps"`
	AppEndpoints map[string]RemoteAppStatus `json:"app_endpoints" yaml:"app_endpoints,omitempty"`
	Offers       map[string]OfferStatus     `json:"offers" yaml:"offers,omitempty"`
	Controller   ControllerStatus           `json:"controller" yaml:"controller,omitempty"`
}

// StatusInfo is the status pairing shared by every status-bearing node.
type StatusInfo struct {
	Current string `json:"current" yaml:"current,omitempty"`
	Message string `json:"message" yaml:"message,omitempty"`
	Reason  string `json:"reason" yaml:"reason,omitempty"`
	Since   string `json:"since" yaml:"since,omitempty"`
	Version string `json:"version" yaml:"version,omitempty"`
	Life    string `json:"life" yaml:"life,omitempty"`
}

// IsFailed reports whether the node was synthesised from a status-error sentinel.
func (s StatusInfo) IsFailed() bool {
	return s.Current == Failed
}

// ModelStatus describes the model itself.
type ModelStatus struct {
	Name             string     `json:"name" yaml:"name"`
	Type             string     `json:"type" yaml:"type"`
	Controller       string     `json:"controller" yaml:"controller"`
	Cloud            string     `json:"cloud" yaml:"cloud"`
	Version          string     `json:"version" yaml:"version"`
	Region           string     `json:"region" yaml:"region,omitempty"`
	UpgradeAvailable string     `json:"upgrade_available" yaml:"upgrade_available,omitempty"`
	ModelStatus      StatusInfo `json:"model_status" yaml:"model_status,omitempty"`
	SLA              string     `json:"sla" yaml:"sla,omitempty"`
}

// ControllerStatus carries the controller's clock at the time of the read.
type ControllerStatus struct {
	Timestamp string `json:"timestamp" yaml:"timestamp,omitempty"`
}

// FormattedBase is an OS base such as ubuntu@22.04.
type FormattedBase struct {
	Name    string `json:"name" yaml:"name"`
	Channel string `json:"channel" yaml:"channel"`
}

// NetworkInterface is one interface of a machine.
type NetworkInterface struct {
	IPAddresses    []string `json:"ip_addresses" yaml:"ip_addresses,omitempty"`
	MACAddress     string   `json:"mac_address" yaml:"mac_address,omitempty"`
	Gateway        string   `json:"gateway" yaml:"gateway,omitempty"`
	DNSNameservers []string `json:"dns_nameservers" yaml:"dns_nameservers,omitempty"`
	Space          string   `json:"space" yaml:"space,omitempty"`
	IsUp           bool     `json:"is_up" yaml:"is_up,omitempty"`
}

// MachineStatus is a machine or, under Containers, a container on it.
type MachineStatus struct {
	JujuStatus         StatusInfo                  `json:"juju_status" yaml:"juju_status,omitempty"`
	MachineStatus      StatusInfo                  `json:"machine_status" yaml:"machine_status,omitempty"`
	ModificationStatus StatusInfo                  `json:"modification_status" yaml:"modification_status,omitempty"`
	Hostname           string                      `json:"hostname" yaml:"hostname,omitempty"`
	DNSName            string                      `json:"dns_name" yaml:"dns_name,omitempty"`
	IPAddresses        []string                    `json:"ip_addresses" yaml:"ip_addresses,omitempty"`
	InstanceID         string                      `json:"instance_id" yaml:"instance_id,omitempty"`
	DisplayName        string                      `json:"display_name" yaml:"display_name,omitempty"`
	Base               FormattedBase               `json:"base" yaml:"base,omitempty"`
	NetworkInterfaces  map[string]NetworkInterface `json:"network_interfaces" yaml:"network_interfaces,omitempty"`
	Containers         map[string]MachineStatus    `json:"containers" yaml:"containers,omitempty"`
	Constraints        string                      `json:"constraints" yaml:"constraints,omitempty"`
	Hardware           string                      `json:"hardware" yaml:"hardware,omitempty"`
	ControllerMember   string                      `json:"controller_member_status" yaml:"controller_member_status,omitempty"`
	HAPrimary          bool                        `json:"ha_primary" yaml:"ha_primary,omitempty"`
}

// AppStatusRelation is one relation on an application endpoint.
type AppStatusRelation struct {
	RelatedApp string `json:"related_app" yaml:"related_app"`
	Interface  string `json:"interface" yaml:"interface"`
	Scope      string `json:"scope" yaml:"scope"`
}

// UnitStatus is a unit of an application, or a subordinate of one.
type UnitStatus struct {
	WorkloadStatus StatusInfo            `json:"workload_status" yaml:"workload_status,omitempty"`
	JujuStatus     StatusInfo            `json:"juju_status" yaml:"juju_status,omitempty"`
	Leader         bool                  `json:"leader" yaml:"leader,omitempty"`
	UpgradingFrom  string                `json:"upgrading_from" yaml:"upgrading_from,omitempty"`
	Machine        string                `json:"machine" yaml:"machine,omitempty"`
	OpenPorts      []string              `json:"open_ports" yaml:"open_ports,omitempty"`
	PublicAddress  string                `json:"public_address" yaml:"public_address,omitempty"`
	Address        string                `json:"address" yaml:"address,omitempty"`
	ProviderID     string                `json:"provider_id" yaml:"provider_id,omitempty"`
	Subordinates   map[string]UnitStatus `json:"subordinates" yaml:"subordinates,omitempty"`
}

// IsActive reports whether the unit's workload is "active".
func (u UnitStatus) IsActive() bool { return u.WorkloadStatus.Current == "active" }

// IsBlocked reports whether the unit's workload is "blocked".
func (u UnitStatus) IsBlocked() bool { return u.WorkloadStatus.Current == "blocked" }

// IsError reports whether the unit's workload is "error".
func (u UnitStatus) IsError() bool { return u.WorkloadStatus.Current == "error" }

// IsMaintenance reports whether the unit's workload is "maintenance".
func (u UnitStatus) IsMaintenance() bool { return u.WorkloadStatus.Current == "maintenance" }

// IsWaiting reports whether the unit's workload is "waiting".
func (u UnitStatus) IsWaiting() bool { return u.WorkloadStatus.Current == "waiting" }

// AppStatus is a deployed application and its units.
type AppStatus struct {
	Charm            string                         `json:"charm" yaml:"charm"`
	CharmOrigin      string                         `json:"charm_origin" yaml:"charm_origin"`
	CharmName        string                         `json:"charm_name" yaml:"charm_name"`
	CharmRev         int                            `json:"charm_rev" yaml:"charm_rev"`
	Exposed          bool                           `json:"exposed" yaml:"exposed"`
	Base             FormattedBase                  `json:"base" yaml:"base,omitempty"`
	CharmChannel     string                         `json:"charm_channel" yaml:"charm_channel,omitempty"`
	CharmVersion     string                         `json:"charm_version" yaml:"charm_version,omitempty"`
	CanUpgradeTo     string                         `json:"can_upgrade_to" yaml:"can_upgrade_to,omitempty"`
	Scale            int                            `json:"scale" yaml:"scale,omitempty"`
	ProviderID       string                         `json:"provider_id" yaml:"provider_id,omitempty"`
	Address          string                         `json:"address" yaml:"address,omitempty"`
	Life             string                         `json:"life" yaml:"life,omitempty"`
	AppStatus        StatusInfo                     `json:"app_status" yaml:"app_status,omitempty"`
	Relations        map[string][]AppStatusRelation `json:"relations" yaml:"relations,omitempty"`
	SubordinateTo    []string                       `json:"subordinate_to" yaml:"subordinate_to,omitempty"`
	Units            map[string]UnitStatus          `json:"units" yaml:"units,omitempty"`
	Version          string                         `json:"version" yaml:"version,omitempty"`
	EndpointBindings map[string]string              `json:"endpoint_bindings" yaml:"endpoint_bindings,omitempty"`
}

// IsActive reports whether the application status is "active".
func (a AppStatus) IsActive() bool { return a.AppStatus.Current == "active" }

// IsBlocked reports whether the application status is "blocked".
func (a AppStatus) IsBlocked() bool { return a.AppStatus.Current == "blocked" }

// IsError reports whether the application status is "error".
func (a AppStatus) IsError() bool { return a.AppStatus.Current == "error" }

// IsMaintenance reports whether the application status is "maintenance".
func (a AppStatus) IsMaintenance() bool { return a.AppStatus.Current == "maintenance" }

// IsWaiting reports whether the application status is "waiting".
func (a AppStatus) IsWaiting() bool { return a.AppStatus.Current == "waiting" }

// RemoteEndpoint is an endpoint exposed across models.
type RemoteEndpoint struct {
	Interface string `json:"interface" yaml:"interface"`
	Role      string `json:"role" yaml:"role"`
}

// OfferStatus is an offer made from this model. A failed offer has App
// set to "<failed> (message)".
type OfferStatus struct {
	App                  string                    `json:"app" yaml:"app"`
	Endpoints            map[string]RemoteEndpoint `json:"endpoints" yaml:"endpoints"`
	Charm                string                    `json:"charm" yaml:"charm,omitempty"`
	TotalConnectedCount  int                       `json:"total_connected_count" yaml:"total_connected_count,omitempty"`
	ActiveConnectedCount int                       `json:"active_connected_count" yaml:"active_connected_count,omitempty"`
}

// RemoteAppStatus is an application consumed from another model.
type RemoteAppStatus struct {
	URL       string              `json:"url" yaml:"url"`
	Endpoints []RemoteEndpoint    `json:"endpoints" yaml:"endpoints,omitempty"`
	Life      string              `json:"life" yaml:"life,omitempty"`
	AppStatus StatusInfo          `json:"app_status" yaml:"app_status,omitempty"`
	Relations map[string][]string `json:"relations" yaml:"relations,omitempty"`
}

// Equal reports whether s and other describe the same state. A nil Status
// only equals another nil Status.
func (s *Status) Equal(other *Status) bool {
	if s == nil || other == nil {
		return s == other
	}
	return reflect.DeepEqual(s, other)
}

// String renders the snapshot as YAML for failure reports.
func (s *Status) String() string {
	if s == nil {
		return "<nil>"
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return "<unrenderable status: " + err.Error() + ">"
	}
	return string(out)
}
