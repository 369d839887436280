package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// sentinelKey is the in-band marker Juju puts in place of a node's normal
// fields when it could not compute them.
const sentinelKey = "status-error"

// ErrParseViolation is matched (errors.Is) by every ParseError.
var ErrParseViolation = errors.New("status document does not match the expected format")

// ParseError reports a document that is not valid JSON or lacks a required
// identifying field. It indicates a Juju version mismatch and is not retried.
type ParseError struct {
	Path  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse status: %v", e.Err)
	}
	return fmt.Sprintf("parse status: %s: missing required field %q", e.Path, e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParseViolation }

// ParseJSON decodes the output of `juju status --format json`.
func ParseJSON(data []byte) (*Status, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ParseError{Err: err}
	}
	return Parse(raw)
}

// Parse converts a raw status document into a Status. Nodes carrying the
// status-error sentinel become nodes whose StatusInfo.Current is Failed;
// only a missing required field makes Parse fail.
func Parse(raw map[string]any) (*Status, error) {
	p := &parser{}
	doc := fields{m: raw}

	st := &Status{
		Model:      p.model(doc.obj("model", ".model")),
		Machines:   map[string]MachineStatus{},
		Apps:       map[string]AppStatus{},
		Controller: ControllerStatus{Timestamp: doc.obj("controller", ".controller").str("timestamp")},
	}

	machines := doc.obj("machines", ".machines")
	for _, id := range machines.keys() {
		st.Machines[id] = p.machine(machines.obj(id, index(".machines", id)))
	}

	apps := doc.obj("applications", ".apps")
	for _, name := range apps.keys() {
		st.Apps[name] = p.app(apps.obj(name, index(".apps", name)))
	}

	offers := doc.obj("offers", ".offers")
	for _, name := range offers.keys() {
		if st.Offers == nil {
			st.Offers = map[string]OfferStatus{}
		}
		st.Offers[name] = p.offer(offers.obj(name, index(".offers", name)))
	}

	remotes := doc.obj("application-endpoints", ".app_endpoints")
	for _, name := range remotes.keys() {
		if st.AppEndpoints == nil {
			st.AppEndpoints = map[string]RemoteAppStatus{}
		}
		st.AppEndpoints[name] = p.remoteApp(remotes.obj(name, index(".app_endpoints", name)))
	}

	if p.err != nil {
		return nil, p.err
	}
	return st, nil
}

// parser keeps the first required-field violation so the node builders can
// stay free of error plumbing.
type parser struct {
	err error
}

// require records a violation for a missing key. An explicit null counts as
// missing.
func (p *parser) require(f fields, key string) any {
	v, ok := f.m[key]
	if !ok || v == nil {
		if p.err == nil {
			p.err = &ParseError{Path: f.path, Field: key}
		}
		return nil
	}
	return v
}

func (p *parser) requireStr(f fields, key string) string {
	s, _ := p.require(f, key).(string)
	return s
}

func (p *parser) requireInt(f fields, key string) int {
	return toInt(p.require(f, key))
}

func (p *parser) requireBool(f fields, key string) bool {
	b, _ := p.require(f, key).(bool)
	return b
}

func statusInfo(f fields) StatusInfo {
	if msg, ok := f.sentinel(); ok {
		return StatusInfo{Current: Failed, Message: msg}
	}
	return StatusInfo{
		Current: f.str("current"),
		Message: f.str("message"),
		Reason:  f.str("reason"),
		Since:   f.str("since"),
		Version: f.str("version"),
		Life:    f.str("life"),
	}
}

func failedInfo(msg string) StatusInfo {
	return StatusInfo{Current: Failed, Message: msg}
}

func (p *parser) model(f fields) ModelStatus {
	return ModelStatus{
		Name:             p.requireStr(f, "name"),
		Type:             p.requireStr(f, "type"),
		Controller:       p.requireStr(f, "controller"),
		Cloud:            p.requireStr(f, "cloud"),
		Version:          p.requireStr(f, "version"),
		Region:           f.str("region"),
		UpgradeAvailable: f.str("upgrade-available"),
		ModelStatus:      statusInfo(f.obj("model-status", f.path+".model_status")),
		SLA:              f.str("sla"),
	}
}

func (p *parser) machine(f fields) MachineStatus {
	if msg, ok := f.sentinel(); ok {
		return MachineStatus{
			JujuStatus:    failedInfo(msg),
			MachineStatus: failedInfo(msg),
		}
	}

	m := MachineStatus{
		JujuStatus:         statusInfo(f.obj("juju-status", f.path+".juju_status")),
		MachineStatus:      statusInfo(f.obj("machine-status", f.path+".machine_status")),
		ModificationStatus: statusInfo(f.obj("modification-status", f.path+".modification_status")),
		Hostname:           f.str("hostname"),
		DNSName:            f.str("dns-name"),
		IPAddresses:        f.strs("ip-addresses"),
		InstanceID:         f.str("instance-id"),
		DisplayName:        f.str("display-name"),
		Base:               base(f.obj("base", f.path+".base")),
		Constraints:        f.str("constraints"),
		Hardware:           f.str("hardware"),
		ControllerMember:   f.str("controller-member-status"),
		HAPrimary:          f.bool("ha-primary"),
	}

	ifaces := f.obj("network-interfaces", f.path+".network_interfaces")
	for _, name := range ifaces.keys() {
		if m.NetworkInterfaces == nil {
			m.NetworkInterfaces = map[string]NetworkInterface{}
		}
		n := ifaces.obj(name, index(ifaces.path, name))
		m.NetworkInterfaces[name] = NetworkInterface{
			IPAddresses:    n.strs("ip-addresses"),
			MACAddress:     n.str("mac-address"),
			Gateway:        n.str("gateway"),
			DNSNameservers: n.strs("dns-nameservers"),
			Space:          n.str("space"),
			IsUp:           n.bool("is-up"),
		}
	}

	containers := f.obj("containers", f.path+".containers")
	for _, id := range containers.keys() {
		if m.Containers == nil {
			m.Containers = map[string]MachineStatus{}
		}
		m.Containers[id] = p.machine(containers.obj(id, index(containers.path, id)))
	}
	return m
}

func base(f fields) FormattedBase {
	return FormattedBase{Name: f.str("name"), Channel: f.str("channel")}
}

func (p *parser) app(f fields) AppStatus {
	if msg, ok := f.sentinel(); ok {
		return AppStatus{
			Charm:       failedPlaceholder,
			CharmOrigin: failedPlaceholder,
			CharmName:   failedPlaceholder,
			CharmRev:    -1,
			AppStatus:   failedInfo(msg),
		}
	}

	a := AppStatus{
		Charm:            p.requireStr(f, "charm"),
		CharmOrigin:      p.requireStr(f, "charm-origin"),
		CharmName:        p.requireStr(f, "charm-name"),
		CharmRev:         p.requireInt(f, "charm-rev"),
		Exposed:          p.requireBool(f, "exposed"),
		Base:             base(f.obj("base", f.path+".base")),
		CharmChannel:     f.str("charm-channel"),
		CharmVersion:     f.str("charm-version"),
		CanUpgradeTo:     f.str("can-upgrade-to"),
		Scale:            f.int("scale"),
		ProviderID:       f.str("provider-id"),
		Address:          f.str("address"),
		Life:             f.str("life"),
		AppStatus:        statusInfo(f.obj("application-status", f.path+".app_status")),
		SubordinateTo:    f.strs("subordinate-to"),
		Version:          f.str("version"),
		EndpointBindings: f.strMap("endpoint-bindings"),
	}

	rels := f.obj("relations", f.path+".relations")
	for _, endpoint := range rels.keys() {
		if a.Relations == nil {
			a.Relations = map[string][]AppStatusRelation{}
		}
		var list []AppStatusRelation
		for _, r := range rels.objs(endpoint, index(rels.path, endpoint)) {
			list = append(list, AppStatusRelation{
				RelatedApp: p.requireStr(r, "related-application"),
				Interface:  p.requireStr(r, "interface"),
				Scope:      p.requireStr(r, "scope"),
			})
		}
		a.Relations[endpoint] = list
	}

	units := f.obj("units", f.path+".units")
	for _, name := range units.keys() {
		if a.Units == nil {
			a.Units = map[string]UnitStatus{}
		}
		a.Units[name] = p.unit(units.obj(name, index(units.path, name)))
	}
	return a
}

func (p *parser) unit(f fields) UnitStatus {
	if msg, ok := f.sentinel(); ok {
		return UnitStatus{
			WorkloadStatus: failedInfo(msg),
			JujuStatus:     failedInfo(msg),
		}
	}

	u := UnitStatus{
		WorkloadStatus: statusInfo(f.obj("workload-status", f.path+".workload_status")),
		JujuStatus:     statusInfo(f.obj("juju-status", f.path+".juju_status")),
		Leader:         f.bool("leader"),
		UpgradingFrom:  f.str("upgrading-from"),
		Machine:        f.str("machine"),
		OpenPorts:      f.strs("open-ports"),
		PublicAddress:  f.str("public-address"),
		Address:        f.str("address"),
		ProviderID:     f.str("provider-id"),
	}

	subs := f.obj("subordinates", f.path+".subordinates")
	for _, name := range subs.keys() {
		if u.Subordinates == nil {
			u.Subordinates = map[string]UnitStatus{}
		}
		u.Subordinates[name] = p.unit(subs.obj(name, index(subs.path, name)))
	}
	return u
}

func (p *parser) offer(f fields) OfferStatus {
	if msg, ok := f.sentinel(); ok {
		return OfferStatus{App: fmt.Sprintf("%s (%s)", failedPlaceholder, msg)}
	}

	o := OfferStatus{
		App:                  p.requireStr(f, "application"),
		Charm:                f.str("charm"),
		TotalConnectedCount:  f.int("total-connected-count"),
		ActiveConnectedCount: f.int("active-connected-count"),
	}
	p.require(f, "endpoints")
	eps := f.obj("endpoints", f.path+".endpoints")
	for _, name := range eps.keys() {
		if o.Endpoints == nil {
			o.Endpoints = map[string]RemoteEndpoint{}
		}
		o.Endpoints[name] = p.endpoint(eps.obj(name, index(eps.path, name)))
	}
	return o
}

func (p *parser) endpoint(f fields) RemoteEndpoint {
	return RemoteEndpoint{
		Interface: p.requireStr(f, "interface"),
		Role:      p.requireStr(f, "role"),
	}
}

func (p *parser) remoteApp(f fields) RemoteAppStatus {
	if msg, ok := f.sentinel(); ok {
		return RemoteAppStatus{URL: failedPlaceholder, AppStatus: failedInfo(msg)}
	}

	r := RemoteAppStatus{
		URL:       p.requireStr(f, "url"),
		Life:      f.str("life"),
		AppStatus: statusInfo(f.obj("application-status", f.path+".app_status")),
	}
	for _, ep := range f.objs("endpoints", f.path+".endpoints") {
		r.Endpoints = append(r.Endpoints, p.endpoint(ep))
	}
	rels := f.obj("relations", f.path+".relations")
	for _, name := range rels.keys() {
		if r.Relations == nil {
			r.Relations = map[string][]string{}
		}
		r.Relations[name] = rels.strs(name)
	}
	return r
}

// fields is a read-only view over one JSON object. Lookups of optional
// values never fail; a missing or mistyped value yields the zero value.
type fields struct {
	path string
	m    map[string]any
}

func index(path, key string) string {
	return path + "[" + strconv.Quote(key) + "]"
}

func (f fields) sentinel() (string, bool) {
	v, ok := f.m[sentinelKey]
	if !ok {
		return "", false
	}
	s, isStr := v.(string)
	if !isStr {
		s = fmt.Sprint(v)
	}
	return s, true
}

func (f fields) keys() []string {
	keys := make([]string, 0, len(f.m))
	for k := range f.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f fields) obj(key, path string) fields {
	m, _ := f.m[key].(map[string]any)
	return fields{path: path, m: m}
}

func (f fields) objs(key, path string) []fields {
	list, _ := f.m[key].([]any)
	out := make([]fields, 0, len(list))
	for i, v := range list {
		m, _ := v.(map[string]any)
		out = append(out, fields{path: fmt.Sprintf("%s[%d]", path, i), m: m})
	}
	return out
}

func (f fields) str(key string) string {
	s, _ := f.m[key].(string)
	return s
}

func (f fields) bool(key string) bool {
	b, _ := f.m[key].(bool)
	return b
}

func (f fields) int(key string) int {
	return toInt(f.m[key])
}

func (f fields) strs(key string) []string {
	list, _ := f.m[key].([]any)
	var out []string
	for _, v := range list {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (f fields) strMap(key string) map[string]string {
	m, _ := f.m[key].(map[string]any)
	var out map[string]string
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if out == nil {
			out = map[string]string{}
		}
		out[k] = s
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int(f)
		}
		return int(i)
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
