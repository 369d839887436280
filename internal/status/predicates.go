package status

import "strings"

// AllActive reports whether every application in apps (all applications if
// none are given) and each of its units is in "active" status.
func AllActive(s *Status, apps ...string) bool { return allStatusesAre("active", s, apps) }

// AllBlocked is AllActive for "blocked".
func AllBlocked(s *Status, apps ...string) bool { return allStatusesAre("blocked", s, apps) }

// AllError is AllActive for "error".
func AllError(s *Status, apps ...string) bool { return allStatusesAre("error", s, apps) }

// AllMaintenance is AllActive for "maintenance".
func AllMaintenance(s *Status, apps ...string) bool { return allStatusesAre("maintenance", s, apps) }

// AllWaiting is AllActive for "waiting".
func AllWaiting(s *Status, apps ...string) bool { return allStatusesAre("waiting", s, apps) }

// AnyActive reports whether any application in apps (all applications if
// none are given) or any of its units is in "active" status. Applications
// missing from s are ignored.
func AnyActive(s *Status, apps ...string) bool { return anyStatusIs("active", s, apps) }

// AnyBlocked is AnyActive for "blocked".
func AnyBlocked(s *Status, apps ...string) bool { return anyStatusIs("blocked", s, apps) }

// AnyError is AnyActive for "error".
func AnyError(s *Status, apps ...string) bool { return anyStatusIs("error", s, apps) }

// AnyMaintenance is AnyActive for "maintenance".
func AnyMaintenance(s *Status, apps ...string) bool { return anyStatusIs("maintenance", s, apps) }

// AnyWaiting is AnyActive for "waiting".
func AnyWaiting(s *Status, apps ...string) bool { return anyStatusIs("waiting", s, apps) }

func appNames(s *Status, apps []string) []string {
	if len(apps) > 0 {
		return apps
	}
	names := make([]string, 0, len(s.Apps))
	for name := range s.Apps {
		names = append(names, name)
	}
	return names
}

func allStatusesAre(expected string, s *Status, apps []string) bool {
	if s == nil {
		return false
	}
	for _, name := range appNames(s, apps) {
		app, ok := s.Apps[name]
		if !ok {
			return false
		}
		if app.AppStatus.Current != expected {
			return false
		}
		for _, unit := range app.Units {
			if unit.WorkloadStatus.Current != expected {
				return false
			}
		}
	}
	return true
}

func anyStatusIs(expected string, s *Status, apps []string) bool {
	if s == nil {
		return false
	}
	for _, name := range appNames(s, apps) {
		app, ok := s.Apps[name]
		if !ok {
			continue
		}
		if app.AppStatus.Current == expected {
			return true
		}
		for _, unit := range app.Units {
			if unit.WorkloadStatus.Current == expected {
				return true
			}
		}
	}
	return false
}

// AnyFailed reports whether any node of s was reported with a status-error
// sentinel: the model, machines and their containers, applications, units
// and their subordinates, remote applications or offers.
func AnyFailed(s *Status) bool {
	if s == nil {
		return false
	}
	if s.Model.ModelStatus.IsFailed() {
		return true
	}
	for _, m := range s.Machines {
		if machineFailed(m) {
			return true
		}
	}
	for _, app := range s.Apps {
		if app.AppStatus.IsFailed() {
			return true
		}
		for _, u := range app.Units {
			if unitFailed(u) {
				return true
			}
		}
	}
	for _, remote := range s.AppEndpoints {
		if remote.AppStatus.IsFailed() {
			return true
		}
	}
	for _, offer := range s.Offers {
		if strings.HasPrefix(offer.App, failedPlaceholder) {
			return true
		}
	}
	return false
}

func machineFailed(m MachineStatus) bool {
	if m.JujuStatus.IsFailed() || m.MachineStatus.IsFailed() || m.ModificationStatus.IsFailed() {
		return true
	}
	for _, c := range m.Containers {
		if machineFailed(c) {
			return true
		}
	}
	return false
}

func unitFailed(u UnitStatus) bool {
	if u.WorkloadStatus.IsFailed() || u.JujuStatus.IsFailed() {
		return true
	}
	for _, sub := range u.Subordinates {
		if unitFailed(sub) {
			return true
		}
	}
	return false
}
