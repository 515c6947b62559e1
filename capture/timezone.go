package capture

import "time"

// TimestampLayout is the layout of DomainResult.TimestampLocal.
const TimestampLayout = "2006-01-02 15:04:05 MST"

// ResolveTimeZone returns name and its location when name is a valid IANA
// zone, and "UTC" otherwise. "Local" is rejected so results never depend on
// the server's own zone.
func ResolveTimeZone(name string) (string, *time.Location) {
	if name == "" || name == "Local" {
		return "UTC", time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "UTC", time.UTC
	}
	return name, loc
}

// FormatLocal formats t in the named zone using TimestampLayout.
func FormatLocal(t time.Time, zone string) string {
	_, loc := ResolveTimeZone(zone)
	return t.In(loc).Format(TimestampLayout)
}
