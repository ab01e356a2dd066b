package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Manila")
	if err != nil {
		panic(err)
	}
}

// force the timezone to Manila since the portal renders all due
// dates in campus-local time but the backend may be running with
// whatever TZ the host happens to have
func Now() time.Time {
	return time.Now().In(Location)
}
