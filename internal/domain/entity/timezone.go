package entity

import "time"

// authorityLocation is the timezone the authority mandates for issue
// timestamps and serial-number years.
var authorityLocation = loadAuthorityLocation()

func loadAuthorityLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		// Riyadh has no DST, a fixed offset is equivalent
		return time.FixedZone("AST", 3*60*60)
	}
	return loc
}

// AuthorityLocation returns the authority-mandated timezone
func AuthorityLocation() *time.Location {
	return authorityLocation
}
