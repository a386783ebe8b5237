// Command geostamp stamps photos with their location, date and a map
// thumbnail, and writes the same position into the EXIF block.
//
// Usage:
//
//	geostamp stamp [flags] <photo> [output]
//	geostamp batch [flags] <photo>...
//	geostamp locate --lat <lat> --lon <lon>
//	geostamp version
//
// Examples:
//
//	geostamp stamp --lat 26.187394 --lon 91.563845 --map map.jpg --name "Guwahati" photo.jpg
//	GEOSTAMP_API_KEY=... geostamp batch --lat 48.8566 --lon 2.3522 --out-dir stamped *.jpg
//	geostamp locate --lat -33.8688 --lon 151.2093 --zoom 14
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
