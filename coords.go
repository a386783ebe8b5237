package geostamp

import "math"

// SecondsScale is the denominator of the seconds term in EXIF GPS rationals.
const SecondsScale = 10000

// Rational is an unsigned EXIF RATIONAL.
type Rational struct {
	Num, Den uint32
}

// Sexagesimal is an unsigned degrees/minutes/seconds triple.
// Seconds are stored multiplied by SecondsScale.
type Sexagesimal struct {
	Degrees       uint32
	Minutes       uint32
	SecondsScaled uint32
}

// ToSexagesimal converts decimal degrees to degrees, minutes and scaled
// seconds. The sign is dropped; use LatitudeRef or LongitudeRef for it.
// Every step truncates.
func ToSexagesimal(decimal float64) Sexagesimal {
	v := math.Abs(decimal)
	deg := math.Floor(v)
	minDec := (v - deg) * 60
	mins := math.Floor(minDec)
	secDec := (minDec - mins) * 60
	return Sexagesimal{
		Degrees:       uint32(deg),
		Minutes:       uint32(mins),
		SecondsScaled: uint32(math.Floor(secDec * SecondsScale)),
	}
}

// Rationals returns the GPS triple deg/1, min/1, sec/SecondsScale.
func (s Sexagesimal) Rationals() [3]Rational {
	return [3]Rational{
		{s.Degrees, 1},
		{s.Minutes, 1},
		{s.SecondsScaled, SecondsScale},
	}
}

// Decimal reconstructs the unsigned decimal value.
func (s Sexagesimal) Decimal() float64 {
	return float64(s.Degrees) +
		float64(s.Minutes)/60 +
		float64(s.SecondsScaled)/SecondsScale/3600
}

// LatitudeRef returns "N" for lat >= 0 and "S" otherwise.
func LatitudeRef(lat float64) string {
	if lat >= 0 {
		return "N"
	}
	return "S"
}

// LongitudeRef returns "E" for lon >= 0 and "W" otherwise.
func LongitudeRef(lon float64) string {
	if lon >= 0 {
		return "E"
	}
	return "W"
}
